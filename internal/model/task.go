package model

// TaskCatalog holds task definitions (k8s-style declarative format)
type TaskCatalog struct {
	APIVersion string           `yaml:"apiVersion" json:"apiVersion"`
	Kind       string           `yaml:"kind" json:"kind"`
	Metadata   Metadata         `yaml:"metadata" json:"metadata"`
	Tasks      []TaskDefinition `yaml:"tasks" json:"tasks"`
}

// Metadata holds standard object metadata
type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// TaskDefinition is one engine operation bound to a scenario template
type TaskDefinition struct {
	Name          string                `yaml:"name" json:"name"`
	Component     string                `yaml:"component" json:"component"` // khiops, khiops_coclustering
	MinVersion    string                `yaml:"minVersion" json:"minVersion"`
	Description   string                `yaml:"description,omitempty" json:"description,omitempty"`
	Required      []ParameterDefinition `yaml:"required" json:"required"`
	Optional      []ParameterDefinition `yaml:"optional,omitempty" json:"optional,omitempty"`
	RequiredFlags []string              `yaml:"requiredFlags,omitempty" json:"requiredFlags,omitempty"`
	Template      string                `yaml:"template" json:"template"`
}

// ParameterDefinition declares a typed task parameter
type ParameterDefinition struct {
	Name     string      `yaml:"name" json:"name"`
	Type     string      `yaml:"type" json:"type"` // bool, int, string, map[string]int ...
	Default  interface{} `yaml:"default,omitempty" json:"default,omitempty"`
	Artifact bool        `yaml:"artifact,omitempty" json:"artifact,omitempty"`
}
