package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.schema.yaml
var catalogSchema []byte

// Validator handles JSON schema validation of task catalog documents
type Validator struct {
	catalogSchema *jsonschema.Schema
}

// NewValidator compiles the built-in catalog schema
func NewValidator() (*Validator, error) {
	schema, err := compileSchema(catalogSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog schema: %w", err)
	}
	return &Validator{catalogSchema: schema}, nil
}

// ValidateCatalog validates a decoded catalog document
func (v *Validator) ValidateCatalog(data interface{}) error {
	if v.catalogSchema == nil {
		return fmt.Errorf("catalog schema not loaded")
	}
	normalized, err := toJSONValue(data)
	if err != nil {
		return err
	}
	return v.catalogSchema.Validate(normalized)
}

// ValidateCatalogYAML decodes raw YAML and validates it
func (v *Validator) ValidateCatalogYAML(raw []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	return v.ValidateCatalog(doc)
}

// compileSchema compiles a schema document (JSON or YAML)
func compileSchema(data []byte) (*jsonschema.Schema, error) {
	// Parse YAML to interface{} (supports both YAML and JSON)
	var schemaData interface{}
	if err := yaml.Unmarshal(data, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	// Convert to JSON for schema compiler
	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	schema, err := jsonschema.CompileString("catalog.schema.json", string(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return schema, nil
}

// toJSONValue round-trips a YAML-decoded value through JSON so the validator
// only sees JSON types.
func toJSONValue(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return out, nil
}
