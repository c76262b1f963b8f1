package orchestrator

import (
	"context"
	"path/filepath"

	"github.com/sourceplane/khiopsctl/internal/dictionary"
	"github.com/sourceplane/khiopsctl/internal/errs"
	"github.com/sourceplane/khiopsctl/internal/format"
	"github.com/sourceplane/khiopsctl/internal/params"
	"github.com/sourceplane/khiopsctl/internal/pipeline"
	"github.com/sourceplane/khiopsctl/internal/render"
	"github.com/sourceplane/khiopsctl/internal/task"
)

// Task names used by the composite operations.
const (
	TaskPrepareCoclusteringDeployment = "prepare_coclustering_deployment"
	TaskExtractKeys                   = "extract_keys_from_data_table"
	TaskDeployModel                   = "deploy_model"
)

// Result file names written under the results directory.
const (
	CoclusteringDictionaryFile = "Coclustering.kdic"
	KeysTablePrefix            = "Keys"
	DeployedTablePrefix        = "Deployed"
)

// CoclusteringDeployment describes the deployment of an individual-variable
// coclustering onto a data table.
type CoclusteringDeployment struct {
	// DictionaryFile is read when Domain is nil.
	DictionaryFile       string `validate:"required_without=Domain"`
	Domain               *dictionary.Domain
	DictionaryName       string `validate:"required"`
	DataTable            string `validate:"required"`
	CoclusteringFile     string `validate:"required"`
	KeyVariables         []string
	DeployedVariableName string `validate:"required"`
	ResultsDir           string `validate:"required"`

	// The head of DataTable is read to find the values HeaderLine and
	// FieldSeparator leave unset, unless SkipFormatDetection is set.
	SkipFormatDetection  bool
	HeaderLine           *bool
	FieldSeparator       *rune
	OutputHeaderLine     *bool
	OutputFieldSeparator *rune

	MaxPreservedInformation int `validate:"min=0"`
	MaxCells                int `validate:"min=0"`
	// MaxPartNumbers maps coclustering variables to their part limit.
	MaxPartNumbers          *params.Mapping
	BuildClusterVariable    *bool
	BuildDistanceVariables  bool
	BuildFrequencyVariables bool
	VariablesPrefix         string
	ResultsPrefix           string
}

// DeployResult lists the files a deployment produced.
type DeployResult struct {
	DeployedTable        string
	DeploymentDictionary string
	KeysTable            string
	Scenarios            []*render.Scenario
}

// Paths returns the produced artifact paths.
func (r *DeployResult) Paths() []string {
	return []string{r.KeysTable, r.DeployedTable, r.DeploymentDictionary}
}

// RootDictionaryName is the name of the synthesized root dictionary.
func RootDictionaryName(dictionaryName string) string { return "CC_" + dictionaryName }

// TableVariableName is the name of the table variable of the root dictionary.
func TableVariableName(dictionaryName string) string { return "Table_" + dictionaryName }

// ValidateKeys checks that every key variable exists in dict and is
// categorical.
func ValidateKeys(dict *dictionary.Dictionary, keys []string) error {
	if len(keys) == 0 {
		return &errs.KeySpecError{Dictionary: dict.Name, Reason: "cannot be empty: at least one key variable is required"}
	}
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			return &errs.KeySpecError{Dictionary: dict.Name, Variable: key, Reason: "is listed twice"}
		}
		seen[key] = true
		v, ok := dict.Variable(key)
		if !ok {
			return &errs.KeySpecError{Dictionary: dict.Name, Variable: key, Reason: "does not exist"}
		}
		if v.Type != dictionary.Categorical {
			return &errs.KeySpecError{Dictionary: dict.Name, Variable: key, Reason: "must be Categorical, has type " + v.Type}
		}
	}
	return nil
}

// BuildRootDomain returns a domain holding a copy of dict keyed by keys and a
// root dictionary CC_<name> whose table variable Table_<name> points to it.
func BuildRootDomain(dict *dictionary.Dictionary, keys []string) (*dictionary.Domain, error) {
	secondary := dict.Copy()
	secondary.Root = false
	secondary.Key = append([]string(nil), keys...)

	root := dictionary.New(RootDictionaryName(dict.Name))
	root.Root = true
	root.Key = append([]string(nil), keys...)
	for _, key := range keys {
		if err := root.AddVariable(&dictionary.Variable{Name: key, Type: dictionary.Categorical, Used: true}); err != nil {
			return nil, err
		}
	}
	if err := root.AddVariable(&dictionary.Variable{
		Name:    TableVariableName(dict.Name),
		Type:    dictionary.Table,
		RefType: secondary.Name,
		Used:    true,
	}); err != nil {
		return nil, err
	}

	dom := &dictionary.Domain{}
	if err := dom.Add(root); err != nil {
		return nil, err
	}
	if err := dom.Add(secondary); err != nil {
		return nil, err
	}
	return dom, nil
}

// DeployCoclustering deploys a coclustering model on a data table. It writes
// Keys<table>, Deployed<table> and Coclustering.kdic under the results
// directory.
func (o *Orchestrator) DeployCoclustering(ctx context.Context, req CoclusteringDeployment) (*DeployResult, error) {
	const operation = "deploy_coclustering"
	if err := o.checkRequest(operation, req); err != nil {
		return nil, err
	}
	specs := make(map[string]*task.Spec, 3)

	rootName := RootDictionaryName(req.DictionaryName)
	tableVariable := TableVariableName(req.DictionaryName)
	tableFile := filepath.Base(req.DataTable)
	result := &DeployResult{
		KeysTable:            o.fs.ChildPath(req.ResultsDir, KeysTablePrefix+tableFile),
		DeployedTable:        o.fs.ChildPath(req.ResultsDir, DeployedTablePrefix+tableFile),
		DeploymentDictionary: o.fs.ChildPath(req.ResultsDir, CoclusteringDictionaryFile),
	}
	buildCluster := true
	if req.BuildClusterVariable != nil {
		buildCluster = *req.BuildClusterVariable
	}
	output := outputFormat(req.OutputHeaderLine, req.OutputFieldSeparator)

	var (
		dict  *dictionary.Dictionary
		input format.Format
	)

	p := &pipeline.Pipeline{
		Name:   operation,
		Inputs: []string{"data_table", "coclustering_model"},
		Steps: []pipeline.Step{
			{
				Name: "resolve-schema",
				Kind: pipeline.LocalDerivation,
				Run: func(context.Context, *pipeline.State) error {
					dom, err := o.loadDomain(req.DictionaryFile, req.Domain)
					if err != nil {
						return err
					}
					dict, err = lookupDictionary(dom, req.DictionaryName)
					return err
				},
			},
			{
				Name: "validate-keys",
				Kind: pipeline.LocalDerivation,
				Run: func(context.Context, *pipeline.State) error {
					return ValidateKeys(dict, req.KeyVariables)
				},
			},
			o.resolveStep(specs, TaskPrepareCoclusteringDeployment, TaskExtractKeys, TaskDeployModel),
			{
				Name:   "detect-format",
				Kind:   pipeline.LocalDerivation,
				Inputs: []string{"data_table"},
				Run: func(ctx context.Context, state *pipeline.State) error {
					hint := format.Hint{HeaderLine: req.HeaderLine, FieldSeparator: req.FieldSeparator}
					detected, err := o.resolveFormat(ctx, !req.SkipFormatDetection, hint, state.Get("data_table"), dict)
					input = detected
					return err
				},
			},
			{
				Name:    "build-root-dictionary",
				Kind:    pipeline.LocalDerivation,
				Outputs: []string{"root_dictionary"},
				Run: func(_ context.Context, state *pipeline.State) error {
					dom, err := BuildRootDomain(dict, req.KeyVariables)
					if err != nil {
						return err
					}
					path := state.Scope.Temp("_deploy_coclustering_", ".kdic")
					if err := dictionary.WriteFile(o.fs.Afero(), path, dom); err != nil {
						return err
					}
					state.Set("root_dictionary", path)
					return o.fs.MkdirAll(req.ResultsDir)
				},
			},
			{
				Name:    TaskPrepareCoclusteringDeployment,
				Kind:    pipeline.EngineCall,
				Inputs:  []string{"root_dictionary", "coclustering_model"},
				Outputs: []string{"deployment_dictionary"},
				Run: o.recordOutput("deployment_dictionary", result.DeploymentDictionary,
					o.engineStep(specs, TaskPrepareCoclusteringDeployment, func(state *pipeline.State) map[string]any {
						values := map[string]any{
							"dictionary_file_path":      state.Get("root_dictionary"),
							"dictionary_name":           rootName,
							"coclustering_file_path":    state.Get("coclustering_model"),
							"table_variable":            tableVariable,
							"deployed_variable_name":    req.DeployedVariableName,
							"results_dir":               req.ResultsDir,
							"max_preserved_information": req.MaxPreservedInformation,
							"max_cells":                 req.MaxCells,
							"build_cluster_variable":    buildCluster,
							"build_distance_variables":  req.BuildDistanceVariables,
							"build_frequency_variables": req.BuildFrequencyVariables,
							"variables_prefix":          req.VariablesPrefix,
							"results_prefix":            req.ResultsPrefix,
						}
						if req.MaxPartNumbers != nil {
							values["max_part_numbers"] = req.MaxPartNumbers
						}
						return values
					}, &result.Scenarios)),
			},
			{
				Name:    TaskExtractKeys,
				Kind:    pipeline.EngineCall,
				Inputs:  []string{"root_dictionary", "data_table"},
				Outputs: []string{"keys_table"},
				Run: o.recordOutput("keys_table", result.KeysTable,
					o.engineStep(specs, TaskExtractKeys, func(state *pipeline.State) map[string]any {
						return map[string]any{
							"dictionary_file_path":   state.Get("root_dictionary"),
							"dictionary_name":        req.DictionaryName,
							"data_table_path":        state.Get("data_table"),
							"output_data_table_path": result.KeysTable,
							"header_line":            input.HeaderLine,
							"field_separator":        input.EngineSeparator(),
							"output_header_line":     input.HeaderLine,
							"output_field_separator": input.EngineSeparator(),
						}
					}, &result.Scenarios)),
			},
			{
				Name:    TaskDeployModel,
				Kind:    pipeline.EngineCall,
				Inputs:  []string{"deployment_dictionary", "keys_table", "data_table"},
				Outputs: []string{"deployed_table"},
				Run: o.recordOutput("deployed_table", result.DeployedTable,
					o.engineStep(specs, TaskDeployModel, func(state *pipeline.State) map[string]any {
						return map[string]any{
							"dictionary_file_path":   state.Get("deployment_dictionary"),
							"dictionary_name":        rootName,
							"data_table_path":        state.Get("keys_table"),
							"output_data_table_path": result.DeployedTable,
							"header_line":            input.HeaderLine,
							"field_separator":        input.EngineSeparator(),
							"output_header_line":     output.HeaderLine,
							"output_field_separator": output.EngineSeparator(),
							"additional_data_tables": params.NewMapping(rootName+"`"+tableVariable, state.Get("data_table")),
						}
					}, &result.Scenarios)),
			},
		},
	}

	if _, err := o.runPipeline(ctx, p, map[string]string{
		"data_table":         req.DataTable,
		"coclustering_model": req.CoclusteringFile,
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// recordOutput runs step and then records path as the named output.
func (o *Orchestrator) recordOutput(name, path string, step func(context.Context, *pipeline.State) error) func(context.Context, *pipeline.State) error {
	return func(ctx context.Context, state *pipeline.State) error {
		if err := step(ctx, state); err != nil {
			return err
		}
		state.Set(name, path)
		return nil
	}
}
