package orchestrator

import (
	"context"
	"strings"

	"github.com/sourceplane/khiopsctl/internal/dictionary"
	"github.com/sourceplane/khiopsctl/internal/errs"
	"github.com/sourceplane/khiopsctl/internal/format"
	"github.com/sourceplane/khiopsctl/internal/params"
	"github.com/sourceplane/khiopsctl/internal/pipeline"
	"github.com/sourceplane/khiopsctl/internal/render"
	"github.com/sourceplane/khiopsctl/internal/task"
)

// Sampling modes of deploy_model.
const (
	IncludeSample = "Include sample"
	ExcludeSample = "Exclude sample"
)

// DefaultSamplePercentage matches the engine's default train/test split.
const DefaultSamplePercentage = 70

// PredictorMetricsDeployment describes the deployment of the columns needed to
// score a predictor: the target, the prediction and the class probabilities of
// a classifier, or the mean of a regressor.
type PredictorMetricsDeployment struct {
	DictionaryFile  string `validate:"required_without=Domain"`
	Domain          *dictionary.Domain
	DictionaryName  string `validate:"required"`
	DataTable       string `validate:"required"`
	OutputDataTable string `validate:"required"`

	// SkipFormatDetection keeps the defaults for values HeaderLine and
	// FieldSeparator leave unset instead of reading the head of DataTable.
	SkipFormatDetection bool
	HeaderLine          *bool
	FieldSeparator      *rune

	// SamplePercentage defaults to DefaultSamplePercentage when zero.
	SamplePercentage     int    `validate:"min=0,max=100"`
	SamplingMode         string `validate:"omitempty,oneof='Include sample' 'Exclude sample'"`
	AdditionalDataTables *params.Mapping

	OutputHeaderLine     *bool
	OutputFieldSeparator *rune
}

// PredictorResult lists what a predictor deployment produced.
type PredictorResult struct {
	OutputDataTable string
	PredictorType   string
	UsedVariables   []string
	Scenarios       []*render.Scenario
}

// SelectMetricsVariables marks as used only the variables needed to compute
// performance metrics and returns their names. dict must carry PredictorType
// meta-data.
func SelectMetricsVariables(dict *dictionary.Dictionary) (string, []string, error) {
	predictorType, ok := dict.Meta.String("PredictorType")
	if !ok {
		return "", nil, &errs.SchemaError{Dictionary: dict.Name, Reason: "is not a predictor"}
	}
	isClassifier := predictorType == "Classifier"

	dict.UseAllVariables(false)
	var used []string
	for _, v := range dict.Variables {
		switch {
		case v.Meta.Has("TargetVariable"):
			v.Used = true
		case isClassifier:
			if v.Meta.Has("Prediction") {
				v.Used = true
			}
			for _, key := range v.Meta.Keys() {
				if strings.HasPrefix(key, "TargetProb") {
					v.Used = true
				}
			}
		case v.Meta.Has("Mean"):
			v.Used = true
		}
		if v.Used {
			used = append(used, v.Name)
		}
	}
	return predictorType, used, nil
}

// DeployPredictorForMetrics deploys the target, prediction and score columns
// of a predictor on a data table.
func (o *Orchestrator) DeployPredictorForMetrics(ctx context.Context, req PredictorMetricsDeployment) (*PredictorResult, error) {
	const operation = "deploy_predictor_for_metrics"
	if err := o.checkRequest(operation, req); err != nil {
		return nil, err
	}
	specs := make(map[string]*task.Spec, 1)

	samplePercentage := req.SamplePercentage
	if samplePercentage == 0 {
		samplePercentage = DefaultSamplePercentage
	}
	samplingMode := req.SamplingMode
	if samplingMode == "" {
		samplingMode = IncludeSample
	}
	output := outputFormat(req.OutputHeaderLine, req.OutputFieldSeparator)

	result := &PredictorResult{OutputDataTable: req.OutputDataTable}
	var (
		dom   *dictionary.Domain
		dict  *dictionary.Dictionary
		input format.Format
	)

	p := &pipeline.Pipeline{
		Name:   operation,
		Inputs: []string{"data_table"},
		Steps: []pipeline.Step{
			{
				Name: "resolve-schema",
				Kind: pipeline.LocalDerivation,
				Run: func(context.Context, *pipeline.State) error {
					var err error
					if dom, err = o.loadDomain(req.DictionaryFile, req.Domain); err != nil {
						return err
					}
					dict, err = lookupDictionary(dom, req.DictionaryName)
					return err
				},
			},
			{
				Name:    "select-metrics-variables",
				Kind:    pipeline.LocalDerivation,
				Outputs: []string{"predictor_dictionary"},
				Run: func(_ context.Context, state *pipeline.State) error {
					predictorType, used, err := SelectMetricsVariables(dict)
					if err != nil {
						return err
					}
					result.PredictorType, result.UsedVariables = predictorType, used
					path := state.Scope.Temp("_deploy_predictor_", ".kdic")
					if err := dictionary.WriteFile(o.fs.Afero(), path, dom); err != nil {
						return err
					}
					state.Set("predictor_dictionary", path)
					return nil
				},
			},
			o.resolveStep(specs, TaskDeployModel),
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
				Name:    TaskDeployModel,
				Kind:    pipeline.EngineCall,
				Inputs:  []string{"predictor_dictionary", "data_table"},
				Outputs: []string{"output_table"},
				Run: o.recordOutput("output_table", req.OutputDataTable,
					o.engineStep(specs, TaskDeployModel, func(state *pipeline.State) map[string]any {
						values := map[string]any{
							"dictionary_file_path":   state.Get("predictor_dictionary"),
							"dictionary_name":        req.DictionaryName,
							"data_table_path":        state.Get("data_table"),
							"output_data_table_path": req.OutputDataTable,
							"header_line":            input.HeaderLine,
							"field_separator":        input.EngineSeparator(),
							"sample_percentage":      samplePercentage,
							"sampling_mode":          samplingMode,
							"output_header_line":     output.HeaderLine,
							"output_field_separator": output.EngineSeparator(),
						}
						if req.AdditionalDataTables != nil {
							values["additional_data_tables"] = req.AdditionalDataTables
						}
						return values
					}, &result.Scenarios)),
			},
		},
	}

	if _, err := o.runPipeline(ctx, p, map[string]string{"data_table": req.DataTable}); err != nil {
		return nil, err
	}
	return result, nil
}
