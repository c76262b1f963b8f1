package main

import (
	"fmt"
	"strings"

	"github.com/sourceplane/khiopsctl/internal/normalize"
	"github.com/sourceplane/khiopsctl/internal/orchestrator"
	"github.com/sourceplane/khiopsctl/internal/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var predictorFlags struct {
	dictionaryFile   string
	dictionaryName   string
	dataTable        string
	outputTable      string
	detectFormat     bool
	input            tableFormatFlags
	output           tableFormatFlags
	samplePercentage int
	samplingMode     string
	additionalTables string
}

var deployPredictorCmd = &cobra.Command{
	Use:   "deploy-predictor",
	Short: "Deploy the target, prediction and score columns of a predictor",
	Long:  "Deploy only the variables needed to evaluate a predictor on a data table: the target, and the prediction and class probabilities of a classifier or the mean of a regressor.",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		ctx := cmd.Context()
		req, err := predictorRequest(cmd.Flags())
		if err != nil {
			return err
		}
		result, err := a.orch.DeployPredictorForMetrics(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s deployed to %s\n", result.PredictorType, result.OutputDataTable)
		fmt.Printf("  Variables: %s\n", strings.Join(result.UsedVariables, ", "))
		return nil
	}),
}

func predictorRequest(flags *pflag.FlagSet) (orchestrator.PredictorMetricsDeployment, error) {
	f := &predictorFlags
	req := orchestrator.PredictorMetricsDeployment{
		DictionaryFile:      f.dictionaryFile,
		DictionaryName:      f.dictionaryName,
		DataTable:           f.dataTable,
		OutputDataTable:     f.outputTable,
		SkipFormatDetection: !f.detectFormat,
		SamplePercentage:    f.samplePercentage,
		SamplingMode:        f.samplingMode,
	}
	var err error
	if req.HeaderLine, req.FieldSeparator, err = f.input.values(flags); err != nil {
		return req, err
	}
	if req.OutputHeaderLine, req.OutputFieldSeparator, err = f.output.values(flags); err != nil {
		return req, err
	}
	if f.additionalTables != "" {
		tables, err := normalize.ParseValue(params.MappingOf(params.StringLike, params.StringLike), "additional-tables", f.additionalTables)
		if err != nil {
			return req, err
		}
		req.AdditionalDataTables = tables.(*params.Mapping)
	}
	return req, nil
}

func registerDeployPredictorCommand(root *cobra.Command) {
	root.AddCommand(deployPredictorCmd)

	f := &predictorFlags
	flags := deployPredictorCmd.Flags()
	flags.StringVarP(&f.dictionaryFile, "dictionary-file", "d", "", "Predictor dictionary file")
	flags.StringVarP(&f.dictionaryName, "dictionary", "n", "", "Name of the predictor dictionary")
	flags.StringVarP(&f.dataTable, "data-table", "t", "", "Data table to score")
	flags.StringVarP(&f.outputTable, "output", "o", "", "Output data table")
	flags.BoolVar(&f.detectFormat, "detect-format", true, "Detect header and separator of the data table when not given")
	f.input.register(flags, "", "input")
	f.output.register(flags, "output-", "output")
	flags.IntVar(&f.samplePercentage, "sample-percentage", orchestrator.DefaultSamplePercentage, "Percentage of the table to sample")
	flags.StringVar(&f.samplingMode, "sampling-mode", orchestrator.IncludeSample, "'Include sample' or 'Exclude sample'")
	flags.StringVar(&f.additionalTables, "additional-tables", "", "Secondary tables, as DataPath=file,DataPath=file")

	for _, name := range []string{"dictionary-file", "dictionary", "data-table", "output"} {
		_ = deployPredictorCmd.MarkFlagRequired(name)
	}
}
