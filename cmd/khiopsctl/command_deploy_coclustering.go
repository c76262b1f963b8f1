package main

import (
	"fmt"

	"github.com/sourceplane/khiopsctl/internal/normalize"
	"github.com/sourceplane/khiopsctl/internal/orchestrator"
	"github.com/sourceplane/khiopsctl/internal/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var coclusteringFlags struct {
	dictionaryFile   string
	dictionaryName   string
	dataTable        string
	coclusteringFile string
	keys             []string
	deployedVariable string
	resultsDir       string
	detectFormat     bool
	input            tableFormatFlags
	output           tableFormatFlags

	maxPreservedInformation int
	maxCells                int
	maxPartNumbers          string
	buildCluster            bool
	buildDistance           bool
	buildFrequency          bool
	variablesPrefix         string
	resultsPrefix           string
}

var deployCoclusteringCmd = &cobra.Command{
	Use:   "deploy-coclustering",
	Short: "Deploy an individual-variable coclustering on a data table",
	Long: `Deploy a coclustering model on a data table. The results directory receives
Keys<table> with the key columns, Deployed<table> with the deployed variable and
Coclustering.kdic, the deployment dictionary.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		ctx := cmd.Context()
		req, err := coclusteringRequest(cmd.Flags())
		if err != nil {
			return err
		}
		fmt.Printf("□ Deploying coclustering %s on %s...\n", req.CoclusteringFile, req.DataTable)
		result, err := a.orch.DeployCoclustering(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Deployment complete (%d engine tasks)\n", len(result.Scenarios))
		for _, path := range result.Paths() {
			fmt.Printf("  - %s\n", path)
		}
		return nil
	}),
}

func coclusteringRequest(flags *pflag.FlagSet) (orchestrator.CoclusteringDeployment, error) {
	f := &coclusteringFlags
	req := orchestrator.CoclusteringDeployment{
		DictionaryFile:          f.dictionaryFile,
		DictionaryName:          f.dictionaryName,
		DataTable:               f.dataTable,
		CoclusteringFile:        f.coclusteringFile,
		KeyVariables:            f.keys,
		DeployedVariableName:    f.deployedVariable,
		ResultsDir:              f.resultsDir,
		SkipFormatDetection:     !f.detectFormat,
		MaxPreservedInformation: f.maxPreservedInformation,
		MaxCells:                f.maxCells,
		BuildClusterVariable:    orchestrator.Bool(f.buildCluster),
		BuildDistanceVariables:  f.buildDistance,
		BuildFrequencyVariables: f.buildFrequency,
		VariablesPrefix:         f.variablesPrefix,
		ResultsPrefix:           f.resultsPrefix,
	}
	var err error
	if req.HeaderLine, req.FieldSeparator, err = f.input.values(flags); err != nil {
		return req, err
	}
	if req.OutputHeaderLine, req.OutputFieldSeparator, err = f.output.values(flags); err != nil {
		return req, err
	}
	if f.maxPartNumbers != "" {
		parts, err := normalize.ParseValue(params.MappingOf(params.StringLike, params.Int), "max-part-numbers", f.maxPartNumbers)
		if err != nil {
			return req, err
		}
		req.MaxPartNumbers = parts.(*params.Mapping)
	}
	return req, nil
}

func registerDeployCoclusteringCommand(root *cobra.Command) {
	root.AddCommand(deployCoclusteringCmd)

	f := &coclusteringFlags
	flags := deployCoclusteringCmd.Flags()
	flags.StringVarP(&f.dictionaryFile, "dictionary-file", "d", "", "Dictionary file describing the data table")
	flags.StringVarP(&f.dictionaryName, "dictionary", "n", "", "Name of the dictionary of the data table")
	flags.StringVarP(&f.dataTable, "data-table", "t", "", "Data table to deploy on")
	flags.StringVarP(&f.coclusteringFile, "coclustering-file", "m", "", "Coclustering report (.khcj)")
	flags.StringSliceVarP(&f.keys, "key", "k", nil, "Key variables of the data table (repeatable or comma-separated)")
	flags.StringVar(&f.deployedVariable, "deployed-variable", "", "Coclustering variable to deploy")
	flags.StringVarP(&f.resultsDir, "results-dir", "r", "", "Directory receiving the deployment results")
	flags.BoolVar(&f.detectFormat, "detect-format", true, "Detect header and separator of the data table when not given")
	f.input.register(flags, "", "input")
	f.output.register(flags, "output-", "output")
	flags.IntVar(&f.maxPreservedInformation, "max-preserved-information", 0, "Percentage of information preserved by simplification (0 keeps everything)")
	flags.IntVar(&f.maxCells, "max-cells", 0, "Maximum number of cells of the simplified coclustering (0 means no limit)")
	flags.StringVar(&f.maxPartNumbers, "max-part-numbers", "", "Part limits per variable, as Var=N,Var=N")
	flags.BoolVar(&f.buildCluster, "build-cluster-variable", true, "Deploy the cluster of each individual")
	flags.BoolVar(&f.buildDistance, "build-distance-variables", false, "Deploy the distances to every cluster")
	flags.BoolVar(&f.buildFrequency, "build-frequency-variables", false, "Deploy frequency recoding variables")
	flags.StringVar(&f.variablesPrefix, "variables-prefix", "", "Prefix of the deployed variables")
	flags.StringVar(&f.resultsPrefix, "results-prefix", "", "Prefix of the engine result files")

	for _, name := range []string{"dictionary-file", "dictionary", "data-table", "coclustering-file", "key", "deployed-variable", "results-dir"} {
		_ = deployCoclusteringCmd.MarkFlagRequired(name)
	}
}
