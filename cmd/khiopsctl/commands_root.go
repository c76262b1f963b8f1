package main

import (
	"github.com/sourceplane/khiopsctl/internal/config"
	"github.com/sourceplane/khiopsctl/internal/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

var (
	configFile    string
	catalogDir    string
	engineVersion string
	dryRun        bool
	metricsFile   string
	tempDir       string
	cleanupPolicy string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "khiopsctl",
	Short:         "Drive the Khiops engine through versioned task scenarios",
	Long:          "khiopsctl renders batch scenarios for the installed Khiops engine from declarative task catalogs, runs them and chains them into deployment pipelines",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.NewLoader(afero.NewOsFs()).Load(configFile, configOverrides(cmd))
		if err != nil {
			return err
		}
		cfg = loaded

		level, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("log-level") {
			level = cfg.Log.Level
		}
		if !cmd.Flags().Changed("log-json") {
			logJSON = cfg.Log.JSON
		}
		logger.SetupLogger(level, logJSON, logSource)
		cmd.SetContext(logger.ContextWithLogger(cmd.Context(), logger.GetDefault()))
		return nil
	},
}

// configOverrides maps the flags the user set onto configuration keys. Flags
// left at their default do not shadow the config file or the environment.
func configOverrides(cmd *cobra.Command) map[string]any {
	overrides := make(map[string]any)
	flags := cmd.Flags()
	if flags.Changed("engine-version") {
		overrides["engine.version"] = engineVersion
	}
	if flags.Changed("dry-run") {
		overrides["engine.dry_run"] = dryRun
	}
	if flags.Changed("temp-dir") {
		overrides["temp.dir"] = tempDir
	}
	if flags.Changed("cleanup") {
		overrides["temp.cleanup"] = cleanupPolicy
	}
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		overrides["log.level"] = level
	}
	return overrides
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file (YAML)")
	flags.StringVar(&catalogDir, "catalog-dir", "", "Extra task catalogs (use * or ** for recursive scanning)")
	flags.StringVar(&engineVersion, "engine-version", "", "Assume this engine version instead of asking the engine")
	flags.BoolVar(&dryRun, "dry-run", false, "Print scenarios instead of running the engine")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write engine metrics in Prometheus text format to this file")
	flags.StringVar(&tempDir, "temp-dir", "", "Directory for temporary artifacts")
	flags.StringVar(&cleanupPolicy, "cleanup", "keep-on-failure", "When to remove temporaries: keep-on-failure, always or never")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Log in JSON format")
	flags.Bool("log-source", false, "Include source locations in logs")

	registerTasksCommand(rootCmd)
	registerRenderCommand(rootCmd)
	registerRunCommand(rootCmd)
	registerDeployCoclusteringCommand(rootCmd)
	registerDeployPredictorCommand(rootCmd)
	registerValidateCommand(rootCmd)
	registerVersionCommand(rootCmd)
}
