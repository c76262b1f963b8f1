package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourceplane/khiopsctl/internal/fsys"
	"github.com/sourceplane/khiopsctl/internal/loader"
	"github.com/sourceplane/khiopsctl/internal/logger"
	"github.com/sourceplane/khiopsctl/internal/orchestrator"
	"github.com/sourceplane/khiopsctl/internal/pipeline"
	"github.com/sourceplane/khiopsctl/internal/runner"
	"github.com/sourceplane/khiopsctl/internal/task"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// app bundles what the engine-facing commands need.
type app struct {
	registry *task.Registry
	engine   *runner.ProcessEngine
	orch     *orchestrator.Orchestrator
	metrics  *prometheus.Registry
}

func loadRegistry() (*task.Registry, error) {
	l, err := loader.New(afero.NewOsFs())
	if err != nil {
		return nil, err
	}
	registry, err := l.LoadRegistry(catalogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load task catalogs: %w", err)
	}
	return registry, nil
}

func newApp() (*app, error) {
	registry, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	policy, err := pipeline.ParseCleanupPolicy(cfg.Temp.Cleanup)
	if err != nil {
		return nil, err
	}

	fs := fsys.NewOS(cfg.Temp.Dir)
	metrics := prometheus.NewRegistry()
	engine := runner.NewProcessEngine(cfg.Engine.Bin, cfg.Engine.CoclusteringBin, fs, os.Stdout)
	engine.DryRun = cfg.Engine.DryRun
	engine.Timeout = cfg.Engine.Timeout
	engine.PinnedVersion = cfg.Engine.Version
	engine.Metrics = runner.NewMetrics(metrics)

	return &app{
		registry: registry,
		engine:   engine,
		metrics:  metrics,
		orch: orchestrator.New(registry, engine, fs,
			orchestrator.WithCleanupPolicy(policy),
			orchestrator.WithProgress(os.Stdout)),
	}, nil
}

// withApp builds the app, runs fn and writes the metrics file whatever the
// outcome. fn receives the running command so that it reads its own flags.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() {
			if metricsFile == "" {
				return
			}
			if writeErr := prometheus.WriteToTextfile(metricsFile, a.metrics); writeErr != nil {
				logger.FromContext(cmd.Context()).Warn("failed to write metrics", "path", metricsFile, "error", writeErr)
			}
		}()
		return fn(cmd, a, args)
	}
}
