package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <task> [name=value ...]",
	Short: "Render a task and run it on the engine",
	Long:  "Resolve the spec of a task for the installed engine, render it and run the engine in batch mode. With --dry-run the scenario is printed instead.",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		ctx := cmd.Context()
		scenario, err := renderArgs(ctx, a, args)
		if err != nil {
			return err
		}
		fmt.Printf("□ Running %s (spec %s)...\n", scenario.Task, scenario.Version)
		if err := a.engine.Execute(ctx, scenario); err != nil {
			return err
		}
		if a.engine.DryRun {
			fmt.Println("✓ Dry-run complete")
			return nil
		}
		fmt.Printf("✓ %s complete\n", scenario.Task)
		for _, artifact := range scenario.Artifacts {
			fmt.Printf("  - %s\n", artifact)
		}
		return nil
	}),
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)
}
