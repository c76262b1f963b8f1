package main

import (
	"context"
	"fmt"

	"github.com/sourceplane/khiopsctl/internal/normalize"
	"github.com/sourceplane/khiopsctl/internal/render"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	renderOutput string
	renderDebug  bool
)

var renderCmd = &cobra.Command{
	Use:   "render <task> [name=value ...]",
	Short: "Render the scenario of a task without running it",
	Long:  "Resolve the spec of a task for the engine version and print the scenario it renders to. Mapping values are written key=value,key=value.",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		ctx := cmd.Context()
		scenario, err := renderArgs(ctx, a, args)
		if err != nil {
			return err
		}
		renderer := render.NewRenderer()
		if renderOutput != "" {
			if err := renderer.WriteScenario(afero.NewOsFs(), scenario, renderOutput); err != nil {
				return err
			}
			fmt.Printf("✓ Scenario %s written to %s\n", scenario.Task, renderOutput)
			return nil
		}
		if renderDebug {
			fmt.Print(renderer.DebugDump(scenario))
			return nil
		}
		fmt.Print(scenario.Text)
		return nil
	}),
}

// renderArgs resolves the task named by args[0] and renders it with the
// name=value assignments that follow.
func renderArgs(ctx context.Context, a *app, args []string) (*render.Scenario, error) {
	spec, err := a.orch.Resolve(ctx, args[0])
	if err != nil {
		return nil, err
	}
	values, err := normalize.ParseAssignments(spec, args[1:])
	if err != nil {
		return nil, err
	}
	return a.orch.RenderTask(ctx, spec.Name(), values)
}

func registerRenderCommand(root *cobra.Command) {
	root.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write the scenario to this file")
	renderCmd.Flags().BoolVar(&renderDebug, "debug", false, "Print the resolved spec and artifacts with the scenario")
}
