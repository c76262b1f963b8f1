package main

import (
	"fmt"

	"github.com/sourceplane/khiopsctl/internal/render"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks [task-name]",
	Aliases: []string{"task"},
	Short:   "List task specs and their version chains",
	Long:    "List every task of the loaded catalogs. Use 'khiopsctl tasks <name>' for the parameters of each spec.",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		viewer := render.NewCatalogViewer(registry)
		if len(args) > 0 {
			if len(registry.Chain(args[0])) == 0 {
				return fmt.Errorf("task not found: %s", args[0])
			}
			fmt.Print(viewer.ViewTask(args[0]))
			return nil
		}
		fmt.Println("Available Tasks:")
		fmt.Print(viewer.ViewTree())
		fmt.Println("\nRun 'khiopsctl tasks <name>' for detailed information")
		return nil
	},
}

func registerTasksCommand(root *cobra.Command) {
	root.AddCommand(tasksCmd)
}
