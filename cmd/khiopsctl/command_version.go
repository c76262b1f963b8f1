package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the khiopsctl and engine versions",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		ctx := cmd.Context()
		fmt.Printf("khiopsctl %s\n", version)
		installed, err := a.orch.EngineVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("engine %s\n", installed)
		return nil
	}),
}

func registerVersionCommand(root *cobra.Command) {
	root.AddCommand(versionCmd)
}
