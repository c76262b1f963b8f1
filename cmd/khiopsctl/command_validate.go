package main

import (
	"fmt"

	"github.com/sourceplane/khiopsctl/internal/loader"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [catalog-dir ...]",
	Short: "Validate task catalogs",
	Long:  "Check catalogs against the catalog schema and check that they build an unambiguous registry together with the builtin catalogs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := loader.New(afero.NewOsFs())
		if err != nil {
			return err
		}
		dirs := args
		if catalogDir != "" {
			dirs = append(dirs, catalogDir)
		}

		fmt.Println("□ Validating builtin catalogs...")
		catalogs, err := l.Builtin()
		if err != nil {
			return err
		}
		for _, dir := range dirs {
			fmt.Printf("□ Validating catalogs in %s...\n", dir)
			extra, err := l.LoadCatalogsFromDir(dir)
			if err != nil {
				return err
			}
			catalogs = append(catalogs, extra...)
		}

		fmt.Println("□ Building task registry...")
		registry, err := loader.BuildRegistry(catalogs...)
		if err != nil {
			return err
		}

		fmt.Printf("✓ %d catalogs valid, %d tasks\n", len(catalogs), len(registry.Names()))
		return nil
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}
