package render

import (
	"fmt"
	"strings"

	"github.com/sourceplane/khiopsctl/internal/task"
)

// CatalogViewer provides human-readable views of the registered task specs
type CatalogViewer struct {
	registry *task.Registry
}

// NewCatalogViewer creates a new catalog viewer
func NewCatalogViewer(registry *task.Registry) *CatalogViewer {
	return &CatalogViewer{registry: registry}
}

// ViewTree returns one branch per task name listing its version chain.
func (cv *CatalogViewer) ViewTree() string {
	names := cv.registry.Names()
	if len(names) == 0 {
		return "No tasks in catalog"
	}

	var sb strings.Builder
	for i, name := range names {
		isLastTask := i == len(names)-1
		taskPrefix := "├─ "
		connector := "│  "
		if isLastTask {
			taskPrefix = "└─ "
			connector = "   "
		}

		chain := cv.registry.Chain(name)
		sb.WriteString(fmt.Sprintf("%s%s [%s]\n", taskPrefix, name, chain[0].Component()))
		for j, spec := range chain {
			versionPrefix := "├─ "
			if j == len(chain)-1 {
				versionPrefix = "└─ "
			}
			sb.WriteString(fmt.Sprintf("%s%s>= %s (%d required, %d optional)\n",
				connector, versionPrefix, spec.MinVersion().Original(),
				len(spec.Required()), len(spec.Optional())))
		}
	}
	return sb.String()
}

// ViewTask shows the parameters of every spec of one task.
func (cv *CatalogViewer) ViewTask(name string) string {
	chain := cv.registry.Chain(name)
	if len(chain) == 0 {
		return fmt.Sprintf("No task found: %s", name)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s [%s]\n", name, chain[0].Component()))
	sb.WriteString("═══════════════════════════════════════════════════════════\n\n")

	for _, spec := range chain {
		sb.WriteString(fmt.Sprintf("Engine >= %s\n", spec.MinVersion().Original()))
		if spec.Description() != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", spec.Description()))
		}

		flagged := make(map[string]bool)
		for _, f := range spec.RequiredFlags() {
			flagged[f] = true
		}

		sb.WriteString("  Required:\n")
		for _, p := range spec.Required() {
			sb.WriteString(fmt.Sprintf("    %s (%s)%s\n", p.Name, p.Type.Name(), marker(flagged[p.Name])))
		}
		if optional := spec.Optional(); len(optional) > 0 {
			sb.WriteString("  Optional:\n")
			for _, p := range optional {
				def := "<none>"
				if p.Default != nil {
					def = strings.Join(p.Type.Format(p.Default), " ")
					if def == "" {
						def = `""`
					}
				}
				sb.WriteString(fmt.Sprintf("    %s (%s) = %s%s\n", p.Name, p.Type.Name(), def, marker(flagged[p.Name])))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func marker(nonEmpty bool) string {
	if nonEmpty {
		return " *non-empty"
	}
	return ""
}
