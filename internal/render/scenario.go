package render

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourceplane/khiopsctl/internal/errs"
	"github.com/sourceplane/khiopsctl/internal/params"
	"github.com/sourceplane/khiopsctl/internal/script"
	"github.com/sourceplane/khiopsctl/internal/task"
	"github.com/spf13/afero"
)

// Scenario is the script text of one engine invocation plus the artifact paths
// it reads or writes.
type Scenario struct {
	Task      string
	Component string
	Version   string
	Text      string
	Artifacts []string
}

// Renderer turns a task spec and a binding into a Scenario.
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render substitutes the binding into the spec template. Required-flagged
// parameters are checked before anything is expanded.
func (r *Renderer) Render(spec *task.Spec, binding task.Binding) (*Scenario, error) {
	if spec == nil {
		return nil, fmt.Errorf("task spec cannot be nil")
	}
	for _, name := range spec.RequiredFlags() {
		p, _ := spec.Parameter(name)
		value, ok := binding[name]
		if !ok || p.Type.IsEmpty(value) {
			return nil, errs.MissingParameter(spec.Name(), name)
		}
	}

	var sb strings.Builder
	for _, node := range spec.Template().Nodes() {
		switch node.Kind {
		case script.LiteralNode:
			sb.WriteString(node.Text)
			sb.WriteByte('\n')
		case script.ScalarNode:
			for _, seg := range node.Segments {
				if seg.Token == "" {
					sb.WriteString(seg.Text)
					continue
				}
				sb.WriteString(formatScalar(spec, seg.Token, binding[seg.Token]))
			}
			sb.WriteByte('\n')
		case script.MappingNode:
			writeMappingBlock(&sb, spec, node, binding[node.Token])
		}
	}

	return &Scenario{
		Task:      spec.Name(),
		Component: spec.Component(),
		Version:   spec.MinVersion().Original(),
		Text:      sb.String(),
		Artifacts: collectArtifacts(spec, binding),
	}, nil
}

// RenderValues binds raw caller values to spec and renders the result.
func (r *Renderer) RenderValues(spec *task.Spec, values map[string]any) (*Scenario, error) {
	binding, err := spec.Bind(values)
	if err != nil {
		return nil, err
	}
	return r.Render(spec, binding)
}

func formatScalar(spec *task.Spec, name string, value any) string {
	p, _ := spec.Parameter(name)
	lines := p.Type.Format(value)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

// writeMappingBlock writes one key line and one value line per entry. An empty
// mapping writes nothing.
func writeMappingBlock(sb *strings.Builder, spec *task.Spec, node script.Node, value any) {
	p, _ := spec.Parameter(node.Token)
	lines := p.Type.Format(value)
	for i := 0; i+1 < len(lines); i += 2 {
		fmt.Fprintf(sb, "%s %s\n", node.KeyField, lines[i])
		fmt.Fprintf(sb, "%s %s\n", node.ValueField, lines[i+1])
	}
}

func collectArtifacts(spec *task.Spec, binding task.Binding) []string {
	var artifacts []string
	declared := append(spec.Required(), spec.Optional()...)
	for _, p := range declared {
		if !p.Artifact {
			continue
		}
		value := binding[p.Name]
		if p.Type.IsEmpty(value) {
			continue
		}
		if m, ok := value.(*params.Mapping); ok {
			for _, entry := range m.Entries() {
				if s, ok := entry.Value.(string); ok && s != "" {
					artifacts = append(artifacts, s)
				}
			}
			continue
		}
		if s, ok := value.(string); ok {
			artifacts = append(artifacts, s)
		}
	}
	return artifacts
}

// WriteScenario writes the scenario text to path, creating parent directories.
func (r *Renderer) WriteScenario(fs afero.Fs, scenario *Scenario, path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := afero.WriteFile(fs, path, []byte(scenario.Text), 0o644); err != nil {
		return fmt.Errorf("failed to write scenario to %s: %w", path, err)
	}
	return nil
}

// DebugDump outputs debug information about the scenario
func (r *Renderer) DebugDump(scenario *Scenario) string {
	output := fmt.Sprintf("Scenario: %s (%s, spec %s)\n", scenario.Task, scenario.Component, scenario.Version)
	output += fmt.Sprintf("Artifacts: %d\n", len(scenario.Artifacts))
	for _, artifact := range scenario.Artifacts {
		output += fmt.Sprintf("  - %s\n", artifact)
	}
	output += "\n" + scenario.Text
	return output
}
