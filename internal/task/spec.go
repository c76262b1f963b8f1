// Package task holds the declarative descriptions of engine operations and the
// registry that picks the right description for an installed engine version.
package task

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/sourceplane/khiopsctl/internal/errs"
	"github.com/sourceplane/khiopsctl/internal/params"
	"github.com/sourceplane/khiopsctl/internal/script"
)

// Parameter declares one task parameter. Optional parameters carry a default.
// Artifact marks parameters holding paths the engine reads or writes.
type Parameter struct {
	Name     string
	Type     params.Type
	Default  any
	Optional bool
	Artifact bool
}

// Definition is the raw material of a Spec.
type Definition struct {
	Name          string
	Component     string
	MinVersion    string
	Description   string
	Required      []Parameter
	Optional      []Parameter
	RequiredFlags []string
	Template      string
}

// Spec is an immutable, validated task description.
type Spec struct {
	name          string
	component     string
	description   string
	minVersion    *semver.Version
	required      []Parameter
	optional      []Parameter
	requiredFlags []string
	byName        map[string]Parameter
	template      *script.Template
}

// New validates def and builds a Spec from it.
func New(def Definition) (*Spec, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("task must have a name")
	}
	if def.Component == "" {
		return nil, fmt.Errorf("task %s must name its engine component", def.Name)
	}

	minVersion, err := semver.NewVersion(def.MinVersion)
	if err != nil {
		return nil, fmt.Errorf("task %s: invalid minimum version %q: %w", def.Name, def.MinVersion, err)
	}

	s := &Spec{
		name:        def.Name,
		component:   def.Component,
		description: def.Description,
		minVersion:  minVersion,
		byName:      make(map[string]Parameter),
	}

	for _, p := range def.Required {
		p.Optional = false
		p.Default = nil
		if err := s.declare(p); err != nil {
			return nil, err
		}
		s.required = append(s.required, p)
	}
	for _, p := range def.Optional {
		p.Optional = true
		if err := s.declare(p); err != nil {
			return nil, err
		}
		if p.Default != nil {
			v, err := p.Type.Validate(p.Name, p.Default)
			if err != nil {
				return nil, fmt.Errorf("task %s: invalid default: %w", def.Name, err)
			}
			p.Default = v
		}
		s.byName[p.Name] = p
		s.optional = append(s.optional, p)
	}

	for _, flag := range def.RequiredFlags {
		if _, ok := s.byName[flag]; !ok {
			return nil, fmt.Errorf("task %s: required flag %q is not a declared parameter", def.Name, flag)
		}
		s.requiredFlags = append(s.requiredFlags, flag)
	}

	tmpl, err := script.Parse(def.Template)
	if err != nil {
		return nil, fmt.Errorf("task %s: invalid template: %w", def.Name, err)
	}
	for _, token := range tmpl.Tokens() {
		if _, ok := s.byName[token]; !ok {
			return nil, fmt.Errorf("task %s: template token __%s__ has no declared parameter", def.Name, token)
		}
	}
	mappingTokens := make(map[string]bool)
	for _, token := range tmpl.MappingTokens() {
		mappingTokens[token] = true
		if params.Scalar(s.byName[token].Type) {
			return nil, fmt.Errorf("task %s: mapping block token __%s__ is not a mapping parameter", def.Name, token)
		}
	}
	for _, token := range tmpl.Tokens() {
		if !mappingTokens[token] && !params.Scalar(s.byName[token].Type) {
			return nil, fmt.Errorf("task %s: mapping parameter __%s__ must be used in a mapping block", def.Name, token)
		}
	}
	s.template = tmpl

	return s, nil
}

func (s *Spec) declare(p Parameter) error {
	if p.Name == "" {
		return fmt.Errorf("task %s: parameter without a name", s.name)
	}
	if p.Type == nil {
		return fmt.Errorf("task %s: parameter %q has no type", s.name, p.Name)
	}
	if _, dup := s.byName[p.Name]; dup {
		return fmt.Errorf("task %s: parameter %q is declared twice", s.name, p.Name)
	}
	s.byName[p.Name] = p
	return nil
}

// MustNew is New for statically known definitions.
func MustNew(def Definition) *Spec {
	s, err := New(def)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Spec) Name() string                { return s.name }
func (s *Spec) Component() string           { return s.component }
func (s *Spec) Description() string         { return s.description }
func (s *Spec) MinVersion() *semver.Version { return s.minVersion }
func (s *Spec) Template() *script.Template  { return s.template }

// Required returns the required parameters in declaration order.
func (s *Spec) Required() []Parameter { return append([]Parameter(nil), s.required...) }

// Optional returns the optional parameters in declaration order.
func (s *Spec) Optional() []Parameter { return append([]Parameter(nil), s.optional...) }

// RequiredFlags returns the names that must not be left empty.
func (s *Spec) RequiredFlags() []string { return append([]string(nil), s.requiredFlags...) }

// Parameter looks up a declared parameter.
func (s *Spec) Parameter(name string) (Parameter, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Binding maps every declared parameter name to its validated value.
type Binding map[string]any

// Bind resolves caller values against the declared defaults. Unknown names,
// missing required values and type mismatches are rejected. Required-flagged
// values are checked by the renderer.
func (s *Spec) Bind(values map[string]any) (Binding, error) {
	for name := range values {
		if _, ok := s.byName[name]; !ok {
			return nil, &errs.ParameterError{Kind: errs.ErrUnknownParameter, Task: s.name, Parameter: name}
		}
	}

	binding := make(Binding, len(s.byName))
	for _, p := range s.required {
		raw, ok := values[p.Name]
		if !ok || raw == nil {
			return nil, errs.MissingParameter(s.name, p.Name)
		}
		v, err := p.Type.Validate(p.Name, raw)
		if err != nil {
			return nil, withTask(err, s.name)
		}
		binding[p.Name] = v
	}
	for _, p := range s.optional {
		raw, ok := values[p.Name]
		if !ok || raw == nil {
			binding[p.Name] = p.Default
			continue
		}
		v, err := p.Type.Validate(p.Name, raw)
		if err != nil {
			return nil, withTask(err, s.name)
		}
		binding[p.Name] = v
	}
	return binding, nil
}

func withTask(err error, task string) error {
	if pe, ok := err.(*errs.ParameterError); ok {
		pe.Task = task
	}
	return err
}

func (s *Spec) String() string {
	return fmt.Sprintf("%s@%s", s.name, s.minVersion.Original())
}
