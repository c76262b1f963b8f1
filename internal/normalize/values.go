// Package normalize turns command-line name=value assignments into typed task
// parameter values.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sourceplane/khiopsctl/internal/errs"
	"github.com/sourceplane/khiopsctl/internal/params"
	"github.com/sourceplane/khiopsctl/internal/task"
)

// ParseAssignments converts name=value arguments into values for spec. Each
// value is parsed according to the declared parameter type. Mapping values
// are written as comma-separated key=value pairs and keep their order:
//
//	max_part_numbers=SepalLength=3,Class=2
func ParseAssignments(spec *task.Spec, args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected name=value", arg)
		}
		p, ok := spec.Parameter(name)
		if !ok {
			return nil, &errs.ParameterError{Kind: errs.ErrUnknownParameter, Task: spec.Name(), Parameter: name}
		}
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("parameter %s is assigned twice", name)
		}
		v, err := ParseValue(p.Type, name, raw)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}
	return values, nil
}

// ParseValue parses raw as a value of type t.
func ParseValue(t params.Type, name, raw string) (any, error) {
	if m, ok := t.(*params.MappingType); ok {
		return parseMapping(m, name, raw)
	}
	return parseScalar(t, name, raw)
}

func parseScalar(t params.Type, name, raw string) (any, error) {
	switch t {
	case params.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, errs.TypeMismatch(name, "bool", raw)
		}
		return b, nil
	case params.Int:
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, errs.TypeMismatch(name, "int", raw)
		}
		return i, nil
	}
	return t.Validate(name, raw)
}

func parseMapping(t *params.MappingType, name, raw string) (*params.Mapping, error) {
	m := params.NewMapping()
	if strings.TrimSpace(raw) == "" {
		return m, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid entry %q for %s: expected key=value", pair, name)
		}
		key, err := parseScalar(t.Key, name, strings.TrimSpace(k))
		if err != nil {
			return nil, err
		}
		value, err := parseScalar(t.Value, name, strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		if _, dup := m.Get(key); dup {
			return nil, fmt.Errorf("key %v of %s is listed twice", key, name)
		}
		m.Set(key, value)
	}
	return m, nil
}
