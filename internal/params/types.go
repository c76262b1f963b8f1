// Package params implements the typed validators and serializers used to turn
// task parameter values into script text.
package params

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/sourceplane/khiopsctl/internal/errs"
)

// Type validates raw parameter values and formats them for the engine script.
//
// Format returns the lines a value expands to: exactly one line for scalar types,
// two lines per entry (key then value) for mappings. Returned text never contains
// a line break.
type Type interface {
	Name() string
	Validate(name string, raw any) (any, error)
	Format(value any) []string
	IsEmpty(value any) bool
}

// Scalar reports whether t formats to a single line.
func Scalar(t Type) bool {
	_, isMapping := t.(*MappingType)
	return !isMapping
}

var (
	Bool       Type = boolType{}
	Int        Type = intType{}
	StringLike Type = stringLikeType{}
)

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (boolType) Validate(name string, raw any) (any, error) {
	b, ok := raw.(bool)
	if !ok {
		return nil, errs.TypeMismatch(name, "bool", raw)
	}
	return b, nil
}

func (boolType) Format(value any) []string {
	if b, _ := value.(bool); b {
		return []string{"true"}
	}
	return []string{"false"}
}

func (boolType) IsEmpty(value any) bool { return value == nil }

type intType struct{}

func (intType) Name() string { return "int" }

func (intType) Validate(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int8, int16, int32, int64:
		return reflect.ValueOf(v).Int(), nil
	case uint, uint8, uint16, uint32, uint64:
		u := reflect.ValueOf(v).Uint()
		if u > math.MaxInt64 {
			return nil, errs.TypeMismatch(name, "int", raw)
		}
		return int64(u), nil
	case float32:
		return integralFloat(name, float64(v), raw)
	case float64:
		return integralFloat(name, v, raw)
	}
	return nil, errs.TypeMismatch(name, "int", raw)
}

func integralFloat(name string, f float64, raw any) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f > math.MaxInt64 || f < math.MinInt64 {
		return nil, errs.TypeMismatch(name, "int", raw)
	}
	return int64(f), nil
}

func (intType) Format(value any) []string {
	v, _ := value.(int64)
	return []string{strconv.FormatInt(v, 10)}
}

func (intType) IsEmpty(value any) bool { return value == nil }

type stringLikeType struct{}

func (stringLikeType) Name() string { return "string" }

// Validate accepts strings, byte slices and fmt.Stringer values. Values holding a
// line break are rejected since they would split a script directive.
func (stringLikeType) Validate(name string, raw any) (any, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case fmt.Stringer:
		s = v.String()
	default:
		return nil, errs.TypeMismatch(name, "string", raw)
	}
	if strings.ContainsAny(s, "\r\n") {
		e := errs.TypeMismatch(name, "single-line string", raw)
		e.Detail = "value contains a line break"
		return nil, e
	}
	return s, nil
}

func (stringLikeType) Format(value any) []string {
	s, _ := value.(string)
	return []string{s}
}

func (stringLikeType) IsEmpty(value any) bool {
	s, _ := value.(string)
	return s == ""
}

// MappingType is a mapping whose keys satisfy Key and values satisfy Value.
type MappingType struct {
	Key   Type
	Value Type
}

// MappingOf returns the mapping type over the given key and value types. Only
// scalar key and value types are meaningful.
func MappingOf(key, value Type) *MappingType {
	return &MappingType{Key: key, Value: value}
}

func (t *MappingType) Name() string {
	return fmt.Sprintf("map[%s]%s", t.Key.Name(), t.Value.Name())
}

// Validate accepts a *Mapping, or a plain Go map holding at most one entry since
// Go maps carry no insertion order. nil validates to an empty mapping.
func (t *MappingType) Validate(name string, raw any) (any, error) {
	if raw == nil {
		return (*Mapping)(nil), nil
	}
	var entries []Entry
	switch v := raw.(type) {
	case *Mapping:
		entries = v.Entries()
	case Mapping:
		entries = v.Entries()
	default:
		rv := reflect.ValueOf(raw)
		if rv.Kind() != reflect.Map {
			return nil, errs.TypeMismatch(name, t.Name(), raw)
		}
		if rv.Len() > 1 {
			e := errs.TypeMismatch(name, "ordered "+t.Name(), raw)
			e.Detail = "use params.Mapping to pass more than one entry"
			return nil, e
		}
		iter := rv.MapRange()
		for iter.Next() {
			entries = append(entries, Entry{Key: iter.Key().Interface(), Value: iter.Value().Interface()})
		}
	}

	out := NewMapping()
	for _, entry := range entries {
		k, err := t.Key.Validate(name, entry.Key)
		if err != nil {
			return nil, err
		}
		v, err := t.Value.Validate(name, entry.Value)
		if err != nil {
			return nil, err
		}
		out.Set(k, v)
	}
	return out, nil
}

func (t *MappingType) Format(value any) []string {
	m, _ := value.(*Mapping)
	lines := make([]string, 0, 2*m.Len())
	for _, entry := range m.Entries() {
		lines = append(lines, t.Key.Format(entry.Key)...)
		lines = append(lines, t.Value.Format(entry.Value)...)
	}
	return lines
}

func (t *MappingType) IsEmpty(value any) bool {
	m, _ := value.(*Mapping)
	return m.Len() == 0
}

// Parse resolves a type name as written in task catalogs: bool, int, string,
// map[<key>]<value>.
func Parse(name string) (Type, error) {
	name = strings.TrimSpace(name)
	switch name {
	case "bool":
		return Bool, nil
	case "int":
		return Int, nil
	case "string":
		return StringLike, nil
	}
	if strings.HasPrefix(name, "map[") {
		end := strings.Index(name, "]")
		if end < 0 {
			return nil, fmt.Errorf("invalid mapping type %q", name)
		}
		key, err := Parse(name[len("map["):end])
		if err != nil {
			return nil, err
		}
		value, err := Parse(name[end+1:])
		if err != nil {
			return nil, err
		}
		if !Scalar(key) || !Scalar(value) {
			return nil, fmt.Errorf("invalid mapping type %q: nested mappings are not supported", name)
		}
		return MappingOf(key, value), nil
	}
	return nil, fmt.Errorf("unknown parameter type %q", name)
}
