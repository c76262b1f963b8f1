package dictionary

import (
	"fmt"
	"strconv"
	"strings"
)

// MetaEntry is one meta-data key and its value. Value is a string, a float64 or
// true for a bare flag.
type MetaEntry struct {
	Key   string
	Value any
}

// MetaData is an ordered set of annotations attached to a dictionary or a
// variable.
type MetaData struct {
	entries []MetaEntry
}

// Has reports whether key is set.
func (m *MetaData) Has(key string) bool {
	return m.index(key) >= 0
}

// Value returns the value stored under key.
func (m *MetaData) Value(key string) (any, bool) {
	if i := m.index(key); i >= 0 {
		return m.entries[i].Value, true
	}
	return nil, false
}

// String returns the value under key as text. Numbers are formatted without
// trailing zeros.
func (m *MetaData) String(key string) (string, bool) {
	v, ok := m.Value(key)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return fmt.Sprint(v), true
}

// Keys returns the keys in insertion order.
func (m *MetaData) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Set stores value under key. Only strings, float64, ints and true are valid
// meta-data values.
func (m *MetaData) Set(key string, value any) error {
	switch v := value.(type) {
	case string, float64:
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case bool:
		if !v {
			return fmt.Errorf("meta-data flag %q can only be set to true", key)
		}
	default:
		return fmt.Errorf("meta-data %q: unsupported value type %T", key, value)
	}
	if i := m.index(key); i >= 0 {
		m.entries[i].Value = value
		return nil
	}
	m.entries = append(m.entries, MetaEntry{Key: key, Value: value})
	return nil
}

// Remove deletes key if present.
func (m *MetaData) Remove(key string) {
	if i := m.index(key); i >= 0 {
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
	}
}

// Len returns the number of entries.
func (m *MetaData) Len() int { return len(m.entries) }

func (m *MetaData) index(key string) int {
	for i, e := range m.entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}

func (m *MetaData) copy() MetaData {
	return MetaData{entries: append([]MetaEntry(nil), m.entries...)}
}

// format renders the entries as <Key="text"> <Key=1.5> <Flag>.
func (m *MetaData) format() string {
	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		switch v := e.Value.(type) {
		case string:
			parts = append(parts, fmt.Sprintf("<%s=%s>", e.Key, quote(v)))
		case float64:
			parts = append(parts, fmt.Sprintf("<%s=%s>", e.Key, strconv.FormatFloat(v, 'g', -1, 64)))
		default:
			parts = append(parts, fmt.Sprintf("<%s>", e.Key))
		}
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
