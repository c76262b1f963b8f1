package params

// Entry is a single key/value pair of a Mapping.
type Entry struct {
	Key   any
	Value any
}

// Mapping is an insertion-ordered map. Rendering a mapping parameter follows the
// order in which the caller set its keys.
type Mapping struct {
	entries []Entry
	index   map[any]int
}

// NewMapping builds a Mapping from alternating key/value arguments.
func NewMapping(kv ...any) *Mapping {
	m := &Mapping{index: make(map[any]int)}
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

// Set stores value under key. Overwriting a key keeps its original position.
func (m *Mapping) Set(key, value any) {
	if m.index == nil {
		m.index = make(map[any]int)
	}
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m *Mapping) Get(key any) (any, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Len returns the number of entries; a nil Mapping is empty.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the entries in insertion order.
func (m *Mapping) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
