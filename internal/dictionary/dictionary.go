// Package dictionary models the engine's data dictionaries: the schema of the
// tables an operation reads, with keys, variables and meta-data.
package dictionary

import (
	"fmt"
)

// Variable types understood by the engine.
const (
	Categorical = "Categorical"
	Numerical   = "Numerical"
	Date        = "Date"
	Time        = "Time"
	Timestamp   = "Timestamp"
	TimestampTZ = "TimestampTZ"
	Text        = "Text"
	Table       = "Table"
	Entity      = "Entity"
	Structure   = "Structure"
)

// Variable is one column or derived attribute of a dictionary.
type Variable struct {
	Name    string
	Type    string
	RefType string
	Rule    string
	Used    bool
	Meta    MetaData
}

// IsNative reports whether the variable is read from the data table rather than
// computed by a rule.
func (v *Variable) IsNative() bool {
	return v.Rule == "" && !v.IsRelation()
}

// IsRelation reports whether the variable points to a secondary dictionary.
func (v *Variable) IsRelation() bool {
	return v.Type == Table || v.Type == Entity
}

func (v *Variable) copy() *Variable {
	c := *v
	c.Meta = v.Meta.copy()
	return &c
}

// Dictionary is the schema of one table.
type Dictionary struct {
	Name      string
	Root      bool
	Key       []string
	Meta      MetaData
	Variables []*Variable
}

// New creates an empty dictionary.
func New(name string) *Dictionary {
	return &Dictionary{Name: name}
}

// Variable looks up a variable by name.
func (d *Dictionary) Variable(name string) (*Variable, bool) {
	for _, v := range d.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// AddVariable appends v. Variable names are unique within a dictionary.
func (d *Dictionary) AddVariable(v *Variable) error {
	if v.Name == "" {
		return fmt.Errorf("dictionary %s: variable without a name", d.Name)
	}
	if _, exists := d.Variable(v.Name); exists {
		return fmt.Errorf("dictionary %s: variable %q already exists", d.Name, v.Name)
	}
	d.Variables = append(d.Variables, v)
	return nil
}

// RemoveVariable deletes the named variable.
func (d *Dictionary) RemoveVariable(name string) bool {
	for i, v := range d.Variables {
		if v.Name == name {
			d.Variables = append(d.Variables[:i], d.Variables[i+1:]...)
			return true
		}
	}
	return false
}

// UseAllVariables marks every variable used or unused.
func (d *Dictionary) UseAllVariables(used bool) {
	for _, v := range d.Variables {
		v.Used = used
	}
}

// NativeVariables returns the variables read from the data file, in order.
func (d *Dictionary) NativeVariables() []*Variable {
	var out []*Variable
	for _, v := range d.Variables {
		if v.IsNative() {
			out = append(out, v)
		}
	}
	return out
}

// Copy returns a deep copy of d.
func (d *Dictionary) Copy() *Dictionary {
	c := &Dictionary{
		Name: d.Name,
		Root: d.Root,
		Key:  append([]string(nil), d.Key...),
		Meta: d.Meta.copy(),
	}
	for _, v := range d.Variables {
		c.Variables = append(c.Variables, v.copy())
	}
	return c
}

// Domain is an ordered collection of dictionaries, as stored in one .kdic file.
type Domain struct {
	Dictionaries []*Dictionary
}

// Get looks up a dictionary by name.
func (dom *Domain) Get(name string) (*Dictionary, bool) {
	for _, d := range dom.Dictionaries {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Add appends d. Dictionary names are unique within a domain.
func (dom *Domain) Add(d *Dictionary) error {
	if _, exists := dom.Get(d.Name); exists {
		return fmt.Errorf("dictionary %q already exists in domain", d.Name)
	}
	dom.Dictionaries = append(dom.Dictionaries, d)
	return nil
}

// Copy returns a deep copy of the domain.
func (dom *Domain) Copy() *Domain {
	c := &Domain{}
	for _, d := range dom.Dictionaries {
		c.Dictionaries = append(c.Dictionaries, d.Copy())
	}
	return c
}
