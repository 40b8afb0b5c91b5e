package column

import (
	"fmt"
	"strings"
)

// Field is a single named, typed entry in a schema.
type Field struct {
	Name string
	Type DataType
}

// Schema is an ordered mapping from distinct column name to type. It is
// derivable for any plan node without executing the plan and is what the
// plan builder validates expressions against.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema constructs a schema from ordered fields. Duplicate names fail.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{fields: append([]Field(nil), fields...), index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q in schema", f.Name)
		}
		s.index[f.Name] = i
	}
	return s, nil
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns the ordered fields.
func (s *Schema) Fields() []Field { return append([]Field(nil), s.fields...) }

// Names returns the ordered column names.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// TypeOf returns the type of the named column.
func (s *Schema) TypeOf(name string) (DataType, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.fields[i].Type, true
}

// Has reports whether the schema contains the named column.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Equal reports whether two schemas have identical field order, names and
// types.
func (s *Schema) Equal(other *Schema) bool {
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		if other.fields[i] != f {
			return false
		}
	}
	return true
}

// String renders the schema as "name:type, ...".
func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Name + ":" + f.Type.String()
	}
	return strings.Join(parts, ", ")
}
