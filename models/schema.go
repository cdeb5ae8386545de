package models

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash"
)

// AttributeType is the type of the values held by an attribute.
type AttributeType int

const (
	String AttributeType = iota
	Numeric
	Nominal
	Date
)

func (t AttributeType) String() string {
	switch t {
	case String:
		return "string"
	case Numeric:
		return "numeric"
	case Nominal:
		return "nominal"
	case Date:
		return "date"
	default:
		return fmt.Sprintf("unknown attribute type %d", int(t))
	}
}

// ParseAttributeType returns the AttributeType named by s.
func ParseAttributeType(s string) (AttributeType, error) {
	switch strings.ToLower(s) {
	case "string", "":
		return String, nil
	case "numeric":
		return Numeric, nil
	case "nominal":
		return Nominal, nil
	case "date":
		return Date, nil
	}
	return 0, fmt.Errorf("unknown attribute type %q", s)
}

// Attribute describes one column of a record stream.
type Attribute struct {
	Name  string
	Type  AttributeType
	Index int
	// Values lists the allowed values of a Nominal attribute.
	Values []string
}

// Schema is the ordered set of attributes shared by every record of a stream.
// A Schema must not be modified once it has been announced on a stream.
type Schema struct {
	attrs   []Attribute
	byName  map[string]int
	fingerp uint64
}

// NewSchema creates a schema from attrs. Attribute indexes are assigned from the slice order.
// Duplicate attribute names are an error.
func NewSchema(attrs ...Attribute) (*Schema, error) {
	s := &Schema{
		attrs:  make([]Attribute, len(attrs)),
		byName: make(map[string]int, len(attrs)),
	}
	h := xxhash.New()
	for i, a := range attrs {
		if _, ok := s.byName[a.Name]; ok {
			return nil, fmt.Errorf("duplicate attribute name %q", a.Name)
		}
		a.Index = i
		if a.Values != nil {
			a.Values = append([]string(nil), a.Values...)
		}
		s.attrs[i] = a
		s.byName[a.Name] = i

		h.Write([]byte(a.Name))
		h.Write([]byte{0, byte(a.Type), 0})
		// Nominal values are part of the announced schema.
		for _, v := range a.Values {
			h.Write([]byte(v))
			h.Write([]byte{0})
		}
		h.Write([]byte{0xff})
	}
	s.fingerp = h.Sum64()
	return s, nil
}

// Len returns the number of attributes.
func (s *Schema) Len() int {
	return len(s.attrs)
}

// Attribute returns the attribute at index i.
func (s *Schema) Attribute(i int) Attribute {
	return s.attrs[i]
}

// Attributes returns a copy of all attributes in order.
func (s *Schema) Attributes() []Attribute {
	return append([]Attribute(nil), s.attrs...)
}

// Index returns the index of the attribute with the given name.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// Names returns the attribute names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		names[i] = a.Name
	}
	return names
}

// Fingerprint is a hash of the attribute names and types.
// Two schemas with the same fingerprint can share compiled state.
func (s *Schema) Fingerprint() uint64 {
	return s.fingerp
}

// WithAttribute returns a new schema with attr appended.
func (s *Schema) WithAttribute(attr Attribute) (*Schema, error) {
	return NewSchema(append(s.Attributes(), attr)...)
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, a := range s.attrs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Name)
		b.WriteByte(':')
		b.WriteString(a.Type.String())
	}
	b.WriteByte(']')
	return b.String()
}
