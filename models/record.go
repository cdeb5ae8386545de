package models

// Record holds the positional values of one row of a stream.
// A nil value is missing, String and Nominal values are string and Numeric values float64.
type Record []interface{}

// Copy returns a shallow copy of the record.
func (r Record) Copy() Record {
	if r == nil {
		return nil
	}
	c := make(Record, len(r))
	copy(c, r)
	return c
}

// Missing reports whether v is a missing value.
func Missing(v interface{}) bool {
	return v == nil
}

// Fields maps the record values by attribute name.
// Missing values are omitted.
func (r Record) Fields(s *Schema) map[string]interface{} {
	fields := make(map[string]interface{}, len(r))
	for i, v := range r {
		if v == nil || i >= s.Len() {
			continue
		}
		fields[s.Attribute(i).Name] = v
	}
	return fields
}
