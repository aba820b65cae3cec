package metadata

type Model struct {
	Name       string     `json:"name"`
	Table      string     `json:"table"`
	PrimaryKey PrimaryKey `json:"primary_key"`
	Fields     []Field    `json:"fields"`

	// Allow-lists: when non-empty, only the listed field names are
	// filterable/searchable.
	FilterFields []string `json:"filter_fields,omitempty"`
	SearchFields []string `json:"search_fields,omitempty"`
}

type PrimaryKey struct {
	Field     string `json:"field"`
	Type      string `json:"type"` // uuid, int, bigint, string
	Generated bool   `json:"generated"`
}

// GetField returns a pointer to the field with the given name, or nil.
func (m *Model) GetField(name string) *Field {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the model has a field with the given name.
func (m *Model) HasField(name string) bool {
	return m.GetField(name) != nil
}

// FieldNames returns all field names.
func (m *Model) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// WritableFields returns fields that can be set by the client.
// Excludes auto-generated PKs, auto-timestamp fields and reverse relations.
func (m *Model) WritableFields() []Field {
	var fields []Field
	for _, f := range m.Fields {
		if f.Name == m.PrimaryKey.Field && m.PrimaryKey.Generated {
			continue
		}
		if f.IsAuto() || f.Reverse {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}
