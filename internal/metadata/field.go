package metadata

// Choice is one enum value with its human-readable label.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterConfig is the per-field filter configuration record. It is declared
// alongside the field in the model definition and overrides the defaults
// derived from the field's semantic type.
type FilterConfig struct {
	Searchable    bool     `json:"searchable,omitempty"`
	Lookups       []string `json:"lookups,omitempty"`
	DefaultLookup string   `json:"default_lookup,omitempty"`
	RangeFilter   *bool    `json:"range_filter,omitempty"`
}

type Field struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Required bool          `json:"required,omitempty"`
	Unique   bool          `json:"unique,omitempty"`
	Nullable bool          `json:"nullable,omitempty"`
	Choices  []Choice      `json:"choices,omitempty"`
	Relation string        `json:"relation,omitempty"` // target model name for relation fields
	Reverse  bool          `json:"reverse,omitempty"`  // auto-created reverse relation, no concrete storage
	Auto     string        `json:"auto,omitempty"`     // "create" or "update"
	Filter   *FilterConfig `json:"filter,omitempty"`
}

// PostgresType returns the Postgres DDL type for this field.
func (f Field) PostgresType() string {
	switch f.Type {
	case "string", "text", "slug", "email", "url", "file":
		return "TEXT"
	case "int":
		return "INTEGER"
	case "bigint":
		return "BIGINT"
	case "decimal":
		return "NUMERIC"
	case "boolean":
		return "BOOLEAN"
	case "uuid":
		return "UUID"
	case "timestamp":
		return "TIMESTAMPTZ"
	case "date":
		return "DATE"
	case "json":
		return "JSONB"
	case "array":
		return "TEXT[]"
	default:
		return "TEXT"
	}
}

// IsRelation returns true if the field points at another model.
func (f Field) IsRelation() bool {
	return f.Relation != ""
}

// IsAuto returns true if the field is auto-managed by the engine.
func (f Field) IsAuto() bool {
	return f.Auto == "create" || f.Auto == "update"
}

// HasChoices returns true if the field declares at least one enum choice.
func (f Field) HasChoices() bool {
	return len(f.Choices) > 0
}
