package filter

import "dynfilter/internal/metadata"

// SemanticType is the closed set of filterable field types. Every field is
// classified exactly once at registry build time; all downstream logic
// (coercion, lookup validation, default selection) switches on this tag.
type SemanticType string

const (
	TypeText     SemanticType = "text"
	TypeInteger  SemanticType = "integer"
	TypeDecimal  SemanticType = "decimal"
	TypeBoolean  SemanticType = "boolean"
	TypeDate     SemanticType = "date"
	TypeDatetime SemanticType = "datetime"
	TypeEnum     SemanticType = "enum"
	TypeRelation SemanticType = "relation"
	TypeArray    SemanticType = "array"
	TypeJSON     SemanticType = "json"
)

// DefaultLookups maps each semantic type to the lookup applied when a
// request parameter supplies no explicit lookup. Overridable configuration
// data, not behavior.
var DefaultLookups = map[SemanticType]string{
	TypeText:     "icontains",
	TypeInteger:  "exact",
	TypeDecimal:  "exact",
	TypeBoolean:  "exact",
	TypeDate:     "exact",
	TypeDatetime: "exact",
	TypeEnum:     "exact",
	TypeRelation: "exact",
	TypeArray:    "contains",
	TypeJSON:     "has_key",
}

// TypeLookups maps each semantic type to its permitted lookup expressions.
var TypeLookups = map[SemanticType][]string{
	TypeText:     {"exact", "iexact", "contains", "icontains", "startswith", "istartswith"},
	TypeInteger:  {"exact", "gt", "gte", "lt", "lte", "in", "range"},
	TypeDecimal:  {"exact", "gt", "gte", "lt", "lte", "range"},
	TypeBoolean:  {"exact"},
	TypeDate:     {"exact", "gt", "gte", "lt", "lte", "range"},
	TypeDatetime: {"exact", "gt", "gte", "lt", "lte", "range", "date"},
	TypeEnum:     {"exact", "in"},
	TypeRelation: {"exact", "in"},
	TypeJSON:     {"has_key", "contains", "contained_by"},
	TypeArray:    {"contains", "contained_by", "overlap", "len"},
}

// MultiValueLookups are the lookups that expect a list of values.
var MultiValueLookups = []string{"in", "range"}

// storageKindTypes maps a field descriptor's declared storage kind to a
// semantic type. Kinds not listed here classify as text.
var storageKindTypes = map[string]SemanticType{
	"string":   TypeText,
	"text":     TypeText,
	"slug":     TypeText,
	"email":    TypeText,
	"url":      TypeText,
	"file":     TypeText,
	"uuid":     TypeText,
	"time":     TypeText,
	"int":      TypeInteger,
	"smallint": TypeInteger,
	"bigint":   TypeInteger,
	"serial":   TypeInteger,
	"float":    TypeDecimal,
	"decimal":  TypeDecimal,
	"boolean":  TypeBoolean,
	"array":    TypeArray,
}

// ClassifyField determines the semantic type of a field descriptor.
// Resolution order: enum choices, date, datetime, json, relation, then the
// storage-kind table, defaulting to text.
func ClassifyField(f *metadata.Field) SemanticType {
	if f.HasChoices() {
		return TypeEnum
	}

	switch f.Type {
	case "date":
		return TypeDate
	case "timestamp", "datetime":
		return TypeDatetime
	case "json":
		return TypeJSON
	}

	if f.IsRelation() {
		return TypeRelation
	}

	if t, ok := storageKindTypes[f.Type]; ok {
		return t
	}

	return TypeText
}

// DefaultLookupFor returns the default lookup expression for a semantic type.
func DefaultLookupFor(t SemanticType) string {
	if lookup, ok := DefaultLookups[t]; ok {
		return lookup
	}
	return "exact"
}

// LookupsFor returns the permitted lookup expressions for a semantic type.
func LookupsFor(t SemanticType) []string {
	if lookups, ok := TypeLookups[t]; ok {
		return lookups
	}
	return []string{"exact"}
}
