package filter

import (
	"sort"

	"dynfilter/internal/metadata"
)

// FieldInfo is one field registry entry: the resolved filter metadata for a
// logical field name. Immutable once built.
type FieldInfo struct {
	Name          string
	Path          string // dotted path issued to the collection, includes relation segment
	Type          SemanticType
	Filterable    bool
	Searchable    bool
	Lookups       []string
	DefaultLookup string
	RangeFilter   bool
	Choices       []metadata.Choice
	Annotated     bool
}

// HasLookup returns true if the lookup is in the field's permitted set.
func (fi *FieldInfo) HasLookup(lookup string) bool {
	for _, l := range fi.Lookups {
		if l == lookup {
			return true
		}
	}
	return false
}

// Config carries the request-scoped allow-lists. When an allow-list is
// present and non-empty, only listed field names qualify.
type Config struct {
	FilterFields []string `json:"filter_fields,omitempty"`
	SearchFields []string `json:"search_fields,omitempty"`
}

func (c Config) allowsFilter(name string) bool {
	return allows(c.FilterFields, name)
}

func (c Config) allowsSearch(name string) bool {
	return allows(c.SearchFields, name)
}

func allows(list []string, name string) bool {
	if len(list) == 0 {
		return true
	}
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// FieldRegistry maps logical field names to their resolved filter metadata.
// Built once per filter invocation and not mutated afterwards.
type FieldRegistry struct {
	fields map[string]*FieldInfo
	order  []string
}

// BuildFieldRegistry walks the model's declared fields (and one level of
// related-model fields), consults per-field configuration and the allow-list
// config, and produces the registry. Annotations present on the collection
// register as searchable text fields.
func BuildFieldRegistry(model *metadata.Model, models *metadata.Registry, annotations map[string]string, cfg Config) *FieldRegistry {
	r := &FieldRegistry{fields: make(map[string]*FieldInfo)}

	for i := range model.Fields {
		r.register(&model.Fields[i], "", cfg)
	}

	// Related-model fields, one level deep
	for i := range model.Fields {
		f := &model.Fields[i]
		if !f.IsRelation() || models == nil {
			continue
		}
		related := models.GetModel(f.Relation)
		if related == nil {
			continue
		}
		for j := range related.Fields {
			r.register(&related.Fields[j], f.Name, cfg)
		}
	}

	for _, name := range sortedKeys(annotations) {
		r.registerAnnotated(name, cfg)
	}

	return r
}

// register adds one field to the registry. Re-registration of an
// already-present logical name is a no-op.
func (r *FieldRegistry) register(f *metadata.Field, relationPrefix string, cfg Config) {
	// Auto-created reverse relations have no concrete storage
	if f.Reverse {
		return
	}

	name := f.Name
	path := name
	if relationPrefix != "" {
		path = relationPrefix + "." + name
		if _, exists := r.fields[name]; exists {
			name = relationPrefix + "_" + name
		}
	}

	if _, exists := r.fields[name]; exists {
		return
	}

	fieldType := ClassifyField(f)

	var fc metadata.FilterConfig
	if f.Filter != nil {
		fc = *f.Filter
	}

	lookups := fc.Lookups
	if lookups == nil {
		lookups = LookupsFor(fieldType)
	}

	defaultLookup := fc.DefaultLookup
	if defaultLookup == "" {
		defaultLookup = DefaultLookupFor(fieldType)
	}

	rangeFilter := fieldType == TypeDate || fieldType == TypeDatetime ||
		fieldType == TypeInteger || fieldType == TypeDecimal
	if fc.RangeFilter != nil {
		rangeFilter = *fc.RangeFilter
	}

	info := &FieldInfo{
		Name:          name,
		Path:          path,
		Type:          fieldType,
		Filterable:    cfg.allowsFilter(name),
		Searchable:    fc.Searchable && cfg.allowsSearch(name),
		Lookups:       lookups,
		DefaultLookup: defaultLookup,
		RangeFilter:   rangeFilter,
	}
	if fieldType == TypeEnum {
		info.Choices = f.Choices
	}

	r.fields[name] = info
	r.order = append(r.order, name)
}

// registerAnnotated adds a computed/annotated expression to the registry.
// Annotation result types are treated as text; filterable and searchable by
// default, gated by the allow-lists.
func (r *FieldRegistry) registerAnnotated(name string, cfg Config) {
	if _, exists := r.fields[name]; exists {
		return
	}

	fieldType := TypeText
	r.fields[name] = &FieldInfo{
		Name:          name,
		Path:          name,
		Type:          fieldType,
		Filterable:    cfg.allowsFilter(name),
		Searchable:    cfg.allowsSearch(name),
		Lookups:       LookupsFor(fieldType),
		DefaultLookup: DefaultLookupFor(fieldType),
		Annotated:     true,
	}
	r.order = append(r.order, name)
}

// Get returns the entry for a logical field name, or nil.
func (r *FieldRegistry) Get(name string) *FieldInfo {
	return r.fields[name]
}

// Has returns true if the name is registered.
func (r *FieldRegistry) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Names returns all registered names in registration order.
func (r *FieldRegistry) Names() []string {
	return r.order
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
