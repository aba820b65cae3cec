package filter

import (
	"net/url"
	"strings"

	"dynfilter/internal/metadata"
)

// FieldMeta describes one filterable field for API documentation or
// frontend filter-builder configuration.
type FieldMeta struct {
	Name          string            `json:"name"`
	Type          SemanticType      `json:"type"`
	Filterable    bool              `json:"filterable"`
	Searchable    bool              `json:"searchable"`
	Orderable     bool              `json:"orderable"`
	Lookups       []string          `json:"lookups"`
	DefaultLookup string            `json:"default_lookup"`
	RangeFilter   bool              `json:"range_filter,omitempty"`
	Choices       []metadata.Choice `json:"choices,omitempty"`
}

// FilterableFields returns metadata for every non-internal registry entry.
func (mf *ModelFilter) FilterableFields() map[string]FieldMeta {
	fields := make(map[string]FieldMeta)

	for _, name := range mf.registry.Names() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		info := mf.registry.Get(name)

		fields[name] = FieldMeta{
			Name:          name,
			Type:          info.Type,
			Filterable:    info.Filterable,
			Searchable:    info.Searchable,
			Orderable:     true,
			Lookups:       info.Lookups,
			DefaultLookup: info.DefaultLookup,
			RangeFilter:   info.RangeFilter,
			Choices:       info.Choices,
		}
	}

	return fields
}

// FilterParams echoes the accepted, non-pagination request parameters, with
// the advanced filter decoded to structured form and the ordering
// normalized to its resolved sort keys. Suitable for persisting or
// replaying a filter.
func (mf *ModelFilter) FilterParams() map[string]any {
	params := make(map[string]any)

	for name := range mf.params {
		if name == "page" || name == "page_size" || name == AdvancedFilterParam || name == OrderingParam {
			continue
		}
		params[name] = mf.params.Value(name)
	}

	if mf.params.Has(AdvancedFilterParam) {
		if node, err := DecodeFilterExpression(mf.params.Get(AdvancedFilterParam)); err == nil && node != nil {
			params["_advanced_filter"] = node
		}
	}

	if mf.params.Has(OrderingParam) {
		params["_ordering"] = mf.Ordering()
	}

	return params
}

// QueryString renders the current request parameters back into a URL query
// string.
func (mf *ModelFilter) QueryString() string {
	values := url.Values{}
	for name, vs := range mf.params {
		for _, v := range vs {
			if v != "" {
				values.Add(name, v)
			}
		}
	}
	return values.Encode()
}
