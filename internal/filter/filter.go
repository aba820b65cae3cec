package filter

import (
	"strings"

	"dynfilter/internal/metadata"
)

// ModelFilter resolves flat request parameters and the advanced filter
// expression into one composed predicate plus a sort order, and applies
// both to the queryable collection.
//
// A ModelFilter is constructed fresh per request. It owns its field
// registry and computed predicate; instances are not shared across
// concurrent requests.
type ModelFilter struct {
	model    *metadata.Model
	params   Params
	registry *FieldRegistry
	base     Collection

	filtered Collection
	applied  bool
}

// New builds a ModelFilter for one invocation. The models registry resolves
// related models for one-level relation traversal; base supplies annotations
// and receives the final filter/order calls. cfg carries the allow-lists.
func New(model *metadata.Model, models *metadata.Registry, params Params, base Collection, cfg Config) *ModelFilter {
	var annotations map[string]string
	if base != nil {
		annotations = base.Annotations()
	}

	return &ModelFilter{
		model:    model,
		params:   params,
		registry: BuildFieldRegistry(model, models, annotations, cfg),
		base:     base,
	}
}

// Registry exposes the field registry built for this invocation.
func (mf *ModelFilter) Registry() *FieldRegistry {
	return mf.registry
}

// Apply composes the predicate and sort order and issues them against the
// collection. Repeated calls return the previously computed result.
func (mf *ModelFilter) Apply() *ModelFilter {
	if mf.applied {
		return mf
	}

	pred := mf.BuildPredicate()

	mf.filtered = mf.base.Filter(pred)
	if ordering := mf.Ordering(); len(ordering) > 0 {
		mf.filtered = mf.filtered.OrderBy(ordering...)
	}

	mf.applied = true
	return mf
}

// Result returns the filtered and ordered collection, applying first if
// needed.
func (mf *ModelFilter) Result() Collection {
	if !mf.applied {
		mf.Apply()
	}
	return mf.filtered
}

// BuildPredicate composes the full predicate for this invocation without
// touching the collection. An advanced filter that resolves to a non-nil
// predicate supersedes the flat-parameter path entirely.
func (mf *ModelFilter) BuildPredicate() Predicate {
	if advanced := mf.ParseAdvancedFilter(); advanced != nil {
		return advanced
	}

	var pred Predicate

	pred = And(pred, mf.BuildSearchPredicate())

	for _, name := range mf.registry.Names() {
		info := mf.registry.Get(name)
		if !info.RangeFilter {
			continue
		}
		pred = And(pred, mf.BuildRangePredicate(name))
	}

	processed := make(map[string]bool)
	for _, param := range mf.params.Names() {
		if IsReservedParam(param) || IsRangeParam(param) {
			continue
		}
		if !mf.registry.Has(param) || processed[param] {
			continue
		}
		pred = And(pred, mf.BuildFieldPredicate(param, nil, ""))
		processed[param] = true
	}

	return pred
}

// Ordering resolves the ordering parameter into the list of sort keys to
// apply, in sequence. Tokens naming unregistered fields are dropped; an
// entirely invalid (or absent) value falls back to the default ordering.
func (mf *ModelFilter) Ordering() []string {
	resolved := mf.resolveOrdering(mf.params.Value(OrderingParam))
	if len(resolved) == 0 {
		if fallback := mf.resolveOrdering(DefaultOrdering); len(fallback) > 0 {
			return fallback
		}
		// Models without an "id" field sort by their declared primary key
		if pk := mf.model.PrimaryKey.Field; pk != "" {
			return []string{"-" + pk}
		}
		return nil
	}
	return resolved
}

func (mf *ModelFilter) resolveOrdering(value any) []string {
	var tokens []string
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		tokens = v
	case string:
		for _, tok := range strings.Split(v, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}

	var keys []string
	for _, tok := range tokens {
		prefix := ""
		name := tok
		if strings.HasPrefix(tok, "-") {
			prefix = "-"
			name = tok[1:]
		}
		if info := mf.registry.Get(name); info != nil {
			keys = append(keys, prefix+info.Path)
		}
	}
	return keys
}
