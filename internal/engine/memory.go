package engine

import (
	"log"
	"sort"
	"strings"

	"dynfilter/internal/filter"
)

// MemoryCollection is an in-memory queryable collection over
// []map[string]any records. Predicates evaluate by compiling to expr
// programs; ordering is a stable multi-key sort. Collections derive without
// mutating the receiver.
type MemoryCollection struct {
	records     []map[string]any
	annotations map[string]string
}

func NewMemoryCollection(records []map[string]any) *MemoryCollection {
	return &MemoryCollection{records: records}
}

// WithAnnotation declares a computed field present on the records, name to
// expression kind, so the field registry picks it up.
func (c *MemoryCollection) WithAnnotation(name, kind string) *MemoryCollection {
	ann := make(map[string]string, len(c.annotations)+1)
	for k, v := range c.annotations {
		ann[k] = v
	}
	ann[name] = kind
	return &MemoryCollection{records: c.records, annotations: ann}
}

func (c *MemoryCollection) Annotations() map[string]string {
	return c.annotations
}

// Filter returns the subset of records matching the predicate. Records the
// predicate cannot evaluate against are excluded.
func (c *MemoryCollection) Filter(p filter.Predicate) filter.Collection {
	if p == nil {
		return &MemoryCollection{records: c.records, annotations: c.annotations}
	}

	compiled, err := CompilePredicate(p)
	if err != nil {
		log.Printf("WARN: compiling predicate: %v", err)
		return &MemoryCollection{records: nil, annotations: c.annotations}
	}

	var matched []map[string]any
	for _, rec := range c.records {
		ok, err := compiled.Match(rec)
		if err != nil {
			continue
		}
		if ok {
			matched = append(matched, rec)
		}
	}
	return &MemoryCollection{records: matched, annotations: c.annotations}
}

// OrderBy sorts by the given keys in sequence, stable, a leading "-"
// meaning descending.
func (c *MemoryCollection) OrderBy(keys ...string) filter.Collection {
	out := make([]map[string]any, len(c.records))
	copy(out, c.records)

	// Apply keys right to left so the leftmost key has highest precedence
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		desc := strings.HasPrefix(key, "-")
		path := strings.TrimPrefix(key, "-")

		sort.SliceStable(out, func(a, b int) bool {
			av := lookupPath(out[a], path)
			bv := lookupPath(out[b], path)
			n, err := compareValues(av, bv)
			if err != nil {
				return false
			}
			if desc {
				return n > 0
			}
			return n < 0
		})
	}

	return &MemoryCollection{records: out, annotations: c.annotations}
}

// Records returns the collection's current contents.
func (c *MemoryCollection) Records() []map[string]any {
	return c.records
}
