package filter

import (
	"sort"
	"strings"
)

// Reserved request parameter names.
const (
	SearchParam         = "search"
	OrderingParam       = "ordering"
	AdvancedFilterParam = "filter"

	DefaultOrdering = "-id"
)

// RangeSuffixes are the parameter suffixes recognized for range filters.
var RangeSuffixes = []string{"_min", "_max"}

// Params is a flat mapping of request parameter name to the raw string
// values received for it. Transports that support repeated keys produce
// more than one value per name.
type Params map[string][]string

// ParamsFromMap builds Params from a single-valued map, e.g. fiber's
// c.Queries().
func ParamsFromMap(m map[string]string) Params {
	p := make(Params, len(m))
	for k, v := range m {
		p[k] = []string{v}
	}
	return p
}

// Has returns true if the parameter was supplied at all.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Get returns the first value for a parameter, or "" when absent.
func (p Params) Get(name string) string {
	if vs := p[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Value returns a scalar string for a single occurrence, the ordered
// []string for repeated occurrences, and nil when the parameter is absent.
func (p Params) Value(name string) any {
	vs, ok := p[name]
	if !ok {
		return nil
	}
	if len(vs) > 1 {
		return vs
	}
	if len(vs) == 1 {
		return vs[0]
	}
	return nil
}

// Names returns all parameter names in sorted order, so that predicate
// composition over the flat parameters is deterministic.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IsRangeParam returns true if the name carries a _min/_max suffix.
func IsRangeParam(name string) bool {
	for _, suffix := range RangeSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// IsReservedParam returns true for the reserved search/ordering/filter names.
func IsReservedParam(name string) bool {
	return name == SearchParam || name == OrderingParam || name == AdvancedFilterParam
}
