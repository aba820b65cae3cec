package filter

import (
	"log"
	"strconv"
	"strings"
	"time"
)

// BuildFieldPredicate builds the predicate for a single field. When value is
// nil it is pulled from the request parameters; absence yields nil. An
// explicit empty-string value resolves to an "is null" test on the field
// path. A lookup outside the field's permitted set falls back to the
// field's default lookup with a logged warning.
func (mf *ModelFilter) BuildFieldPredicate(name string, value any, lookup string) Predicate {
	info := mf.registry.Get(name)
	if info == nil || !info.Filterable {
		return nil
	}

	if value == nil {
		value = mf.params.Value(name)
		if value == nil {
			return nil
		}
	}

	if lookup == "" {
		lookup = info.DefaultLookup
	}
	if !info.HasLookup(lookup) {
		log.Printf("WARN: lookup %q not allowed for field %q, using default %q", lookup, name, info.DefaultLookup)
		lookup = info.DefaultLookup
	}

	if s, ok := value.(string); ok && s == "" {
		return IsNull(info.Path)
	}

	// "in" accepts a comma-separated scalar, a bare scalar, or a list
	if lookup == "in" {
		switch v := value.(type) {
		case []string, []any:
			// already a list
		case string:
			if strings.Contains(v, ",") {
				value = strings.Split(v, ",")
			} else {
				value = []string{v}
			}
		default:
			value = []any{v}
		}
	}

	return Cond{Path: info.Path, Lookup: lookup, Value: CoerceValue(value, info.Type)}
}

// BuildRangePredicate reads the <path>_min / <path>_max parameters for a
// range-filterable field. Date and datetime sides parse with the multi-format
// lists; integer and decimal sides parse numerically. Unparsable values are
// dropped without contributing a predicate. Present min/max combine with AND.
func (mf *ModelFilter) BuildRangePredicate(name string) Predicate {
	info := mf.registry.Get(name)
	if info == nil || !info.Filterable || !info.RangeFilter {
		return nil
	}

	var pred Predicate
	if v := mf.params.Get(info.Path + RangeSuffixes[0]); v != "" {
		if bound, ok := mf.parseRangeBound(v, info.Type); ok {
			pred = And(pred, Cond{Path: info.Path, Lookup: "gte", Value: bound})
		}
	}
	if v := mf.params.Get(info.Path + RangeSuffixes[1]); v != "" {
		if bound, ok := mf.parseRangeBound(v, info.Type); ok {
			pred = And(pred, Cond{Path: info.Path, Lookup: "lte", Value: bound})
		}
	}
	return pred
}

func (mf *ModelFilter) parseRangeBound(value string, fieldType SemanticType) (any, bool) {
	switch fieldType {
	case TypeDate:
		if t, ok := ParseDate(value); ok {
			return t, true
		}
		log.Printf("WARN: dropping unparsable date range bound %q", value)
		return nil, false
	case TypeDatetime:
		if t, ok := ParseDateTime(value); ok {
			return t, true
		}
		log.Printf("WARN: dropping unparsable datetime range bound %q", value)
		return nil, false
	case TypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("WARN: dropping unparsable integer range bound %q", value)
			return nil, false
		}
		return n, true
	case TypeDecimal:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("WARN: dropping unparsable decimal range bound %q", value)
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

// BuildSearchPredicate ORs a case-insensitive substring test across every
// searchable text field, and an "in" test across enum fields whose labels
// contain the search term. A blank search term yields nil.
func (mf *ModelFilter) BuildSearchPredicate() Predicate {
	term, ok := mf.params.Value(SearchParam).(string)
	if !ok {
		return nil
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}

	var pred Predicate
	for _, name := range mf.registry.Names() {
		info := mf.registry.Get(name)
		if !info.Searchable {
			continue
		}

		switch info.Type {
		case TypeText:
			pred = Or(pred, Cond{Path: info.Path, Lookup: "icontains", Value: term})
		case TypeEnum:
			var matches []any
			for _, c := range info.Choices {
				if strings.Contains(strings.ToLower(c.Label), strings.ToLower(term)) {
					matches = append(matches, c.Value)
				}
			}
			if len(matches) > 0 {
				pred = Or(pred, Cond{Path: info.Path, Lookup: "in", Value: matches})
			}
		}
	}
	return pred
}

var dateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
}

var datetimeFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04",
	"02-01-2006 15:04:05",
	"01/02/2006 15:04:05",
}

// ParseDate tries each supported date format in order, stopping at the
// first successful parse.
func ParseDate(value string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDateTime tries each supported datetime format in order.
func ParseDateTime(value string) (time.Time, bool) {
	for _, layout := range datetimeFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
