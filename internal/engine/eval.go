package engine

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"dynfilter/internal/filter"
)

// CompiledPredicate is a predicate tree compiled to an expr program. The
// condition values travel in the run environment rather than the source, so
// typed values (times, lists) survive compilation.
type CompiledPredicate struct {
	prog *vm.Program
	vals []any
}

// Match evaluates the compiled predicate against one record.
func (cp *CompiledPredicate) Match(record map[string]any) (bool, error) {
	if cp.prog == nil {
		return true, nil
	}
	out, err := expr.Run(cp.prog, map[string]any{"record": record, "vals": cp.vals})
	if err != nil {
		return false, fmt.Errorf("evaluate predicate: %w", err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("predicate did not return bool")
	}
	return matched, nil
}

// CompilePredicate translates a predicate tree into an expr-lang program
// over a record environment. A nil predicate compiles to an always-true
// match.
func CompilePredicate(p filter.Predicate) (*CompiledPredicate, error) {
	if p == nil {
		return &CompiledPredicate{}, nil
	}

	var vals []any
	src, err := predicateSource(p, &vals)
	if err != nil {
		return nil, err
	}

	opts := append(predicateFunctions(), expr.AsBool())
	prog, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile predicate: %w", err)
	}
	return &CompiledPredicate{prog: prog, vals: vals}, nil
}

func predicateSource(p filter.Predicate, vals *[]any) (string, error) {
	switch node := p.(type) {
	case filter.Cond:
		return condSource(node, vals)
	case filter.Group:
		op := " && "
		if node.Op == filter.OpOr {
			op = " || "
		}
		parts := make([]string, 0, len(node.Preds))
		for _, child := range node.Preds {
			s, err := predicateSource(child, vals)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, op) + ")", nil
	default:
		return "", fmt.Errorf("unknown predicate node %T", p)
	}
}

func condSource(c filter.Cond, vals *[]any) (string, error) {
	ref := fmt.Sprintf("get(record, %q)", c.Path)
	val := func(v any) string {
		*vals = append(*vals, v)
		return fmt.Sprintf("vals[%d]", len(*vals)-1)
	}

	switch c.Lookup {
	case "exact":
		return fmt.Sprintf("eq(%s, %s)", ref, val(c.Value)), nil
	case "iexact":
		return fmt.Sprintf("iexact(%s, %s)", ref, val(c.Value)), nil
	case "contains":
		return fmt.Sprintf("containsVal(%s, %s)", ref, val(c.Value)), nil
	case "icontains":
		return fmt.Sprintf("icontains(%s, %s)", ref, val(c.Value)), nil
	case "startswith":
		return fmt.Sprintf("startswith(%s, %s)", ref, val(c.Value)), nil
	case "istartswith":
		return fmt.Sprintf("istartswith(%s, %s)", ref, val(c.Value)), nil
	case "gt":
		return fmt.Sprintf("cmp(%s, %s) > 0", ref, val(c.Value)), nil
	case "gte":
		return fmt.Sprintf("cmp(%s, %s) >= 0", ref, val(c.Value)), nil
	case "lt":
		return fmt.Sprintf("cmp(%s, %s) < 0", ref, val(c.Value)), nil
	case "lte":
		return fmt.Sprintf("cmp(%s, %s) <= 0", ref, val(c.Value)), nil
	case "in":
		return fmt.Sprintf("anyEq(%s, %s)", ref, val(c.Value)), nil
	case "range":
		lo, hi, err := rangeBounds(c.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("cmp(%s, %s) >= 0 && cmp(%s, %s) <= 0", ref, val(lo), ref, val(hi)), nil
	case "isnull":
		want := true
		if b, ok := c.Value.(bool); ok {
			want = b
		}
		return fmt.Sprintf("(%s == nil) == %s", ref, val(want)), nil
	case "date":
		return fmt.Sprintf("sameDate(%s, %s)", ref, val(c.Value)), nil
	case "has_key":
		return fmt.Sprintf("hasKey(%s, %s)", ref, val(c.Value)), nil
	case "contained_by":
		return fmt.Sprintf("containedBy(%s, %s)", ref, val(c.Value)), nil
	case "overlap":
		return fmt.Sprintf("overlaps(%s, %s)", ref, val(c.Value)), nil
	case "len":
		return fmt.Sprintf("lenEq(%s, %s)", ref, val(c.Value)), nil
	default:
		return "", fmt.Errorf("unsupported lookup %q", c.Lookup)
	}
}

func rangeBounds(v any) (any, any, error) {
	list, ok := asList(v)
	if !ok || len(list) != 2 {
		return nil, nil, fmt.Errorf("range lookup expects [min, max]")
	}
	return list[0], list[1], nil
}

func predicateFunctions() []expr.Option {
	return []expr.Option{
		expr.Function("get", func(params ...any) (any, error) {
			record, _ := params[0].(map[string]any)
			return lookupPath(record, params[1].(string)), nil
		}),
		expr.Function("eq", func(params ...any) (any, error) {
			return looseEq(params[0], params[1]), nil
		}),
		expr.Function("iexact", func(params ...any) (any, error) {
			a, b := params[0], params[1]
			if a == nil {
				return false, nil
			}
			return strings.EqualFold(fmt.Sprint(a), fmt.Sprint(b)), nil
		}),
		expr.Function("icontains", func(params ...any) (any, error) {
			a, b := params[0], params[1]
			if a == nil {
				return false, nil
			}
			return strings.Contains(strings.ToLower(fmt.Sprint(a)), strings.ToLower(fmt.Sprint(b))), nil
		}),
		expr.Function("startswith", func(params ...any) (any, error) {
			a, b := params[0], params[1]
			if a == nil {
				return false, nil
			}
			return strings.HasPrefix(fmt.Sprint(a), fmt.Sprint(b)), nil
		}),
		expr.Function("istartswith", func(params ...any) (any, error) {
			a, b := params[0], params[1]
			if a == nil {
				return false, nil
			}
			return strings.HasPrefix(strings.ToLower(fmt.Sprint(a)), strings.ToLower(fmt.Sprint(b))), nil
		}),
		expr.Function("cmp", func(params ...any) (any, error) {
			return compareValues(params[0], params[1])
		}),
		expr.Function("anyEq", func(params ...any) (any, error) {
			list, ok := asList(params[1])
			if !ok {
				return looseEq(params[0], params[1]), nil
			}
			for _, item := range list {
				if looseEq(params[0], item) {
					return true, nil
				}
			}
			return false, nil
		}),
		expr.Function("sameDate", func(params ...any) (any, error) {
			a, aok := asTime(params[0])
			b, bok := asTime(params[1])
			if !aok || !bok {
				return false, nil
			}
			ay, am, ad := a.Date()
			by, bm, bd := b.Date()
			return ay == by && am == bm && ad == bd, nil
		}),
		expr.Function("hasKey", func(params ...any) (any, error) {
			m, ok := params[0].(map[string]any)
			if !ok {
				return false, nil
			}
			_, exists := m[fmt.Sprint(params[1])]
			return exists, nil
		}),
		expr.Function("containsVal", func(params ...any) (any, error) {
			return containsValue(params[0], params[1]), nil
		}),
		expr.Function("containedBy", func(params ...any) (any, error) {
			return containsValue(params[1], params[0]), nil
		}),
		expr.Function("overlaps", func(params ...any) (any, error) {
			a, aok := asList(params[0])
			b, bok := asList(params[1])
			if !aok || !bok {
				return false, nil
			}
			for _, x := range a {
				for _, y := range b {
					if looseEq(x, y) {
						return true, nil
					}
				}
			}
			return false, nil
		}),
		expr.Function("lenEq", func(params ...any) (any, error) {
			list, ok := asList(params[0])
			if !ok {
				return false, nil
			}
			n, ok := asFloat(params[1])
			if !ok {
				return false, nil
			}
			return float64(len(list)) == n, nil
		}),
	}
}

// lookupPath resolves a dotted field path against a record, traversing
// nested maps for relation segments. Missing segments resolve to nil.
func lookupPath(record map[string]any, path string) any {
	cur := any(record)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

// looseEq compares across the value representations that reach the engine:
// numbers of any width, strings, bools, and times.
func looseEq(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := asTime(b); bok {
			return at.Equal(bt)
		}
	}
	if bt, bok := b.(time.Time); bok {
		if at, aok := asTime(a); aok {
			return at.Equal(bt)
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return as == bs
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values, returning <0, 0 or >0. Values that
// cannot be ordered produce an error, which excludes the record.
func compareValues(a, b any) (int, error) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if at, aok := asTime(a); aok {
		if bt, bok := asTime(b); bok {
			switch {
			case at.Before(bt):
				return -1, nil
			case at.After(bt):
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), nil
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func containsValue(container, v any) bool {
	switch c := container.(type) {
	case string:
		return strings.Contains(c, fmt.Sprint(v))
	case map[string]any:
		sub, ok := v.(map[string]any)
		if !ok {
			return false
		}
		for k, want := range sub {
			got, exists := c[k]
			if !exists || !looseEq(got, want) {
				return false
			}
		}
		return true
	default:
		list, ok := asList(container)
		if !ok {
			return false
		}
		if items, isList := asList(v); isList {
			for _, item := range items {
				if !listHas(list, item) {
					return false
				}
			}
			return true
		}
		return listHas(list, v)
	}
}

func listHas(list []any, v any) bool {
	for _, item := range list {
		if looseEq(item, v) {
			return true
		}
	}
	return false
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, ok := filter.ParseDateTime(t); ok {
			return parsed, true
		}
		if parsed, ok := filter.ParseDate(t); ok {
			return parsed, true
		}
	}
	return time.Time{}, false
}
