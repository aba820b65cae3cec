package filter

// Predicate is an in-memory boolean expression over field-path/lookup/value
// triples. A nil Predicate means "no contribution". The composed predicate
// is handed to the Collection collaborator and not retained.
type Predicate interface {
	isPredicate()
}

// Cond is a single (field path, lookup, value) test.
type Cond struct {
	Path   string
	Lookup string
	Value  any
}

// Group combines child predicates with AND or OR.
type Group struct {
	Op    string
	Preds []Predicate
}

func (Cond) isPredicate()  {}
func (Group) isPredicate() {}

const (
	OpAnd = "AND"
	OpOr  = "OR"
)

// And combines two predicates with AND. Either side may be nil, in which
// case the other side is returned unchanged.
func And(a, b Predicate) Predicate {
	return combine(OpAnd, a, b)
}

// Or combines two predicates with OR. Either side may be nil.
func Or(a, b Predicate) Predicate {
	return combine(OpOr, a, b)
}

func combine(op string, a, b Predicate) Predicate {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if g, ok := a.(Group); ok && g.Op == op {
		return Group{Op: op, Preds: append(append([]Predicate{}, g.Preds...), b)}
	}
	return Group{Op: op, Preds: []Predicate{a, b}}
}

// IsNull builds the explicit "is null" test for a field path.
func IsNull(path string) Predicate {
	return Cond{Path: path, Lookup: "isnull", Value: true}
}

// Collection is the queryable collection collaborator: something that can
// narrow itself by a predicate and order itself by resolved sort keys.
// Implementations return derived collections; the receiver is not mutated.
type Collection interface {
	Filter(p Predicate) Collection
	OrderBy(keys ...string) Collection

	// Annotations exposes computed (non-stored) expressions attached to
	// the collection, name to expression kind, so the registry builder can
	// register them.
	Annotations() map[string]string
}
