package filter

import (
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
)

var (
	errTooDeep  = errors.New("filter expression exceeds maximum depth")
	errTooLarge = errors.New("filter expression exceeds maximum size")
)

// Bounds on the advanced filter expression tree, so adversarial input
// cannot force unbounded recursion or work.
const (
	maxFilterDepth = 10
	maxFilterNodes = 200
)

// FilterNode is one node of the advanced filter expression tree: exactly
// one of Group or Leaf is set.
type FilterNode struct {
	Group *GroupNode
	Leaf  *LeafNode
}

// GroupNode combines child nodes with AND or OR.
type GroupNode struct {
	Operator   string
	Conditions []FilterNode
}

// LeafNode is a single field condition.
type LeafNode struct {
	Field  string
	Lookup string
	Value  any
}

// MarshalJSON renders the node back into the wire shape.
func (n FilterNode) MarshalJSON() ([]byte, error) {
	if n.Group != nil {
		return json.Marshal(map[string]any{
			"operator":   n.Group.Operator,
			"conditions": n.Group.Conditions,
		})
	}
	if n.Leaf != nil {
		m := map[string]any{"field": n.Leaf.Field, "value": n.Leaf.Value}
		if n.Leaf.Lookup != "" {
			m["lookup"] = n.Leaf.Lookup
		}
		return json.Marshal(m)
	}
	return []byte("null"), nil
}

// rawNode is the open JSON shape a condition arrives in.
type rawNode struct {
	Operator   string            `json:"operator"`
	Conditions []json.RawMessage `json:"conditions"`
	Field      string            `json:"field"`
	Lookup     string            `json:"lookup"`
	Value      json.RawMessage   `json:"value"`
}

// ParseAdvancedFilter decodes the reserved advanced-filter parameter and
// resolves the expression tree into a predicate. Malformed payloads log an
// error and contribute nothing; the request never hard-fails.
func (mf *ModelFilter) ParseAdvancedFilter() Predicate {
	raw := mf.params.Get(AdvancedFilterParam)
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	node, err := DecodeFilterExpression(raw)
	if err != nil {
		log.Printf("ERROR: parsing advanced filter: %v", err)
		return nil
	}
	if node == nil {
		return nil
	}

	return mf.resolveNode(*node)
}

// DecodeFilterExpression parses a URL-encoded JSON boolean expression into
// the tagged node tree. The transport may have decoded the URL escaping
// already, so plain JSON is accepted as well.
func DecodeFilterExpression(raw string) (*FilterNode, error) {
	payload := raw
	if !strings.HasPrefix(strings.TrimSpace(payload), "{") {
		decoded, err := url.QueryUnescape(raw)
		if err == nil {
			payload = decoded
		}
	}

	nodes := 0
	node, err := decodeNode([]byte(payload), 0, &nodes)
	if err != nil {
		return nil, err
	}
	// A whole-expression invalid shape is nothing
	if node != nil && node.Group == nil && node.Leaf == nil {
		return nil, nil
	}
	return node, nil
}

func decodeNode(data []byte, depth int, nodes *int) (*FilterNode, error) {
	if depth > maxFilterDepth {
		return nil, errTooDeep
	}
	*nodes++
	if *nodes > maxFilterNodes {
		return nil, errTooLarge
	}

	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	// Group: operator + conditions
	if raw.Operator != "" && raw.Conditions != nil {
		group := GroupNode{Operator: strings.ToUpper(raw.Operator)}
		for _, c := range raw.Conditions {
			child, err := decodeNode(c, depth+1, nodes)
			if err != nil {
				return nil, err
			}
			if child != nil {
				group.Conditions = append(group.Conditions, *child)
			}
		}
		return &FilterNode{Group: &group}, nil
	}

	// Leaf: field + value
	if raw.Field != "" && raw.Value != nil {
		var value any
		if err := json.Unmarshal(raw.Value, &value); err != nil {
			return nil, err
		}
		return &FilterNode{Leaf: &LeafNode{Field: raw.Field, Lookup: raw.Lookup, Value: value}}, nil
	}

	// Invalid shapes stay in the tree as empty nodes: they resolve to
	// nothing, and an empty first condition voids its enclosing group.
	log.Printf("WARN: invalid filter condition format")
	return &FilterNode{}, nil
}

// resolveNode evaluates the tree by structural recursion. Group nodes reduce
// their conditions left to right; a first condition resolving to nothing
// makes the whole group nothing. Leaves referencing unregistered fields are
// skipped.
func (mf *ModelFilter) resolveNode(node FilterNode) Predicate {
	if node.Group != nil {
		g := node.Group
		if len(g.Conditions) == 0 {
			return nil
		}

		pred := mf.resolveNode(g.Conditions[0])
		if pred == nil {
			return nil
		}

		for _, cond := range g.Conditions[1:] {
			next := mf.resolveNode(cond)
			if next == nil {
				continue
			}
			switch g.Operator {
			case OpAnd:
				pred = And(pred, next)
			case OpOr:
				pred = Or(pred, next)
			default:
				log.Printf("WARN: unsupported operator %q, using AND", g.Operator)
				pred = And(pred, next)
			}
		}
		return pred
	}

	if node.Leaf != nil {
		leaf := node.Leaf
		if !mf.registry.Has(leaf.Field) {
			log.Printf("WARN: unknown field %q in advanced filter", leaf.Field)
			return nil
		}
		return mf.BuildFieldPredicate(leaf.Field, leaf.Value, leaf.Lookup)
	}

	return nil
}
