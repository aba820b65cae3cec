package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"dynfilter/internal/filter"
	"dynfilter/internal/metadata"
	"dynfilter/internal/store"
)

// QueryResult is a parameterized SQL statement ready for execution.
type QueryResult struct {
	SQL    string
	Params []any
}

type paramBuilder struct {
	params []any
	n      int
}

func (p *paramBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("$%d", p.n)
}

// SQLCollection is a queryable collection backed by a Postgres table. It
// compiles the composed predicate to a parameterized WHERE clause; relation
// segments in field paths compile to EXISTS subqueries against the related
// table.
type SQLCollection struct {
	model       *metadata.Model
	models      *metadata.Registry
	pred        filter.Predicate
	order       []string
	annotations map[string]string // name -> SQL expression
}

func NewSQLCollection(model *metadata.Model, models *metadata.Registry) *SQLCollection {
	return &SQLCollection{model: model, models: models}
}

// WithAnnotation attaches a computed SQL expression under a name; it is
// selected alongside the stored columns and registered as a filterable
// annotation.
func (c *SQLCollection) WithAnnotation(name, expression string) *SQLCollection {
	derived := c.clone()
	if derived.annotations == nil {
		derived.annotations = make(map[string]string)
	}
	derived.annotations[name] = expression
	return derived
}

func (c *SQLCollection) clone() *SQLCollection {
	ann := make(map[string]string, len(c.annotations))
	for k, v := range c.annotations {
		ann[k] = v
	}
	if len(ann) == 0 {
		ann = nil
	}
	return &SQLCollection{
		model:       c.model,
		models:      c.models,
		pred:        c.pred,
		order:       append([]string{}, c.order...),
		annotations: ann,
	}
}

func (c *SQLCollection) Annotations() map[string]string {
	return c.annotations
}

func (c *SQLCollection) Filter(p filter.Predicate) filter.Collection {
	derived := c.clone()
	derived.pred = filter.And(derived.pred, p)
	return derived
}

func (c *SQLCollection) OrderBy(keys ...string) filter.Collection {
	derived := c.clone()
	derived.order = append([]string{}, keys...)
	return derived
}

// SelectSQL builds the parameterized SELECT statement for the collection's
// current predicate and ordering.
func (c *SQLCollection) SelectSQL() QueryResult {
	pb := &paramBuilder{}

	columns := strings.Join(c.model.FieldNames(), ", ")
	for _, name := range sortedAnnotationNames(c.annotations) {
		columns += fmt.Sprintf(", %s AS %s", c.annotations[name], name)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", columns, c.model.Table)
	if where := c.compilePredicate(c.pred, pb); where != "" {
		sql += " WHERE " + where
	}

	if len(c.order) > 0 {
		var orderParts []string
		for _, key := range c.order {
			dir := "ASC"
			path := key
			if strings.HasPrefix(key, "-") {
				dir = "DESC"
				path = key[1:]
			}
			expression := c.orderExpr(path)
			if expression == "" {
				continue
			}
			orderParts = append(orderParts, fmt.Sprintf("%s %s", expression, dir))
		}
		if len(orderParts) > 0 {
			sql += " ORDER BY " + strings.Join(orderParts, ", ")
		}
	}

	return QueryResult{SQL: sql, Params: pb.params}
}

// CountSQL builds a COUNT query with the same predicate as the select.
func (c *SQLCollection) CountSQL() QueryResult {
	pb := &paramBuilder{}
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.model.Table)
	if where := c.compilePredicate(c.pred, pb); where != "" {
		sql += " WHERE " + where
	}
	return QueryResult{SQL: sql, Params: pb.params}
}

// Fetch executes the select and returns the rows.
func (c *SQLCollection) Fetch(ctx context.Context, q store.Querier) ([]map[string]any, error) {
	qr := c.SelectSQL()
	return store.QueryRows(ctx, q, qr.SQL, qr.Params...)
}

// Count executes the count query.
func (c *SQLCollection) Count(ctx context.Context, q store.Querier) (int64, error) {
	qr := c.CountSQL()
	count, err := store.QueryInt64(ctx, q, qr.SQL, qr.Params...)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.model.Name, err)
	}
	return count, nil
}

func (c *SQLCollection) compilePredicate(p filter.Predicate, pb *paramBuilder) string {
	switch node := p.(type) {
	case nil:
		return ""
	case filter.Cond:
		return c.compileCond(node, pb)
	case filter.Group:
		op := " AND "
		if node.Op == filter.OpOr {
			op = " OR "
		}
		var parts []string
		for _, child := range node.Preds {
			if s := c.compilePredicate(child, pb); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return ""
		}
		return "(" + strings.Join(parts, op) + ")"
	default:
		log.Printf("WARN: unknown predicate node %T", p)
		return ""
	}
}

func (c *SQLCollection) compileCond(cond filter.Cond, pb *paramBuilder) string {
	// Relation traversal: compile to EXISTS against the related table
	if relName, rest, found := strings.Cut(cond.Path, "."); found {
		relField := c.model.GetField(relName)
		if relField == nil || !relField.IsRelation() || c.models == nil {
			return ""
		}
		related := c.models.GetModel(relField.Relation)
		if related == nil {
			return ""
		}
		inner := lookupSQL(rest, cond.Lookup, cond.Value, pb)
		if inner == "" {
			return ""
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s.%s = %s.%s AND %s)",
			related.Table, related.Table, related.PrimaryKey.Field, c.model.Table, relName, inner)
	}

	return lookupSQL(c.columnExpr(cond.Path), cond.Lookup, cond.Value, pb)
}

// orderExpr resolves a sort key path to a SQL expression. Relation paths
// sort by a correlated scalar subquery against the related table, since the
// related columns are never joined into the select. Unresolvable relation
// paths drop the sort key rather than emit broken SQL.
func (c *SQLCollection) orderExpr(path string) string {
	relName, rest, found := strings.Cut(path, ".")
	if !found {
		return c.columnExpr(path)
	}

	relField := c.model.GetField(relName)
	if relField == nil || !relField.IsRelation() || c.models == nil {
		return ""
	}
	related := c.models.GetModel(relField.Relation)
	if related == nil {
		return ""
	}
	return fmt.Sprintf("(SELECT %s FROM %s WHERE %s.%s = %s.%s)",
		rest, related.Table, related.Table, related.PrimaryKey.Field, c.model.Table, relName)
}

// columnExpr resolves a field path to a SQL expression, substituting
// annotation expressions for annotated names.
func (c *SQLCollection) columnExpr(path string) string {
	if expression, ok := c.annotations[path]; ok {
		return "(" + expression + ")"
	}
	return path
}

func lookupSQL(col, lookup string, value any, pb *paramBuilder) string {
	switch lookup {
	case "exact":
		return fmt.Sprintf("%s = %s", col, pb.Add(value))
	case "iexact":
		return fmt.Sprintf("LOWER(%s::text) = LOWER(%s)", col, pb.Add(fmt.Sprint(value)))
	case "contains":
		if s, ok := value.(string); ok {
			return fmt.Sprintf("%s LIKE %s", col, pb.Add("%"+s+"%"))
		}
		return fmt.Sprintf("%s @> %s", col, pb.Add(value))
	case "icontains":
		return fmt.Sprintf("%s ILIKE %s", col, pb.Add("%"+fmt.Sprint(value)+"%"))
	case "startswith":
		return fmt.Sprintf("%s LIKE %s", col, pb.Add(fmt.Sprint(value)+"%"))
	case "istartswith":
		return fmt.Sprintf("%s ILIKE %s", col, pb.Add(fmt.Sprint(value)+"%"))
	case "gt":
		return fmt.Sprintf("%s > %s", col, pb.Add(value))
	case "gte":
		return fmt.Sprintf("%s >= %s", col, pb.Add(value))
	case "lt":
		return fmt.Sprintf("%s < %s", col, pb.Add(value))
	case "lte":
		return fmt.Sprintf("%s <= %s", col, pb.Add(value))
	case "in":
		return fmt.Sprintf("%s = ANY(%s)", col, pb.Add(value))
	case "range":
		list, ok := value.([]any)
		if !ok || len(list) != 2 {
			return ""
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, pb.Add(list[0]), pb.Add(list[1]))
	case "isnull":
		if want, ok := value.(bool); ok && !want {
			return fmt.Sprintf("%s IS NOT NULL", col)
		}
		return fmt.Sprintf("%s IS NULL", col)
	case "date":
		return fmt.Sprintf("%s::date = %s", col, pb.Add(value))
	case "has_key":
		return fmt.Sprintf("%s ? %s", col, pb.Add(fmt.Sprint(value)))
	case "contained_by":
		return fmt.Sprintf("%s <@ %s", col, pb.Add(value))
	case "overlap":
		return fmt.Sprintf("%s && %s", col, pb.Add(value))
	case "len":
		return fmt.Sprintf("array_length(%s, 1) = %s", col, pb.Add(value))
	default:
		log.Printf("WARN: unsupported lookup %q in SQL compiler", lookup)
		return ""
	}
}

func sortedAnnotationNames(ann map[string]string) []string {
	names := make([]string, 0, len(ann))
	for name := range ann {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
