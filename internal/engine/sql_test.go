package engine

import (
	"reflect"
	"strings"
	"testing"

	"dynfilter/internal/filter"
	"dynfilter/internal/metadata"
)

func testProductModel() *metadata.Model {
	return &metadata.Model{
		Name:  "product",
		Table: "products",
		PrimaryKey: metadata.PrimaryKey{
			Field: "id", Type: "uuid", Generated: true,
		},
		Fields: []metadata.Field{
			{Name: "id", Type: "uuid"},
			{Name: "name", Type: "string", Filter: &metadata.FilterConfig{Searchable: true}},
			{Name: "price", Type: "decimal"},
			{Name: "stock", Type: "int"},
			{Name: "is_active", Type: "boolean"},
			{Name: "status", Type: "string",
				Choices: []metadata.Choice{
					{Value: "active", Label: "Active"},
					{Value: "discontinued", Label: "Discontinued"},
				},
				Filter: &metadata.FilterConfig{Searchable: true}},
			{Name: "tags", Type: "array"},
			{Name: "category", Type: "relation", Relation: "category"},
		},
	}
}

func testModelRegistry() *metadata.Registry {
	category := &metadata.Model{
		Name:  "category",
		Table: "categories",
		PrimaryKey: metadata.PrimaryKey{
			Field: "id", Type: "uuid", Generated: true,
		},
		Fields: []metadata.Field{
			{Name: "id", Type: "uuid"},
			{Name: "name", Type: "string"},
		},
	}
	reg := metadata.NewRegistry()
	reg.Load([]*metadata.Model{testProductModel(), category})
	return reg
}

func TestSelectSQL_NoPredicate(t *testing.T) {
	reg := testModelRegistry()
	coll := NewSQLCollection(reg.GetModel("product"), reg)

	qr := coll.SelectSQL()
	if !strings.HasPrefix(qr.SQL, "SELECT id, name, price") {
		t.Fatalf("unexpected column list: %s", qr.SQL)
	}
	if strings.Contains(qr.SQL, "WHERE") {
		t.Fatalf("expected no WHERE clause: %s", qr.SQL)
	}
	if len(qr.Params) != 0 {
		t.Fatalf("expected no params, got %v", qr.Params)
	}
}

func TestSelectSQL_SimpleCond(t *testing.T) {
	reg := testModelRegistry()
	coll := NewSQLCollection(reg.GetModel("product"), reg).
		Filter(filter.Cond{Path: "price", Lookup: "gte", Value: 300.0}).
		OrderBy("-price").(*SQLCollection)

	qr := coll.SelectSQL()
	if !strings.Contains(qr.SQL, "FROM products WHERE price >= $1 ORDER BY price DESC") {
		t.Fatalf("unexpected SQL: %s", qr.SQL)
	}
	if !reflect.DeepEqual(qr.Params, []any{300.0}) {
		t.Fatalf("unexpected params: %v", qr.Params)
	}
}

func TestSelectSQL_GroupPredicate(t *testing.T) {
	reg := testModelRegistry()
	pred := filter.Or(
		filter.Cond{Path: "status", Lookup: "exact", Value: "active"},
		filter.Cond{Path: "price", Lookup: "lt", Value: 100.0},
	)
	coll := NewSQLCollection(reg.GetModel("product"), reg).Filter(pred).(*SQLCollection)

	qr := coll.SelectSQL()
	if !strings.Contains(qr.SQL, "WHERE (status = $1 OR price < $2)") {
		t.Fatalf("unexpected SQL: %s", qr.SQL)
	}
	if !reflect.DeepEqual(qr.Params, []any{"active", 100.0}) {
		t.Fatalf("unexpected params: %v", qr.Params)
	}
}

func TestSelectSQL_LookupVariants(t *testing.T) {
	reg := testModelRegistry()
	model := reg.GetModel("product")

	cases := []struct {
		cond   filter.Cond
		want   string
		params []any
	}{
		{filter.Cond{Path: "name", Lookup: "icontains", Value: "phone"},
			"name ILIKE $1", []any{"%phone%"}},
		{filter.Cond{Path: "name", Lookup: "startswith", Value: "Old"},
			"name LIKE $1", []any{"Old%"}},
		{filter.Cond{Path: "name", Lookup: "iexact", Value: "laptop"},
			"LOWER(name::text) = LOWER($1)", []any{"laptop"}},
		{filter.Cond{Path: "status", Lookup: "in", Value: []string{"active", "discontinued"}},
			"status = ANY($1)", []any{[]string{"active", "discontinued"}}},
		{filter.Cond{Path: "stock", Lookup: "range", Value: []any{1, 10}},
			"stock BETWEEN $1 AND $2", []any{1, 10}},
		{filter.Cond{Path: "name", Lookup: "isnull", Value: true},
			"name IS NULL", nil},
		{filter.Cond{Path: "name", Lookup: "isnull", Value: false},
			"name IS NOT NULL", nil},
		{filter.Cond{Path: "tags", Lookup: "overlap", Value: []string{"a", "b"}},
			"tags && $1", []any{[]string{"a", "b"}}},
		{filter.Cond{Path: "tags", Lookup: "len", Value: 2},
			"array_length(tags, 1) = $1", []any{2}},
	}

	for _, tc := range cases {
		coll := NewSQLCollection(model, reg).Filter(tc.cond).(*SQLCollection)
		qr := coll.SelectSQL()
		if !strings.Contains(qr.SQL, tc.want) {
			t.Fatalf("%s: expected %q in %q", tc.cond.Lookup, tc.want, qr.SQL)
		}
		if len(tc.params) == 0 && len(qr.Params) != 0 {
			t.Fatalf("%s: expected no params, got %v", tc.cond.Lookup, qr.Params)
		}
		if len(tc.params) > 0 && !reflect.DeepEqual(qr.Params, tc.params) {
			t.Fatalf("%s: expected %v, got %v", tc.cond.Lookup, tc.params, qr.Params)
		}
	}
}

func TestSelectSQL_RelationPathCompilesToExists(t *testing.T) {
	reg := testModelRegistry()
	coll := NewSQLCollection(reg.GetModel("product"), reg).
		Filter(filter.Cond{Path: "category.name", Lookup: "icontains", Value: "electro"}).(*SQLCollection)

	qr := coll.SelectSQL()
	want := "EXISTS (SELECT 1 FROM categories WHERE categories.id = products.category AND name ILIKE $1)"
	if !strings.Contains(qr.SQL, want) {
		t.Fatalf("expected %q in %q", want, qr.SQL)
	}
	if !reflect.DeepEqual(qr.Params, []any{"%electro%"}) {
		t.Fatalf("unexpected params: %v", qr.Params)
	}
}

func TestSelectSQL_RelationPathOrdering(t *testing.T) {
	reg := testModelRegistry()
	model := reg.GetModel("product")
	mf := filter.New(model, reg, filter.Params{"ordering": {"category_name"}},
		NewSQLCollection(model, reg), filter.Config{})

	coll := mf.Result().(*SQLCollection)
	qr := coll.SelectSQL()
	want := "ORDER BY (SELECT name FROM categories WHERE categories.id = products.category) ASC"
	if !strings.Contains(qr.SQL, want) {
		t.Fatalf("expected %q in %q", want, qr.SQL)
	}
	// The related table must never appear as a bare column reference
	if strings.Contains(qr.SQL, "ORDER BY category.name") {
		t.Fatalf("relation path leaked as bare column: %s", qr.SQL)
	}
}

func TestSelectSQL_UnresolvableOrderKeyDropped(t *testing.T) {
	reg := testModelRegistry()
	coll := NewSQLCollection(reg.GetModel("product"), reg).
		OrderBy("bogus.field").(*SQLCollection)

	qr := coll.SelectSQL()
	if strings.Contains(qr.SQL, "ORDER BY") {
		t.Fatalf("expected sort key dropped, got %s", qr.SQL)
	}
}

func TestSelectSQL_Annotations(t *testing.T) {
	reg := testModelRegistry()
	coll := NewSQLCollection(reg.GetModel("product"), reg).
		WithAnnotation("discounted_price", "price * 0.9")

	filtered := coll.
		Filter(filter.Cond{Path: "discounted_price", Lookup: "lte", Value: 500.0}).
		OrderBy("-discounted_price").(*SQLCollection)

	qr := filtered.SelectSQL()
	if !strings.Contains(qr.SQL, "price * 0.9 AS discounted_price") {
		t.Fatalf("expected annotation selected: %s", qr.SQL)
	}
	if !strings.Contains(qr.SQL, "WHERE (price * 0.9) <= $1") {
		t.Fatalf("expected annotation substituted in WHERE: %s", qr.SQL)
	}
	if !strings.Contains(qr.SQL, "ORDER BY (price * 0.9) DESC") {
		t.Fatalf("expected annotation substituted in ORDER BY: %s", qr.SQL)
	}
}

func TestCountSQL(t *testing.T) {
	reg := testModelRegistry()
	coll := NewSQLCollection(reg.GetModel("product"), reg).
		Filter(filter.Cond{Path: "is_active", Lookup: "exact", Value: true}).
		OrderBy("-price").(*SQLCollection)

	qr := coll.CountSQL()
	if qr.SQL != "SELECT COUNT(*) FROM products WHERE is_active = $1" {
		t.Fatalf("unexpected SQL: %s", qr.SQL)
	}
	if !reflect.DeepEqual(qr.Params, []any{true}) {
		t.Fatalf("unexpected params: %v", qr.Params)
	}
}

func TestSQLCollection_DerivationDoesNotMutate(t *testing.T) {
	reg := testModelRegistry()
	base := NewSQLCollection(reg.GetModel("product"), reg)
	base.Filter(filter.Cond{Path: "stock", Lookup: "gt", Value: 0})

	qr := base.SelectSQL()
	if strings.Contains(qr.SQL, "WHERE") {
		t.Fatalf("base collection must stay unfiltered: %s", qr.SQL)
	}
}

func TestSelectSQL_ThroughModelFilter(t *testing.T) {
	reg := testModelRegistry()
	model := reg.GetModel("product")
	params := filter.Params{
		"price_min": {"300"},
		"price_max": {"1000"},
		"ordering":  {"-price"},
	}
	mf := filter.New(model, reg, params, NewSQLCollection(model, reg), filter.Config{})

	coll, ok := mf.Result().(*SQLCollection)
	if !ok {
		t.Fatalf("expected SQLCollection, got %T", mf.Result())
	}
	qr := coll.SelectSQL()
	if !strings.Contains(qr.SQL, "WHERE (price >= $1 AND price <= $2) ORDER BY price DESC") {
		t.Fatalf("unexpected SQL: %s", qr.SQL)
	}
	if !reflect.DeepEqual(qr.Params, []any{300.0, 1000.0}) {
		t.Fatalf("unexpected params: %v", qr.Params)
	}
}
