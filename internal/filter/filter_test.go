package filter

import (
	"reflect"
	"testing"

	"dynfilter/internal/metadata"
)

func productModel() *metadata.Model {
	return &metadata.Model{
		Name:  "product",
		Table: "products",
		PrimaryKey: metadata.PrimaryKey{
			Field: "id", Type: "uuid", Generated: true,
		},
		Fields: []metadata.Field{
			{Name: "id", Type: "uuid"},
			{Name: "name", Type: "string", Filter: &metadata.FilterConfig{Searchable: true}},
			{Name: "description", Type: "text", Filter: &metadata.FilterConfig{Searchable: true}},
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
			{Name: "attrs", Type: "json"},
			{Name: "category", Type: "relation", Relation: "category"},
			{Name: "created_at", Type: "timestamp", Auto: "create"},
			{Name: "release_date", Type: "date"},
			{Name: "reviews", Type: "relation", Relation: "review", Reverse: true},
		},
	}
}

func categoryModel() *metadata.Model {
	return &metadata.Model{
		Name:  "category",
		Table: "categories",
		PrimaryKey: metadata.PrimaryKey{
			Field: "id", Type: "uuid", Generated: true,
		},
		Fields: []metadata.Field{
			{Name: "id", Type: "uuid"},
			{Name: "name", Type: "string"},
			{Name: "slug", Type: "slug"},
		},
	}
}

func testModels() *metadata.Registry {
	reg := metadata.NewRegistry()
	reg.Load([]*metadata.Model{productModel(), categoryModel()})
	return reg
}

func newTestFilter(params Params) *ModelFilter {
	models := testModels()
	return New(models.GetModel("product"), models, params, nil, Config{})
}

// stubCollection records the predicate and ordering it receives.
type stubCollection struct {
	annotations map[string]string
	pred        Predicate
	order       []string
	filterCalls int
}

func (s *stubCollection) Filter(p Predicate) Collection {
	s.filterCalls++
	s.pred = p
	return s
}

func (s *stubCollection) OrderBy(keys ...string) Collection {
	s.order = keys
	return s
}

func (s *stubCollection) Annotations() map[string]string {
	return s.annotations
}

func TestOrdering_Resolution(t *testing.T) {
	mf := newTestFilter(Params{"ordering": {"-price,name"}})
	got := mf.Ordering()
	want := []string{"-price", "name"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOrdering_DropsUnknownFields(t *testing.T) {
	mf := newTestFilter(Params{"ordering": {"-price,bogus"}})
	got := mf.Ordering()
	if !reflect.DeepEqual(got, []string{"-price"}) {
		t.Fatalf("expected [-price], got %v", got)
	}
}

func TestOrdering_FallsBackToDefault(t *testing.T) {
	// Entirely unknown ordering falls back to -id
	mf := newTestFilter(Params{"ordering": {"bogus"}})
	got := mf.Ordering()
	if !reflect.DeepEqual(got, []string{"-id"}) {
		t.Fatalf("expected [-id], got %v", got)
	}

	// Absent ordering does the same
	mf = newTestFilter(Params{})
	got = mf.Ordering()
	if !reflect.DeepEqual(got, []string{"-id"}) {
		t.Fatalf("expected [-id], got %v", got)
	}
}

func TestOrdering_PrimaryKeyFallback(t *testing.T) {
	model := &metadata.Model{
		Name:  "event",
		Table: "events",
		PrimaryKey: metadata.PrimaryKey{
			Field: "event_id", Type: "uuid", Generated: true,
		},
		Fields: []metadata.Field{
			{Name: "event_id", Type: "uuid"},
			{Name: "title", Type: "string"},
		},
	}
	mf := New(model, nil, Params{}, nil, Config{})
	got := mf.Ordering()
	if !reflect.DeepEqual(got, []string{"-event_id"}) {
		t.Fatalf("expected [-event_id], got %v", got)
	}
}

func TestOrdering_RelationPathResolution(t *testing.T) {
	// category's name field registers as category_name with a dotted path
	mf := newTestFilter(Params{"ordering": {"category_name"}})
	got := mf.Ordering()
	if !reflect.DeepEqual(got, []string{"category.name"}) {
		t.Fatalf("expected [category.name], got %v", got)
	}
}

func TestBuildPredicate_FlatParams(t *testing.T) {
	mf := newTestFilter(Params{
		"name":     {"laptop"},
		"ordering": {"-price"},
	})
	pred := mf.BuildPredicate()
	cond, ok := pred.(Cond)
	if !ok {
		t.Fatalf("expected a single Cond, got %T", pred)
	}
	if cond.Path != "name" || cond.Lookup != "icontains" || cond.Value != "laptop" {
		t.Fatalf("unexpected cond: %+v", cond)
	}
}

func TestBuildPredicate_UnknownParamsIgnored(t *testing.T) {
	mf := newTestFilter(Params{"nonsense": {"x"}, "page": {"2"}})
	if pred := mf.BuildPredicate(); pred != nil {
		t.Fatalf("expected nil predicate, got %+v", pred)
	}
}

func TestBuildPredicate_CombinesSearchRangeAndFields(t *testing.T) {
	mf := newTestFilter(Params{
		"search":    {"phone"},
		"price_min": {"100"},
		"is_active": {"true"},
	})
	pred := mf.BuildPredicate()
	group, ok := pred.(Group)
	if !ok {
		t.Fatalf("expected Group, got %T", pred)
	}
	if group.Op != OpAnd {
		t.Fatalf("expected AND group, got %s", group.Op)
	}
	if len(group.Preds) != 3 {
		t.Fatalf("expected 3 predicates, got %d: %+v", len(group.Preds), group.Preds)
	}
}

func TestBuildPredicate_AdvancedSupersedesFlat(t *testing.T) {
	mf := newTestFilter(Params{
		"filter":    {`{"field": "status", "value": "active"}`},
		"price_min": {"100"},
		"name":      {"laptop"},
	})
	pred := mf.BuildPredicate()
	cond, ok := pred.(Cond)
	if !ok {
		t.Fatalf("expected the advanced Cond alone, got %T: %+v", pred, pred)
	}
	if cond.Path != "status" || cond.Value != "active" {
		t.Fatalf("unexpected cond: %+v", cond)
	}
}

func TestBuildPredicate_MalformedAdvancedFallsThrough(t *testing.T) {
	mf := newTestFilter(Params{
		"filter": {`{not json`},
		"name":   {"laptop"},
	})
	pred := mf.BuildPredicate()
	cond, ok := pred.(Cond)
	if !ok {
		t.Fatalf("expected flat-path Cond, got %T", pred)
	}
	if cond.Path != "name" {
		t.Fatalf("unexpected cond: %+v", cond)
	}
}

func TestApply_Idempotent(t *testing.T) {
	models := testModels()
	coll := &stubCollection{}
	mf := New(models.GetModel("product"), models, Params{"name": {"x"}}, coll, Config{})

	mf.Apply()
	mf.Apply()
	if coll.filterCalls != 1 {
		t.Fatalf("expected 1 filter call, got %d", coll.filterCalls)
	}
	if mf.Result() != Collection(coll) {
		t.Fatal("Result did not return the filtered collection")
	}
	if !reflect.DeepEqual(coll.order, []string{"-id"}) {
		t.Fatalf("expected default ordering applied, got %v", coll.order)
	}
}

func TestFilterableFields(t *testing.T) {
	mf := newTestFilter(Params{})
	fields := mf.FilterableFields()

	name, ok := fields["name"]
	if !ok {
		t.Fatal("expected name in filterable fields")
	}
	if name.Type != TypeText || !name.Searchable || !name.Filterable {
		t.Fatalf("unexpected name meta: %+v", name)
	}

	status := fields["status"]
	if status.Type != TypeEnum || len(status.Choices) != 2 {
		t.Fatalf("unexpected status meta: %+v", status)
	}

	price := fields["price"]
	if !price.RangeFilter || price.DefaultLookup != "exact" {
		t.Fatalf("unexpected price meta: %+v", price)
	}
}

func TestFilterParams_Echo(t *testing.T) {
	mf := newTestFilter(Params{
		"name":      {"laptop"},
		"page":      {"2"},
		"page_size": {"50"},
		"ordering":  {"-price"},
		"filter":    {`{"field": "status", "value": "active"}`},
	})
	params := mf.FilterParams()

	if params["name"] != "laptop" {
		t.Fatalf("expected name echoed, got %v", params["name"])
	}
	if _, ok := params["page"]; ok {
		t.Fatal("pagination params must not be echoed")
	}
	if _, ok := params["filter"]; ok {
		t.Fatal("raw filter param must not be echoed")
	}
	node, ok := params["_advanced_filter"].(*FilterNode)
	if !ok || node.Leaf == nil || node.Leaf.Field != "status" {
		t.Fatalf("expected decoded advanced filter, got %v", params["_advanced_filter"])
	}
	ordering, ok := params["_ordering"].([]string)
	if !ok || !reflect.DeepEqual(ordering, []string{"-price"}) {
		t.Fatalf("expected normalized ordering, got %v", params["_ordering"])
	}
}

func TestQueryString_RoundTrip(t *testing.T) {
	mf := newTestFilter(Params{"name": {"laptop"}, "price_min": {"100"}})
	got := mf.QueryString()
	if got != "name=laptop&price_min=100" {
		t.Fatalf("unexpected query string %q", got)
	}
}
