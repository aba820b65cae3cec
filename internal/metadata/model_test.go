package metadata

import (
	"reflect"
	"testing"
)

func orderModel() *Model {
	return &Model{
		Name:  "order",
		Table: "orders",
		PrimaryKey: PrimaryKey{
			Field: "id", Type: "uuid", Generated: true,
		},
		Fields: []Field{
			{Name: "id", Type: "uuid"},
			{Name: "number", Type: "string", Required: true, Unique: true},
			{Name: "total", Type: "decimal"},
			{Name: "customer", Type: "relation", Relation: "customer"},
			{Name: "created_at", Type: "timestamp", Auto: "create"},
			{Name: "updated_at", Type: "timestamp", Auto: "update"},
			{Name: "items", Type: "relation", Relation: "order_item", Reverse: true},
		},
	}
}

func TestModel_GetField(t *testing.T) {
	m := orderModel()
	if f := m.GetField("total"); f == nil || f.Type != "decimal" {
		t.Fatalf("unexpected field: %+v", f)
	}
	if m.GetField("missing") != nil {
		t.Fatal("expected nil for unknown field")
	}
	if !m.HasField("number") || m.HasField("missing") {
		t.Fatal("unexpected HasField result")
	}
}

func TestModel_FieldNames(t *testing.T) {
	m := orderModel()
	got := m.FieldNames()
	want := []string{"id", "number", "total", "customer", "created_at", "updated_at", "items"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestModel_WritableFields(t *testing.T) {
	m := orderModel()
	var names []string
	for _, f := range m.WritableFields() {
		names = append(names, f.Name)
	}
	// Excludes the generated PK, auto timestamps and reverse relations
	want := []string{"number", "total", "customer"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
}

func TestField_PostgresType(t *testing.T) {
	cases := map[string]string{
		"string":    "TEXT",
		"text":      "TEXT",
		"int":       "INTEGER",
		"bigint":    "BIGINT",
		"decimal":   "NUMERIC",
		"boolean":   "BOOLEAN",
		"uuid":      "UUID",
		"timestamp": "TIMESTAMPTZ",
		"date":      "DATE",
		"json":      "JSONB",
		"array":     "TEXT[]",
		"anything":  "TEXT",
	}
	for fieldType, want := range cases {
		f := Field{Name: "x", Type: fieldType}
		if got := f.PostgresType(); got != want {
			t.Fatalf("%s: expected %s, got %s", fieldType, want, got)
		}
	}
}

func TestField_Predicates(t *testing.T) {
	if !(Field{Name: "c", Type: "relation", Relation: "category"}).IsRelation() {
		t.Fatal("expected relation")
	}
	if (Field{Name: "n", Type: "string"}).IsRelation() {
		t.Fatal("expected non-relation")
	}
	if !(Field{Name: "t", Auto: "create"}).IsAuto() {
		t.Fatal("expected auto field")
	}
	if !(Field{Name: "s", Choices: []Choice{{Value: "a", Label: "A"}}}).HasChoices() {
		t.Fatal("expected choices")
	}
}

func TestRegistry_LoadAndGet(t *testing.T) {
	reg := NewRegistry()
	reg.Load([]*Model{orderModel()})

	if reg.GetModel("order") == nil {
		t.Fatal("expected model registered")
	}
	if reg.GetModel("missing") != nil {
		t.Fatal("expected nil for unknown model")
	}
	if len(reg.AllModels()) != 1 {
		t.Fatalf("expected 1 model, got %d", len(reg.AllModels()))
	}
}
