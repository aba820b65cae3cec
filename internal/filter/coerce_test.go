package filter

import (
	"reflect"
	"testing"
)

func TestCoerceValue_Boolean(t *testing.T) {
	truthy := []string{"true", "True", "t", "yes", "y", "1"}
	for _, v := range truthy {
		if got := CoerceValue(v, TypeBoolean); got != true {
			t.Fatalf("%q: expected true, got %v", v, got)
		}
	}

	falsy := []string{"false", "no", "0", "", "anything"}
	for _, v := range falsy {
		if got := CoerceValue(v, TypeBoolean); got != false {
			t.Fatalf("%q: expected false, got %v", v, got)
		}
	}

	if got := CoerceValue(true, TypeBoolean); got != true {
		t.Fatalf("expected passthrough true, got %v", got)
	}
}

func TestCoerceValue_Integer(t *testing.T) {
	if got := CoerceValue("42", TypeInteger); got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
	if got := CoerceValue(float64(7), TypeInteger); got != 7 {
		t.Fatalf("expected 7, got %v", got)
	}

	// Unparsable input coerces to zero rather than failing
	if got := CoerceValue("abc", TypeInteger); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestCoerceValue_Decimal(t *testing.T) {
	if got := CoerceValue("19.99", TypeDecimal); got != 19.99 {
		t.Fatalf("expected 19.99, got %v", got)
	}
	if got := CoerceValue("abc", TypeDecimal); got != 0.0 {
		t.Fatalf("expected 0.0, got %v", got)
	}
}

func TestCoerceValue_ListElementWise(t *testing.T) {
	got := CoerceValue([]string{"1", "2", "x"}, TypeInteger)
	if !reflect.DeepEqual(got, []any{1, 2, 0}) {
		t.Fatalf("expected [1 2 0], got %v", got)
	}
}

func TestCoerceValue_TextPassthrough(t *testing.T) {
	if got := CoerceValue("hello", TypeText); got != "hello" {
		t.Fatalf("expected passthrough, got %v", got)
	}
	list := []string{"a", "b"}
	if got := CoerceValue(list, TypeEnum); !reflect.DeepEqual(got, list) {
		t.Fatalf("expected passthrough list, got %v", got)
	}
}
