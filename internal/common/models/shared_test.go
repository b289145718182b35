package models

import (
	"encoding/json"
	"testing"
)

func TestRecordGetFallsBackToCamelCase(t *testing.T) {
	rec := Record{"unitsPerBox": 6.0, "id": 42}

	v, ok := rec.Float("units_per_box")
	if !ok || v != 6 {
		t.Fatalf("expected 6 via camelCase fallback, got %v (ok=%v)", v, ok)
	}
	if rec.ID() != "42" {
		t.Fatalf("expected id 42, got %q", rec.ID())
	}
}

func TestToFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{12.5, 12.5, true},
		{int64(3), 3, true},
		{"7.25", 7.25, true},
		{json.Number("200"), 200, true},
		{"abc", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := ToFloat(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ToFloat(%v) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestLookupUnknownEntity(t *testing.T) {
	if _, err := Lookup("tabs"); err == nil {
		t.Fatal("expected error for unknown entity type")
	}
	def, err := Lookup(EntitySaleItem)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if def.Resource != "sale-items" || len(def.Parents) != 2 {
		t.Fatalf("unexpected definition %+v", def)
	}
}
