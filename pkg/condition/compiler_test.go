package condition

import (
	"testing"

	"pos-sync/internal/common/models"
)

func TestCompileMatchesRecords(t *testing.T) {
	group := &Group{
		Operator: "AND",
		Rules: []Rule{
			{Field: "adjustment_type", Operator: "nin", Value: []any{"sale", "return"}},
			{Field: "quantity", Operator: "gt", Value: 0},
		},
		Groups: []Group{
			{
				Operator: "OR",
				Rules: []Rule{
					{Field: "note", Operator: "contains", Value: "box"},
					{Field: "product_id", Operator: "startsWith", Value: "P-"},
				},
			},
		},
	}

	match, err := NewCompiler(nil).Compile(group)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		rec  models.Record
		want bool
	}{
		{models.Record{"adjustmentType": "purchase", "quantity": "12", "productId": "p-9"}, true},
		{models.Record{"adjustment_type": "purchase", "quantity": 3, "note": "Full BOX"}, true},
		{models.Record{"adjustment_type": "sale", "quantity": 3, "note": "box"}, false},
		{models.Record{"adjustment_type": "purchase", "quantity": 0, "note": "box"}, false},
		{models.Record{"adjustment_type": "purchase", "quantity": 3, "product_id": "X-1"}, false},
	}
	for i, c := range cases {
		if got := match(c.rec); got != c.want {
			t.Errorf("case %d: got %v, want %v", i, got, c.want)
		}
	}
}

func TestCompileResolvesVariables(t *testing.T) {
	match, err := NewCompiler(map[string]interface{}{"product": "p1"}).Compile(&Group{
		Rules: []Rule{{Field: "productId", Operator: "eq", Value: "$product", Type: RuleTypeVariable}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !match(models.Record{"productId": "p1"}) || match(models.Record{"productId": "p2"}) {
		t.Fatal("variable not resolved")
	}

	_, err = NewCompiler(nil).Compile(&Group{
		Rules: []Rule{{Field: "x", Operator: "eq", Value: "$missing", Type: RuleTypeVariable}},
	})
	if err == nil {
		t.Fatal("expected error for unknown variable")
	}
}

func TestCompileRejectsUnknownOperator(t *testing.T) {
	if _, err := NewCompiler(nil).Compile(&Group{Rules: []Rule{{Field: "x", Operator: "like"}}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNilGroupMatchesEverything(t *testing.T) {
	match, err := NewCompiler(nil).Compile(nil)
	if err != nil || !match(models.Record{}) {
		t.Fatalf("nil group must match, err=%v", err)
	}
}
