package diagnostics

import (
	"testing"

	"pos-sync/internal/common/models"
)

func TestCheckPurchaseTotalsBoundary(t *testing.T) {
	// 10 / 5 * 100 = 200 for every item.
	items := []models.Record{
		{"id": "ok", "qty_units": 10, "units_per_box": 5, "unit_cost": 100, "total": 200},
		{"id": "under-19", "qty_units": 10, "units_per_box": 5, "unit_cost": 100, "total": 181},
		{"id": "over-19", "qty_units": 10, "units_per_box": 5, "unit_cost": 100, "total": 219},
		{"id": "exact-20", "qty_units": 10, "units_per_box": 5, "unit_cost": 100, "total": 180},
		{"id": "over-21", "qty_units": 10, "units_per_box": 5, "unit_cost": 100, "total": 221},
		{"id": "under-21", "qtyUnits": "10", "unitsPerBox": "5", "unitCost": "100", "total": "179"},
		{"id": "incomplete", "qty_units": 10},
	}

	issues := CheckPurchaseTotals(items, 0.1)
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %+v", issues)
	}
	if issues[0].ID != "over-21" || issues[0].Difference != 21 {
		t.Fatalf("unexpected first issue %+v", issues[0])
	}
	if issues[1].ID != "under-21" || issues[1].Expected != 200 || issues[1].Stored != 179 {
		t.Fatalf("unexpected second issue %+v", issues[1])
	}
}

func TestCheckPurchaseTotalsTreatsMissingUnitsPerBoxAsOne(t *testing.T) {
	items := []models.Record{
		{"id": "p1", "qty_units": 3, "unit_cost": 10, "total": 30},
		{"id": "p2", "qty_units": 3, "units_per_box": 0, "unit_cost": 10, "total": 10},
	}
	issues := CheckPurchaseTotals(items, 0.1)
	if len(issues) != 1 || issues[0].ID != "p2" || issues[0].UnitsPerBox != 1 {
		t.Fatalf("unexpected issues %+v", issues)
	}
}
