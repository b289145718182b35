package diagnostics

import (
	"math"

	"pos-sync/internal/common/models"
	"pos-sync/internal/features/store"
)

// CheckPurchaseTotals recomputes qty_units / units_per_box * unit_cost for
// each purchase item and flags stored totals outside the tolerance.
// Items missing any of the inputs are skipped.
func CheckPurchaseTotals(items []models.Record, tolerance float64) []PurchaseIssue {
	var issues []PurchaseIssue
	for _, item := range items {
		qty, ok1 := item.Float("qty_units")
		cost, ok2 := item.Float("unit_cost")
		stored, ok3 := item.Float("total")
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		unitsPerBox, _ := item.Float("units_per_box")

		expected := store.PurchaseTotal(qty, unitsPerBox, cost)
		if !ExceedsTolerance(expected, stored, tolerance) {
			continue
		}
		if unitsPerBox <= 0 {
			unitsPerBox = 1
		}
		issues = append(issues, PurchaseIssue{
			ID:          item.ID(),
			QtyUnits:    qty,
			UnitsPerBox: unitsPerBox,
			UnitCost:    cost,
			Expected:    expected,
			Stored:      stored,
			Difference:  math.Abs(expected - stored),
		})
	}
	return issues
}
