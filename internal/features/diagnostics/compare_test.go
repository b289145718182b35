package diagnostics

import (
	"encoding/json"
	"testing"

	"pos-sync/internal/common/models"
)

func TestCompareClassifiesRecords(t *testing.T) {
	local := models.Snapshot{
		models.EntityCustomer: {
			{"id": "c1", "name": "Ana", "phone": "555"},
			{"id": "c2", "name": "Luis", "phone": nil},
			{"id": "c4", "name": "Eva", "phone": nil},
		},
	}
	remote := models.Snapshot{
		models.EntityCustomer: {
			{"id": "c1", "name": "Ana María", "phone": "555"},
			{"id": "c3", "name": "Remote only"},
		},
	}
	pending := PendingSet{}
	pending.Add(models.EntityCustomer, "c2")

	diffs := Compare(local, remote, CompareOptions{Tolerance: 0.1, Pending: pending})
	if len(diffs) != 1 {
		t.Fatalf("expected one entity diff, got %d", len(diffs))
	}
	d := diffs[0]

	if d.LocalCount != 3 || d.RemoteCount != 2 {
		t.Fatalf("unexpected counts %d/%d", d.LocalCount, d.RemoteCount)
	}
	if len(d.LocalOnly) != 2 || d.LocalOnly[0] != (RecordRef{ID: "c2", Pending: true}) || d.LocalOnly[1] != (RecordRef{ID: "c4"}) {
		t.Fatalf("unexpected local only %+v", d.LocalOnly)
	}
	if len(d.RemoteOnly) != 1 || d.RemoteOnly[0].ID != "c3" {
		t.Fatalf("unexpected remote only %+v", d.RemoteOnly)
	}
	if len(d.Mismatches) != 1 || d.Mismatches[0].ID != "c1" {
		t.Fatalf("unexpected mismatches %+v", d.Mismatches)
	}
	if f := d.Mismatches[0].Fields; len(f) != 1 || f[0].Field != "name" {
		t.Fatalf("expected a name diff, got %+v", f)
	}
}

func TestCompareNumericTolerance(t *testing.T) {
	local := models.Snapshot{
		models.EntityProduct: {
			{"id": "p1", "name": "Cerveza", "price": 100.0, "units_per_box": int64(12)},
			{"id": "p2", "name": "Ron", "price": 100.0, "units_per_box": int64(6)},
			{"id": "p3", "name": "Agua", "price": 100.0, "units_per_box": int64(24)},
		},
	}
	remote := models.Snapshot{
		models.EntityProduct: {
			{"id": "p1", "name": "Cerveza", "price": json.Number("109"), "unitsPerBox": json.Number("12")},
			{"id": "p2", "name": "Ron", "price": "111.00", "unitsPerBox": 6},
			{"id": "p3", "name": "Agua", "price": 110.0, "unitsPerBox": 20},
		},
	}

	diffs := Compare(local, remote, CompareOptions{Tolerance: 0.1})
	mismatches := map[string][]FieldDiff{}
	for _, m := range diffs[0].Mismatches {
		mismatches[m.ID] = m.Fields
	}

	if _, ok := mismatches["p1"]; ok {
		t.Fatalf("p1 within tolerance must not be flagged: %+v", mismatches["p1"])
	}
	if f := mismatches["p2"]; len(f) != 1 || f[0].Field != "price" {
		t.Fatalf("p2 price beyond tolerance must be flagged, got %+v", f)
	}
	if f := mismatches["p3"]; len(f) != 1 || f[0].Field != "units_per_box" {
		t.Fatalf("p3 units_per_box must be flagged via camelCase lookup, got %+v", f)
	}
}

func TestCompareIgnoresFieldsTheRemoteDoesNotExpose(t *testing.T) {
	local := models.Snapshot{
		models.EntityCustomer: {{"id": "c1", "name": "Ana", "phone": "555"}},
	}
	remote := models.Snapshot{
		models.EntityCustomer: {{"id": "c1", "name": "Ana"}},
	}
	if d := Compare(local, remote, CompareOptions{Tolerance: 0.1}); !d[0].Clean() {
		t.Fatalf("expected clean diff, got %+v", d[0])
	}
}

func TestExceedsTolerance(t *testing.T) {
	cases := []struct {
		expected, actual float64
		want             bool
	}{
		{200, 219, false},
		{200, 220, false},
		{200, 221, true},
		{200, 179, true},
		{0, 0, false},
		{0, 1, true},
	}
	for _, c := range cases {
		if got := ExceedsTolerance(c.expected, c.actual, 0.1); got != c.want {
			t.Errorf("ExceedsTolerance(%v, %v) = %v, want %v", c.expected, c.actual, got, c.want)
		}
	}
}
