package diagnostics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/features/queue"

	"github.com/xuri/excelize/v2"
)

func sampleReport() *Report {
	return &Report{
		GeneratedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Source:      "api",
		Tolerance:   0.1,
		Entities: []EntityDiff{
			{
				EntityType:  models.EntityCustomer,
				LocalCount:  2,
				RemoteCount: 2,
				LocalOnly:   []RecordRef{{ID: "c2", Pending: true}},
				RemoteOnly:  []RecordRef{{ID: "c3"}},
				Mismatches: []Mismatch{
					{ID: "c1", Fields: []FieldDiff{{Field: "name", Local: "Ana", Remote: "Ana María"}}},
				},
			},
		},
		Purchases: []PurchaseIssue{
			{Source: "local", ID: "pi1", QtyUnits: 10, UnitsPerBox: 5, UnitCost: 100, Expected: 200, Stored: 221, Difference: 21},
		},
		Duplicates: []DuplicateGroup{
			{
				EntityType: models.EntityInventory,
				Key:        "p1|purchase",
				Original:   models.Record{"id": "7"},
				Duplicates: []models.Record{{"id": "12"}},
			},
		},
		Integrity: []queue.IntegrityIssue{
			{EntityType: models.EntitySale, EntityID: "s1", EntryIDs: []int64{3, 4}, Problem: "more than one unsynced create for the same record"},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"customers c2: local only (pending sync)",
		"customers c3: remote only",
		"name local=Ana remote=Ana María",
		"[local] pi1",
		"inventory [p1|purchase]: keep 7, delete 12",
		"sales s1: more than one unsynced create",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Local and remote agree") {
		t.Error("report with findings must not claim agreement")
	}
}

func TestWriteTextCleanReport(t *testing.T) {
	var buf bytes.Buffer
	r := &Report{Source: "api", Tolerance: 0.1, Entities: []EntityDiff{{EntityType: models.EntitySale, LocalCount: 1, RemoteCount: 1}}}
	if err := WriteText(&buf, r); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if !strings.Contains(buf.String(), "Local and remote agree") {
		t.Fatalf("expected agreement line:\n%s", buf.String())
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{"Summary", "Local only", "Remote only", "Mismatches", "Purchases", "Duplicates", "Integrity"}
	if strings.Join(sheets, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected sheets %v", sheets)
	}

	rows, err := f.GetRows("Duplicates")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 || rows[1][2] != "7" || rows[1][3] != "12" {
		t.Fatalf("unexpected duplicate rows %v", rows)
	}

	rows, _ = f.GetRows("Local only")
	if len(rows) != 2 || rows[1][1] != "c2" || rows[1][2] != "yes" {
		t.Fatalf("unexpected local only rows %v", rows)
	}
}
