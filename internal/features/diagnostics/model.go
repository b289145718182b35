package diagnostics

import (
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/features/queue"
)

// RecordRef points at a record that exists on one side only.
type RecordRef struct {
	ID string `json:"id"`
	// Pending is set for local-only records that still have an unsynced queue entry.
	Pending bool `json:"pending"`
}

type FieldDiff struct {
	Field  string `json:"field"`
	Local  any    `json:"local"`
	Remote any    `json:"remote"`
}

type Mismatch struct {
	ID     string      `json:"id"`
	Fields []FieldDiff `json:"fields"`
}

type EntityDiff struct {
	EntityType  models.EntityType `json:"entity_type"`
	LocalCount  int               `json:"local_count"`
	RemoteCount int               `json:"remote_count"`
	LocalOnly   []RecordRef       `json:"local_only"`
	RemoteOnly  []RecordRef       `json:"remote_only"`
	Mismatches  []Mismatch        `json:"mismatches"`
}

// Clean reports whether both sides agree.
func (d EntityDiff) Clean() bool {
	return len(d.LocalOnly) == 0 && len(d.RemoteOnly) == 0 && len(d.Mismatches) == 0
}

// PendingSet holds the records with unsynced queue entries, keyed by entity type and id.
type PendingSet map[models.EntityType]map[string]bool

func (p PendingSet) Add(entityType models.EntityType, id string) {
	if p[entityType] == nil {
		p[entityType] = map[string]bool{}
	}
	p[entityType][id] = true
}

func (p PendingSet) Has(entityType models.EntityType, id string) bool {
	return p[entityType][id]
}

// PendingFromQueue builds a PendingSet from unsynced queue entries.
func PendingFromQueue(entries []queue.Entry) PendingSet {
	set := PendingSet{}
	for _, e := range entries {
		set.Add(e.EntityType, e.EntityID)
	}
	return set
}

type CompareOptions struct {
	Tolerance float64
	Pending   PendingSet
}

type PurchaseIssue struct {
	Source      string  `json:"source"`
	ID          string  `json:"id"`
	QtyUnits    float64 `json:"qty_units"`
	UnitsPerBox float64 `json:"units_per_box"`
	UnitCost    float64 `json:"unit_cost"`
	Expected    float64 `json:"expected"`
	Stored      float64 `json:"stored"`
	Difference  float64 `json:"difference"`
}

// DuplicateGroup is a set of records sharing a rule key. Original is kept,
// Duplicates are candidates for deletion.
type DuplicateGroup struct {
	EntityType models.EntityType `json:"entity_type"`
	Key        string            `json:"key"`
	Original   models.Record     `json:"original"`
	Duplicates []models.Record   `json:"duplicates"`
}

// DuplicateIDs lists the ids of the records that would be deleted.
func (g DuplicateGroup) DuplicateIDs() []string {
	ids := make([]string, 0, len(g.Duplicates))
	for _, rec := range g.Duplicates {
		ids = append(ids, rec.ID())
	}
	return ids
}

type RepairResult struct {
	EntityType models.EntityType `json:"entity_type"`
	Deleted    []string          `json:"deleted"`
	Failed     map[string]string `json:"failed,omitempty"`
}

type Report struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Source      string                 `json:"source"`
	Tolerance   float64                `json:"tolerance"`
	Entities    []EntityDiff           `json:"entities"`
	Purchases   []PurchaseIssue        `json:"purchases"`
	Duplicates  []DuplicateGroup       `json:"duplicates"`
	Integrity   []queue.IntegrityIssue `json:"integrity"`
}

// Clean reports whether the run found nothing to act on.
func (r *Report) Clean() bool {
	for _, d := range r.Entities {
		if !d.Clean() {
			return false
		}
	}
	return len(r.Purchases) == 0 && len(r.Duplicates) == 0 && len(r.Integrity) == 0
}
