package diagnostics

import (
	"fmt"
	"math"
	"sort"

	"pos-sync/internal/common/models"
)

// Compare diffs a local snapshot against a remote one for every entity type
// present in local. Records are matched by id.
func Compare(local, remote models.Snapshot, opts CompareOptions) []EntityDiff {
	types := make([]models.EntityType, 0, len(local))
	for _, entityType := range models.LocalEntities {
		if _, ok := local[entityType]; ok {
			types = append(types, entityType)
		}
	}

	diffs := make([]EntityDiff, 0, len(types))
	for _, entityType := range types {
		diffs = append(diffs, compareEntity(entityType, local[entityType], remote[entityType], opts))
	}
	return diffs
}

func compareEntity(entityType models.EntityType, local, remote []models.Record, opts CompareOptions) EntityDiff {
	def, _ := models.Lookup(entityType)
	diff := EntityDiff{
		EntityType:  entityType,
		LocalCount:  len(local),
		RemoteCount: len(remote),
	}

	remoteByID := indexByID(remote)
	localByID := indexByID(local)

	for _, id := range sortedIDs(localByID) {
		rec := localByID[id]
		other, ok := remoteByID[id]
		if !ok {
			diff.LocalOnly = append(diff.LocalOnly, RecordRef{ID: id, Pending: opts.Pending.Has(entityType, id)})
			continue
		}
		if fields := compareFields(def, rec, other, opts.Tolerance); len(fields) > 0 {
			diff.Mismatches = append(diff.Mismatches, Mismatch{ID: id, Fields: fields})
		}
	}
	for _, id := range sortedIDs(remoteByID) {
		if _, ok := localByID[id]; !ok {
			diff.RemoteOnly = append(diff.RemoteOnly, RecordRef{ID: id})
		}
	}
	return diff
}

// compareFields returns the differing fields. A field the remote does not
// expose is not a difference.
func compareFields(def models.EntityDef, local, remote models.Record, tolerance float64) []FieldDiff {
	var diffs []FieldDiff

	for _, field := range def.Fields {
		r, ok := remote.Get(field)
		if !ok {
			continue
		}
		l, _ := local.Get(field)
		if text(l) != text(r) {
			diffs = append(diffs, FieldDiff{Field: field, Local: l, Remote: r})
		}
	}

	for _, field := range def.NumericFields {
		r, ok := remote.Get(field)
		if !ok {
			continue
		}
		l, _ := local.Get(field)
		lf, lok := models.ToFloat(l)
		rf, rok := models.ToFloat(r)
		switch {
		case !lok && !rok:
			continue
		case lok != rok:
			diffs = append(diffs, FieldDiff{Field: field, Local: l, Remote: r})
		case ExceedsTolerance(lf, rf, tolerance):
			diffs = append(diffs, FieldDiff{Field: field, Local: lf, Remote: rf})
		}
	}
	return diffs
}

// ExceedsTolerance reports |expected - actual| > tolerance * |expected|.
// A difference of exactly the tolerance is accepted.
func ExceedsTolerance(expected, actual, tolerance float64) bool {
	return math.Abs(expected-actual) > tolerance*math.Abs(expected)
}

func text(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func indexByID(records []models.Record) map[string]models.Record {
	index := make(map[string]models.Record, len(records))
	for _, rec := range records {
		if id := rec.ID(); id != "" {
			index[id] = rec
		}
	}
	return index
}

func sortedIDs(index map[string]models.Record) []string {
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
