package queue

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/database"
	"pos-sync/internal/database/dbtest"
	"pos-sync/internal/syncerr"

	"go.uber.org/zap"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*QueueServiceImpl, *database.LocalDB, *testClock) {
	t.Helper()
	db := dbtest.Open(t)
	clock := &testClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc := NewQueueService(NewQueueRepository(db), zap.NewNop()).(*QueueServiceImpl)
	svc.SetClock(clock.now)
	return svc, db, clock
}

func TestEnqueueListsPendingInOrder(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, models.EntityCustomer, "c1", models.OperationCreate, models.Record{"id": "c1", "name": "Ana"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	clock.t = clock.t.Add(time.Second)
	second, err := svc.Enqueue(ctx, models.EntityCustomer, "c1", models.OperationUpdate, models.Record{"id": "c1", "name": "Ana B"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	pending, err := svc.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("unexpected pending order: %+v", pending)
	}

	rec, err := pending[1].Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.String("name") != "Ana B" {
		t.Fatalf("payload snapshot lost: %v", rec)
	}
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, models.EntityCustomer, "c1", "upsert", nil); !syncerr.Is(err, syncerr.KindValidation) {
		t.Fatalf("expected validation error for unknown operation, got %v", err)
	}
	if _, err := svc.Enqueue(ctx, "tabs", "t1", models.OperationCreate, nil); !syncerr.Is(err, syncerr.KindValidation) {
		t.Fatalf("expected validation error for unknown entity, got %v", err)
	}
	if _, err := svc.Enqueue(ctx, models.EntityCustomer, "", models.OperationCreate, nil); !syncerr.Is(err, syncerr.KindValidation) {
		t.Fatalf("expected validation error for empty id, got %v", err)
	}
}

func TestTransitions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Enqueue(ctx, models.EntityProduct, "p1", models.OperationCreate, nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := svc.Requeue(ctx, entry.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("requeue of pending entry: expected ErrInvalidTransition, got %v", err)
	}

	if err := svc.MarkSynced(ctx, entry.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	if err := svc.MarkSynced(ctx, entry.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second MarkSynced: expected ErrInvalidTransition, got %v", err)
	}
	if err := svc.MarkFailed(ctx, entry.ID, "boom", true, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("MarkFailed on synced: expected ErrInvalidTransition, got %v", err)
	}

	got, err := svc.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusSynced || got.SyncedAt == nil {
		t.Fatalf("expected synced entry with synced_at, got %+v", got)
	}

	if err := svc.MarkSynced(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFailedEntryCanBeRequeued(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	entry, _ := svc.Enqueue(ctx, models.EntitySale, "s1", models.OperationCreate, nil)
	if err := svc.MarkFailed(ctx, entry.ID, `{"message":"total required"}`, false, clock.t); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	failed, _ := svc.Get(ctx, entry.ID)
	if failed.Status != models.StatusFailed || failed.Attempts != 1 || failed.Retryable {
		t.Fatalf("unexpected failed entry %+v", failed)
	}
	if failed.LastError != `{"message":"total required"}` {
		t.Fatalf("last_error not kept: %q", failed.LastError)
	}

	if err := svc.Requeue(ctx, entry.ID); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	requeued, _ := svc.Get(ctx, entry.ID)
	if requeued.Status != models.StatusPending || requeued.Attempts != 1 {
		t.Fatalf("unexpected requeued entry %+v", requeued)
	}
}

func TestRequeueDueOnlyMovesRetryableEntriesPastTheirTime(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	due, _ := svc.Enqueue(ctx, models.EntityCustomer, "c1", models.OperationCreate, nil)
	later, _ := svc.Enqueue(ctx, models.EntityCustomer, "c2", models.OperationCreate, nil)
	terminal, _ := svc.Enqueue(ctx, models.EntityCustomer, "c3", models.OperationCreate, nil)

	_ = svc.MarkFailed(ctx, due.ID, "503", true, clock.t.Add(time.Minute))
	_ = svc.MarkFailed(ctx, later.ID, "503", true, clock.t.Add(time.Hour))
	_ = svc.MarkFailed(ctx, terminal.ID, "422", false, clock.t)

	clock.t = clock.t.Add(2 * time.Minute)
	n, err := svc.RequeueDue(ctx, 10)
	if err != nil {
		t.Fatalf("RequeueDue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 requeued entry, got %d", n)
	}

	for id, want := range map[int64]models.SyncStatus{
		due.ID:      models.StatusPending,
		later.ID:    models.StatusFailed,
		terminal.ID: models.StatusFailed,
	} {
		e, _ := svc.Get(ctx, id)
		if e.Status != want {
			t.Errorf("entry %d: expected %s, got %s", id, want, e.Status)
		}
	}

	// attempts budget exhausted
	n, _ = svc.RequeueDue(ctx, 1)
	if n != 0 {
		t.Fatalf("expected no requeue once max attempts is reached, got %d", n)
	}
}

func TestEnqueueTxRollsBackWithBusinessWrite(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	failure := errors.New("stock write failed")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := svc.EnqueueTx(ctx, tx, models.EntityProduct, "p1", models.OperationUpdate, models.Record{"id": "p1"}); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected business failure, got %v", err)
	}

	entries, err := svc.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("queue entry survived rollback: %+v", entries)
	}
}

func TestHasUnsyncedBefore(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	create, _ := svc.Enqueue(ctx, models.EntityCustomer, "c1", models.OperationCreate, nil)
	update, _ := svc.Enqueue(ctx, models.EntityCustomer, "c1", models.OperationUpdate, nil)

	blocked, err := svc.HasUnsyncedBefore(ctx, models.EntityCustomer, "c1", update.ID)
	if err != nil {
		t.Fatalf("HasUnsyncedBefore: %v", err)
	}
	if !blocked {
		t.Fatal("update must wait for the earlier create")
	}

	_ = svc.MarkSynced(ctx, create.ID)
	blocked, _ = svc.HasUnsyncedBefore(ctx, models.EntityCustomer, "c1", update.ID)
	if blocked {
		t.Fatal("update must be free once the create is synced")
	}
}

func TestStats(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	a, _ := svc.Enqueue(ctx, models.EntityCustomer, "c1", models.OperationCreate, nil)
	b, _ := svc.Enqueue(ctx, models.EntityCustomer, "c2", models.OperationCreate, nil)
	c, _ := svc.Enqueue(ctx, models.EntityCustomer, "c3", models.OperationCreate, nil)
	_, _ = svc.Enqueue(ctx, models.EntityCustomer, "c4", models.OperationCreate, nil)

	_ = svc.MarkSynced(ctx, a.ID)
	_ = svc.MarkFailed(ctx, b.ID, "503", true, clock.t)
	_ = svc.MarkFailed(ctx, c.ID, "422", false, clock.t)

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Pending: 1, Synced: 1, Failed: 2, FailedTerminal: 1}
	if *stats != want {
		t.Fatalf("got %+v, want %+v", *stats, want)
	}
}

func TestCheckIntegrity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Verify(ctx); err != nil {
		t.Fatalf("empty queue must verify, got %v", err)
	}

	_, _ = svc.Enqueue(ctx, models.EntityCustomer, "c1", models.OperationCreate, nil)
	_, _ = svc.Enqueue(ctx, models.EntityCustomer, "c1", models.OperationCreate, nil)
	_, _ = svc.Enqueue(ctx, models.EntityProduct, "p1", models.OperationDelete, nil)
	_, _ = svc.Enqueue(ctx, models.EntityProduct, "p1", models.OperationUpdate, nil)

	issues, err := svc.CheckIntegrity(ctx)
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %+v", issues)
	}
	if issues[0].EntityID != "c1" || len(issues[0].EntryIDs) != 2 {
		t.Fatalf("unexpected duplicate-create issue %+v", issues[0])
	}
	if issues[1].EntityID != "p1" || len(issues[1].EntryIDs) != 1 {
		t.Fatalf("unexpected after-delete issue %+v", issues[1])
	}

	if err := svc.Verify(ctx); !syncerr.Is(err, syncerr.KindIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}

	// nothing was corrected
	entries, _ := svc.List(ctx, Filter{})
	if len(entries) != 4 {
		t.Fatalf("integrity check must not modify the queue, got %d entries", len(entries))
	}
}

func TestListUnsyncedSkipsSyncedEntries(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	a, _ := svc.Enqueue(ctx, models.EntityCustomer, "c1", models.OperationCreate, nil)
	b, _ := svc.Enqueue(ctx, models.EntityCustomer, "c2", models.OperationCreate, nil)
	c, _ := svc.Enqueue(ctx, models.EntityCustomer, "c3", models.OperationCreate, nil)
	if err := svc.MarkFailed(ctx, a.ID, "boom", true, clock.t); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := svc.MarkSynced(ctx, b.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	entries, err := svc.ListUnsynced(ctx)
	if err != nil {
		t.Fatalf("ListUnsynced: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != a.ID || entries[1].ID != c.ID {
		t.Fatalf("unexpected unsynced entries: %+v", entries)
	}
}

func TestListPendingAfterPagesInDrainOrder(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	var ids []int64
	for i, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		// c2 and c3 share a timestamp, so the id breaks the tie
		if i != 2 {
			clock.t = clock.t.Add(time.Second)
		}
		e, err := svc.Enqueue(ctx, models.EntityCustomer, id, models.OperationCreate, nil)
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ids = append(ids, e.ID)
	}
	if err := svc.MarkSynced(ctx, ids[3]); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	var (
		got   []int64
		after *Entry
	)
	for {
		page, err := svc.ListPendingAfter(ctx, after, 2)
		if err != nil {
			t.Fatalf("ListPendingAfter: %v", err)
		}
		for _, e := range page {
			got = append(got, e.ID)
		}
		if len(page) < 2 {
			break
		}
		after = &page[len(page)-1]
	}

	want := []int64{ids[0], ids[1], ids[2], ids[4]}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
