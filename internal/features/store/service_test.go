package store

import (
	"context"
	"errors"
	"math"
	"testing"

	"pos-sync/internal/common/models"
	"pos-sync/internal/database"
	"pos-sync/internal/database/dbtest"
	"pos-sync/internal/features/queue"
	"pos-sync/internal/syncerr"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*StoreServiceImpl, queue.QueueService) {
	t.Helper()
	db := dbtest.Open(t)
	q := queue.NewQueueService(queue.NewQueueRepository(db), zap.NewNop())
	svc := NewStoreService(db, NewStoreRepository(), q, zap.NewNop()).(*StoreServiceImpl)
	return svc, q
}

func listAll(t *testing.T, q queue.QueueService) []queue.Entry {
	t.Helper()
	entries, err := q.List(context.Background(), queue.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return entries
}

func TestSaveCustomerEnqueuesCreateThenUpdate(t *testing.T) {
	svc, q := newTestStore(t)
	ctx := context.Background()

	c := &Customer{Name: "Ana"}
	if err := svc.SaveCustomer(ctx, c); err != nil {
		t.Fatalf("SaveCustomer: %v", err)
	}
	c.Phone = "555-0101"
	if err := svc.SaveCustomer(ctx, c); err != nil {
		t.Fatalf("SaveCustomer: %v", err)
	}

	entries := listAll(t, q)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Operation != models.OperationCreate || entries[1].Operation != models.OperationUpdate {
		t.Fatalf("unexpected operations %s, %s", entries[0].Operation, entries[1].Operation)
	}
	if entries[1].EntityID != c.ID {
		t.Fatalf("entry references %s, want %s", entries[1].EntityID, c.ID)
	}

	rec, _ := entries[1].Record()
	if rec.String("phone") != "555-0101" {
		t.Fatalf("payload does not hold the updated row: %v", rec)
	}
}

func TestRecordSaleNormalizesPaymentMethod(t *testing.T) {
	svc, q := newTestStore(t)
	ctx := context.Background()

	sale := &Sale{
		PaymentMethod: "Efectivo",
		Items: []SaleItem{
			{ProductID: "beer", Quantity: 2, UnitPrice: 3.5},
			{ProductID: "chips", Quantity: 1, UnitPrice: 2},
		},
	}
	if err := svc.RecordSale(ctx, sale); err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if sale.PaymentMethod != PaymentCash || sale.Total != 9 {
		t.Fatalf("unexpected sale %+v", sale)
	}

	stored, err := svc.Get(ctx, models.EntitySale, sale.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.String("payment_method") != PaymentCash {
		t.Fatalf("stored method %q", stored.String("payment_method"))
	}

	// sale + 2 items
	if n := len(listAll(t, q)); n != 3 {
		t.Fatalf("expected 3 queue entries, got %d", n)
	}
}

func TestRecordSaleUnknownPaymentWritesNothing(t *testing.T) {
	svc, q := newTestStore(t)
	ctx := context.Background()

	err := svc.RecordSale(ctx, &Sale{
		PaymentMethod: "bitcoin",
		Items:         []SaleItem{{ProductID: "beer", Quantity: 1, UnitPrice: 3}},
	})
	if !syncerr.Is(err, syncerr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap[models.EntitySale]) != 0 || len(snap[models.EntitySaleItem]) != 0 {
		t.Fatal("rejected sale must not be stored")
	}
	if n := len(listAll(t, q)); n != 0 {
		t.Fatalf("rejected sale must not be queued, got %d entries", n)
	}
}

func TestCreditSaleOpensDebt(t *testing.T) {
	svc, q := newTestStore(t)
	ctx := context.Background()

	sale := &Sale{
		CustomerID:    "c1",
		PaymentMethod: "fiado",
		Items:         []SaleItem{{ProductID: "rum", Quantity: 1, UnitPrice: 40}},
	}
	if err := svc.RecordSale(ctx, sale); err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	snap, _ := svc.Snapshot(ctx)
	debts := snap[models.EntityDebt]
	if len(debts) != 1 {
		t.Fatalf("expected one debt, got %d", len(debts))
	}
	if debts[0].String("sale_id") != sale.ID {
		t.Fatalf("debt not linked to sale: %v", debts[0])
	}

	entries := listAll(t, q)
	if len(entries) != 3 || entries[2].EntityType != models.EntityDebt {
		t.Fatalf("expected sale, item, debt entries, got %+v", entries)
	}

	if err := svc.RecordSale(ctx, &Sale{PaymentMethod: "credit", Items: sale.Items}); !syncerr.Is(err, syncerr.KindValidation) {
		t.Fatalf("credit sale without customer must be rejected, got %v", err)
	}
}

func TestRegisterDebtPayment(t *testing.T) {
	svc, _ := newTestStore(t)
	ctx := context.Background()

	d := &Debt{CustomerID: "c1", Amount: 100}
	if err := svc.SaveDebt(ctx, d); err != nil {
		t.Fatalf("SaveDebt: %v", err)
	}

	got, err := svc.RegisterDebtPayment(ctx, d.ID, 40)
	if err != nil {
		t.Fatalf("RegisterDebtPayment: %v", err)
	}
	if got.Paid != 40 || got.Status != DebtPartial {
		t.Fatalf("unexpected debt after partial payment %+v", got)
	}

	if _, err := svc.RegisterDebtPayment(ctx, d.ID, 70); !syncerr.Is(err, syncerr.KindValidation) {
		t.Fatalf("overpayment must be rejected, got %v", err)
	}

	got, err = svc.RegisterDebtPayment(ctx, d.ID, 60)
	if err != nil {
		t.Fatalf("RegisterDebtPayment: %v", err)
	}
	if got.Status != DebtPaid {
		t.Fatalf("expected paid debt, got %+v", got)
	}

	if _, err := svc.RegisterDebtPayment(ctx, "missing", 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSavePurchaseItemComputesTotal(t *testing.T) {
	svc, _ := newTestStore(t)

	item := &PurchaseItem{ProductID: "beer", QtyUnits: 10, UnitsPerBox: 5, UnitCost: 100}
	if err := svc.SavePurchaseItem(context.Background(), item); err != nil {
		t.Fatalf("SavePurchaseItem: %v", err)
	}
	if math.Abs(item.Total-200) > 1e-9 {
		t.Fatalf("expected total 200, got %v", item.Total)
	}
}

func TestDeleteSaleDeletesItems(t *testing.T) {
	svc, q := newTestStore(t)
	ctx := context.Background()

	sale := &Sale{
		PaymentMethod: "card",
		Items:         []SaleItem{{ProductID: "beer", Quantity: 1, UnitPrice: 3}},
	}
	if err := svc.RecordSale(ctx, sale); err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if err := svc.Delete(ctx, models.EntitySale, sale.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	entries := listAll(t, q)
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[2].EntityType != models.EntitySaleItem || entries[2].Operation != models.OperationDelete {
		t.Fatalf("item delete must come first, got %+v", entries[2])
	}
	if entries[3].EntityType != models.EntitySale || entries[3].Operation != models.OperationDelete {
		t.Fatalf("expected sale delete, got %+v", entries[3])
	}

	if err := svc.Delete(ctx, models.EntitySale, sale.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

// failingQueue fails the nth EnqueueTx call.
type failingQueue struct {
	queue.QueueService
	failOn int
	calls  int
}

func (f *failingQueue) EnqueueTx(ctx context.Context, q database.Querier, entityType models.EntityType, entityID string, op models.Operation, payload any) (*queue.Entry, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, errors.New("disk full")
	}
	return f.QueueService.EnqueueTx(ctx, q, entityType, entityID, op, payload)
}

func TestRecordSaleIsAtomic(t *testing.T) {
	db := dbtest.Open(t)
	inner := queue.NewQueueService(queue.NewQueueRepository(db), zap.NewNop())
	svc := NewStoreService(db, NewStoreRepository(), &failingQueue{QueueService: inner, failOn: 2}, zap.NewNop())
	ctx := context.Background()

	err := svc.RecordSale(ctx, &Sale{
		PaymentMethod: "cash",
		Items:         []SaleItem{{ProductID: "beer", Quantity: 1, UnitPrice: 3}},
	})
	if err == nil {
		t.Fatal("expected enqueue failure")
	}

	snap, _ := svc.Snapshot(ctx)
	if len(snap[models.EntitySale]) != 0 || len(snap[models.EntitySaleItem]) != 0 {
		t.Fatal("business rows survived a failed enqueue")
	}
	entries, _ := inner.List(ctx, queue.Filter{})
	if len(entries) != 0 {
		t.Fatalf("queue entries survived rollback: %d", len(entries))
	}
}
