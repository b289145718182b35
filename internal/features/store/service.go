package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/database"
	"pos-sync/internal/features/queue"
	"pos-sync/internal/syncerr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoreService writes business records to the local store. Every write
// enqueues one sync entry per touched record in the same transaction.
type StoreService interface {
	SaveCustomer(ctx context.Context, c *Customer) error
	SaveProduct(ctx context.Context, p *Product) error
	RecordSale(ctx context.Context, sale *Sale) error
	SaveDebt(ctx context.Context, d *Debt) error
	RegisterDebtPayment(ctx context.Context, debtID string, amount float64) (*Debt, error)
	SavePurchaseItem(ctx context.Context, item *PurchaseItem) error
	Delete(ctx context.Context, entityType models.EntityType, id string) error
	Get(ctx context.Context, entityType models.EntityType, id string) (models.Record, error)
	Snapshot(ctx context.Context) (models.Snapshot, error)
}

type StoreServiceImpl struct {
	DB     *database.LocalDB
	Repo   StoreRepository
	Queue  queue.QueueService
	Logger *zap.Logger
	now    func() time.Time
}

func NewStoreService(db *database.LocalDB, repo StoreRepository, queueService queue.QueueService, logger *zap.Logger) StoreService {
	return &StoreServiceImpl{
		DB:     db,
		Repo:   repo,
		Queue:  queueService,
		Logger: logger,
		now:    time.Now,
	}
}

func (s *StoreServiceImpl) SaveCustomer(ctx context.Context, c *Customer) error {
	if c.Name == "" {
		return syncerr.Invalid("customer name is required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return s.DB.WithTx(ctx, func(tx *sql.Tx) error {
		return s.save(ctx, tx, models.EntityCustomer, c.record())
	})
}

func (s *StoreServiceImpl) SaveProduct(ctx context.Context, p *Product) error {
	if p.Name == "" {
		return syncerr.Invalid("product name is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.UnitsPerBox <= 0 {
		p.UnitsPerBox = 1
	}
	return s.DB.WithTx(ctx, func(tx *sql.Tx) error {
		return s.save(ctx, tx, models.EntityProduct, p.record())
	})
}

// RecordSale stores a sale with its items. Sales paid on credit also open a
// debt for the customer.
func (s *StoreServiceImpl) RecordSale(ctx context.Context, sale *Sale) error {
	method, err := NormalizePaymentMethod(sale.PaymentMethod)
	if err != nil {
		return err
	}
	if len(sale.Items) == 0 {
		return syncerr.Invalid("sale has no items")
	}
	if method == PaymentCredit && sale.CustomerID == "" {
		return syncerr.Invalid("credit sales need a customer")
	}

	sale.PaymentMethod = method
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.Status == "" {
		sale.Status = SaleCompleted
	}

	var total float64
	for i := range sale.Items {
		item := &sale.Items[i]
		if item.ProductID == "" || item.Quantity <= 0 {
			return syncerr.Invalid(fmt.Sprintf("sale item %d needs a product and a positive quantity", i))
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.SaleID = sale.ID
		if item.Subtotal == 0 {
			item.Subtotal = item.Quantity * item.UnitPrice
		}
		total += item.Subtotal
	}
	if sale.Total == 0 {
		sale.Total = total
	}

	return s.DB.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.save(ctx, tx, models.EntitySale, sale.record()); err != nil {
			return err
		}
		for i := range sale.Items {
			if err := s.save(ctx, tx, models.EntitySaleItem, sale.Items[i].record()); err != nil {
				return err
			}
		}
		if method != PaymentCredit {
			return nil
		}
		debt := &Debt{
			ID:         uuid.NewString(),
			CustomerID: sale.CustomerID,
			SaleID:     sale.ID,
			Amount:     sale.Total,
			Status:     DebtOpen,
		}
		return s.save(ctx, tx, models.EntityDebt, debt.record())
	})
}

func (s *StoreServiceImpl) SaveDebt(ctx context.Context, d *Debt) error {
	if d.CustomerID == "" {
		return syncerr.Invalid("debt needs a customer")
	}
	if d.Amount <= 0 {
		return syncerr.Invalid("debt amount must be positive")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = debtStatus(d.Amount, d.Paid)
	return s.DB.WithTx(ctx, func(tx *sql.Tx) error {
		return s.save(ctx, tx, models.EntityDebt, d.record())
	})
}

func (s *StoreServiceImpl) RegisterDebtPayment(ctx context.Context, debtID string, amount float64) (*Debt, error) {
	if amount <= 0 {
		return nil, syncerr.Invalid("payment amount must be positive")
	}

	var debt *Debt
	err := s.DB.WithTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.Repo.Get(ctx, tx, "debts", debtID)
		if err != nil {
			return err
		}
		debt = debtFromRecord(rec)

		if debt.Paid+amount > debt.Amount+0.005 {
			return syncerr.Invalid(fmt.Sprintf("payment of %.2f exceeds outstanding balance %.2f", amount, debt.Amount-debt.Paid))
		}
		debt.Paid += amount
		debt.Status = debtStatus(debt.Amount, debt.Paid)
		return s.save(ctx, tx, models.EntityDebt, debt.record())
	})
	if err != nil {
		return nil, err
	}
	return debt, nil
}

func (s *StoreServiceImpl) SavePurchaseItem(ctx context.Context, item *PurchaseItem) error {
	if item.ProductID == "" || item.QtyUnits <= 0 {
		return syncerr.Invalid("purchase item needs a product and a positive quantity")
	}
	if item.UnitCost < 0 {
		return syncerr.Invalid("purchase item cost cannot be negative")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.PurchaseID == "" {
		item.PurchaseID = uuid.NewString()
	}
	if item.UnitsPerBox <= 0 {
		item.UnitsPerBox = 1
	}
	item.Total = PurchaseTotal(item.QtyUnits, item.UnitsPerBox, item.UnitCost)

	return s.DB.WithTx(ctx, func(tx *sql.Tx) error {
		return s.save(ctx, tx, models.EntityPurchaseItem, item.record())
	})
}

// Delete removes a record and enqueues its deletion. Deleting a sale also
// deletes its items.
func (s *StoreServiceImpl) Delete(ctx context.Context, entityType models.EntityType, id string) error {
	def, err := models.Lookup(entityType)
	if err != nil {
		return syncerr.Invalid(err.Error())
	}
	if _, err := tableColumns(def.Table); err != nil {
		return syncerr.Invalid(fmt.Sprintf("%s is not stored locally", entityType))
	}

	return s.DB.WithTx(ctx, func(tx *sql.Tx) error {
		if entityType == models.EntitySale {
			items, err := s.Repo.ListBy(ctx, tx, "sale_items", "sale_id", id)
			if err != nil {
				return err
			}
			for _, item := range items {
				if err := s.remove(ctx, tx, models.EntitySaleItem, "sale_items", item); err != nil {
					return err
				}
			}
		}

		rec, err := s.Repo.Get(ctx, tx, def.Table, id)
		if err != nil {
			return err
		}
		return s.remove(ctx, tx, entityType, def.Table, rec)
	})
}

func (s *StoreServiceImpl) Get(ctx context.Context, entityType models.EntityType, id string) (models.Record, error) {
	def, err := models.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	return s.Repo.Get(ctx, s.DB, def.Table, id)
}

// Snapshot reads every local business table. It never writes.
func (s *StoreServiceImpl) Snapshot(ctx context.Context) (models.Snapshot, error) {
	snap := models.Snapshot{}
	for _, entityType := range models.LocalEntities {
		def, _ := models.Lookup(entityType)
		records, err := s.Repo.List(ctx, s.DB, def.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", def.Table, err)
		}
		snap[entityType] = records
	}
	return snap, nil
}

func (s *StoreServiceImpl) save(ctx context.Context, tx *sql.Tx, entityType models.EntityType, rec models.Record) error {
	def, err := models.Lookup(entityType)
	if err != nil {
		return err
	}
	id := rec.ID()

	exists, err := s.Repo.Exists(ctx, tx, def.Table, id)
	if err != nil {
		return err
	}
	op := models.OperationCreate
	if exists {
		op = models.OperationUpdate
	}

	if err := s.Repo.Upsert(ctx, tx, def.Table, rec, s.now()); err != nil {
		return err
	}

	// the payload is the row as stored, timestamps included
	stored, err := s.Repo.Get(ctx, tx, def.Table, id)
	if err != nil {
		return err
	}
	if _, err := s.Queue.EnqueueTx(ctx, tx, entityType, id, op, stored); err != nil {
		return err
	}
	return nil
}

func (s *StoreServiceImpl) remove(ctx context.Context, tx *sql.Tx, entityType models.EntityType, table string, rec models.Record) error {
	id := rec.ID()
	if err := s.Repo.Delete(ctx, tx, table, id); err != nil {
		return err
	}
	if _, err := s.Queue.EnqueueTx(ctx, tx, entityType, id, models.OperationDelete, rec); err != nil {
		return err
	}
	s.Logger.Info("Deleted local record",
		zap.String("entity_type", string(entityType)),
		zap.String("entity_id", id),
	)
	return nil
}

func debtFromRecord(rec models.Record) *Debt {
	amount, _ := rec.Float("amount")
	paid, _ := rec.Float("paid")
	return &Debt{
		ID:         rec.ID(),
		CustomerID: rec.String("customer_id"),
		SaleID:     rec.String("sale_id"),
		Amount:     amount,
		Paid:       paid,
		Status:     rec.String("status"),
	}
}

func debtStatus(amount, paid float64) string {
	switch {
	case paid <= 0:
		return DebtOpen
	case math.Abs(amount-paid) < 0.005 || paid > amount:
		return DebtPaid
	}
	return DebtPartial
}
