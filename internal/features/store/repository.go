package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/database"
)

var ErrNotFound = errors.New("record not found")

// columns lists the writable columns of each business table, id first.
// created_at and updated_at are managed by the repository.
var columns = map[string][]string{
	"customers":      {"id", "name", "phone"},
	"products":       {"id", "name", "price", "stock", "units_per_box"},
	"sales":          {"id", "customer_id", "total", "payment_method", "status"},
	"sale_items":     {"id", "sale_id", "product_id", "quantity", "unit_price", "subtotal"},
	"debts":          {"id", "customer_id", "sale_id", "amount", "paid", "status"},
	"purchase_items": {"id", "purchase_id", "product_id", "qty_units", "units_per_box", "unit_cost", "total"},
}

type StoreRepository interface {
	Exists(ctx context.Context, q database.Querier, table, id string) (bool, error)
	Upsert(ctx context.Context, q database.Querier, table string, rec models.Record, at time.Time) error
	Get(ctx context.Context, q database.Querier, table, id string) (models.Record, error)
	Delete(ctx context.Context, q database.Querier, table, id string) error
	ListBy(ctx context.Context, q database.Querier, table, field, value string) ([]models.Record, error)
	List(ctx context.Context, q database.Querier, table string) ([]models.Record, error)
}

type StoreRepositoryImpl struct{}

func NewStoreRepository() StoreRepository {
	return &StoreRepositoryImpl{}
}

func tableColumns(table string) ([]string, error) {
	cols, ok := columns[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return cols, nil
}

func (r *StoreRepositoryImpl) Exists(ctx context.Context, q database.Querier, table, id string) (bool, error) {
	if _, err := tableColumns(table); err != nil {
		return false, err
	}
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}

// Upsert inserts rec or updates the existing row with the same id. created_at
// is only set on insert.
func (r *StoreRepositoryImpl) Upsert(ctx context.Context, q database.Querier, table string, rec models.Record, at time.Time) error {
	cols, err := tableColumns(table)
	if err != nil {
		return err
	}

	placeholders := make([]string, 0, len(cols)+2)
	updates := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+2)
	for _, col := range cols {
		placeholders = append(placeholders, "?")
		args = append(args, rec[col])
		if col != "id" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	placeholders = append(placeholders, "?", "?")
	args = append(args, at.UnixMilli(), at.UnixMilli())
	updates = append(updates, "updated_at = excluded.updated_at")

	query := fmt.Sprintf(`INSERT INTO %s (%s, created_at, updated_at) VALUES (%s)
		ON CONFLICT(id) DO UPDATE SET %s`,
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save %s %v: %w", table, rec["id"], err)
	}
	return nil
}

func (r *StoreRepositoryImpl) Get(ctx context.Context, q database.Querier, table, id string) (models.Record, error) {
	if _, err := tableColumns(table); err != nil {
		return nil, err
	}
	records, err := database.ScanRecords(q.QueryContext(ctx, `SELECT * FROM `+table+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

func (r *StoreRepositoryImpl) Delete(ctx context.Context, q database.Querier, table, id string) error {
	if _, err := tableColumns(table); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", table, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *StoreRepositoryImpl) ListBy(ctx context.Context, q database.Querier, table, field, value string) ([]models.Record, error) {
	cols, err := tableColumns(table)
	if err != nil {
		return nil, err
	}
	known := false
	for _, col := range cols {
		if col == field {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown column %s.%s", table, field)
	}
	return database.ScanRecords(q.QueryContext(ctx, `SELECT * FROM `+table+` WHERE `+field+` = ? ORDER BY created_at, id`, value))
}

func (r *StoreRepositoryImpl) List(ctx context.Context, q database.Querier, table string) ([]models.Record, error) {
	if _, err := tableColumns(table); err != nil {
		return nil, err
	}
	return database.ScanRecords(q.QueryContext(ctx, `SELECT * FROM `+table+` ORDER BY created_at, id`))
}
