package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/database"
)

var ErrNotFound = errors.New("sync queue entry not found")

type QueueRepository interface {
	Insert(ctx context.Context, q database.Querier, entry *Entry) error
	Get(ctx context.Context, id int64) (*Entry, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
	ListPending(ctx context.Context, entityType models.EntityType, limit int) ([]Entry, error)
	MarkSynced(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, lastError string, retryable bool, nextRetryAt, at time.Time) (bool, error)
	Requeue(ctx context.Context, id int64, at time.Time) (bool, error)
	RequeueDue(ctx context.Context, now time.Time, maxAttempts int) (int, error)
	HasUnsyncedBefore(ctx context.Context, entityType models.EntityType, entityID string, beforeID int64) (bool, error)
	Stats(ctx context.Context) (*Stats, error)
	IntegrityIssues(ctx context.Context) ([]IntegrityIssue, error)
}

type QueueRepositoryImpl struct {
	db *database.LocalDB
}

func NewQueueRepository(db *database.LocalDB) QueueRepository {
	return &QueueRepositoryImpl{db: db}
}

const entryColumns = `id, entity_type, entity_id, operation, payload, status, last_error,
	attempts, retryable, next_retry_at, created_at, updated_at, synced_at`

func (r *QueueRepositoryImpl) Insert(ctx context.Context, q database.Querier, entry *Entry) error {
	if q == nil {
		q = r.db
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO sync_queue (entity_type, entity_id, operation, payload, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.EntityType, entry.EntityID, entry.Operation, string(entry.Payload), entry.Status,
		entry.CreatedAt.UnixMilli(), entry.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync queue entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

func (r *QueueRepositoryImpl) Get(ctx context.Context, id int64) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM sync_queue WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

func (r *QueueRepositoryImpl) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.After != nil {
		after := filter.After.CreatedAt.UnixMilli()
		where = append(where, "(created_at > ? OR (created_at = ? AND id > ?))")
		args = append(args, after, after, filter.After.ID)
	}

	query := `SELECT ` + entryColumns + ` FROM sync_queue`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return r.query(ctx, query, args...)
}

func (r *QueueRepositoryImpl) ListPending(ctx context.Context, entityType models.EntityType, limit int) ([]Entry, error) {
	return r.List(ctx, Filter{Status: models.StatusPending, EntityType: entityType, Limit: limit})
}

func (r *QueueRepositoryImpl) MarkSynced(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.transition(ctx, `
		UPDATE sync_queue
		SET status = 'synced', synced_at = ?, updated_at = ?, last_error = NULL, retryable = 0
		WHERE id = ? AND status = 'pending'`,
		at.UnixMilli(), at.UnixMilli(), id)
}

func (r *QueueRepositoryImpl) MarkFailed(ctx context.Context, id int64, lastError string, retryable bool, nextRetryAt, at time.Time) (bool, error) {
	return r.transition(ctx, `
		UPDATE sync_queue
		SET status = 'failed', last_error = ?, attempts = attempts + 1, retryable = ?, next_retry_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		lastError, retryable, nextRetryAt.UnixMilli(), at.UnixMilli(), id)
}

func (r *QueueRepositoryImpl) Requeue(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.transition(ctx, `
		UPDATE sync_queue
		SET status = 'pending', next_retry_at = 0, updated_at = ?
		WHERE id = ? AND status = 'failed'`,
		at.UnixMilli(), id)
}

func (r *QueueRepositoryImpl) RequeueDue(ctx context.Context, now time.Time, maxAttempts int) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET status = 'pending', updated_at = ?
		WHERE status = 'failed' AND retryable = 1 AND next_retry_at <= ? AND attempts < ?`,
		now.UnixMilli(), now.UnixMilli(), maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue due entries: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *QueueRepositoryImpl) HasUnsyncedBefore(ctx context.Context, entityType models.EntityType, entityID string, beforeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sync_queue
			WHERE entity_type = ? AND entity_id = ? AND id < ? AND status != 'synced'
		)`, entityType, entityID, beforeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unsynced entries: %w", err)
	}
	return exists, nil
}

func (r *QueueRepositoryImpl) Stats(ctx context.Context) (*Stats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, retryable, COUNT(*) FROM sync_queue GROUP BY status, retryable`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var (
			status    string
			retryable bool
			count     int
		)
		if err := rows.Scan(&status, &retryable, &count); err != nil {
			return nil, err
		}
		switch models.SyncStatus(status) {
		case models.StatusPending:
			stats.Pending += count
		case models.StatusSynced:
			stats.Synced += count
		case models.StatusFailed:
			stats.Failed += count
			if !retryable {
				stats.FailedTerminal += count
			}
		}
	}
	return stats, rows.Err()
}

func (r *QueueRepositoryImpl) IntegrityIssues(ctx context.Context) ([]IntegrityIssue, error) {
	var issues []IntegrityIssue

	dupCreates, err := r.groupIDs(ctx, `
		SELECT entity_type, entity_id, id FROM sync_queue
		WHERE status != 'synced' AND operation = 'create'
		  AND (entity_type, entity_id) IN (
			SELECT entity_type, entity_id FROM sync_queue
			WHERE status != 'synced' AND operation = 'create'
			GROUP BY entity_type, entity_id HAVING COUNT(*) > 1)
		ORDER BY entity_type, entity_id, id`)
	if err != nil {
		return nil, err
	}
	for _, issue := range dupCreates {
		issue.Problem = "more than one unsynced create for the same record"
		issues = append(issues, issue)
	}

	afterDelete, err := r.groupIDs(ctx, `
		SELECT q.entity_type, q.entity_id, q.id FROM sync_queue q
		WHERE q.status != 'synced' AND q.operation != 'create'
		  AND EXISTS (
			SELECT 1 FROM sync_queue d
			WHERE d.entity_type = q.entity_type AND d.entity_id = q.entity_id
			  AND d.operation = 'delete' AND d.id < q.id)
		ORDER BY q.entity_type, q.entity_id, q.id`)
	if err != nil {
		return nil, err
	}
	for _, issue := range afterDelete {
		issue.Problem = "mutation queued after the record was deleted"
		issues = append(issues, issue)
	}

	return issues, nil
}

// groupIDs runs a (entity_type, entity_id, id) query and groups ids per record.
func (r *QueueRepositoryImpl) groupIDs(ctx context.Context, query string) ([]IntegrityIssue, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to run integrity query: %w", err)
	}
	defer rows.Close()

	var issues []IntegrityIssue
	for rows.Next() {
		var (
			entityType string
			entityID   string
			id         int64
		)
		if err := rows.Scan(&entityType, &entityID, &id); err != nil {
			return nil, err
		}
		n := len(issues)
		if n > 0 && string(issues[n-1].EntityType) == entityType && issues[n-1].EntityID == entityID {
			issues[n-1].EntryIDs = append(issues[n-1].EntryIDs, id)
			continue
		}
		issues = append(issues, IntegrityIssue{
			EntityType: models.EntityType(entityType),
			EntityID:   entityID,
			EntryIDs:   []int64{id},
		})
	}
	return issues, rows.Err()
}

func (r *QueueRepositoryImpl) transition(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update sync queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *QueueRepositoryImpl) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync queue: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e           Entry
		payload     string
		lastError   sql.NullString
		nextRetryAt int64
		createdAt   int64
		updatedAt   int64
		syncedAt    sql.NullInt64
	)
	err := s.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Operation, &payload, &e.Status, &lastError,
		&e.Attempts, &e.Retryable, &nextRetryAt, &createdAt, &updatedAt, &syncedAt)
	if err != nil {
		return nil, err
	}

	e.Payload = []byte(payload)
	e.LastError = lastError.String
	e.CreatedAt = time.UnixMilli(createdAt)
	e.UpdatedAt = time.UnixMilli(updatedAt)
	if nextRetryAt > 0 {
		t := time.UnixMilli(nextRetryAt)
		e.NextRetryAt = &t
	}
	if syncedAt.Valid {
		t := time.UnixMilli(syncedAt.Int64)
		e.SyncedAt = &t
	}
	return &e, nil
}
