package sync

import (
	"context"
	"fmt"
	"time"

	"pos-sync/internal/database"
)

const drainLockName = "drain"

// LeaseLock is a named lock stored in the sync_lock table, so it holds across
// every process opening the same database file. A lease that is not released
// expires after its TTL.
type LeaseLock struct {
	db   *database.LocalDB
	name string
	ttl  time.Duration
	now  func() time.Time
}

func NewLeaseLock(db *database.LocalDB, name string, ttl time.Duration) *LeaseLock {
	return &LeaseLock{db: db, name: name, ttl: ttl, now: time.Now}
}

// Acquire takes the lease for holder, or renews it if holder already owns it.
func (l *LeaseLock) Acquire(ctx context.Context, holder string) (bool, error) {
	now := l.now()
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO sync_lock (name, holder, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE sync_lock.expires_at < ? OR sync_lock.holder = excluded.holder`,
		l.name, holder, now.Add(l.ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to acquire %s lock: %w", l.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *LeaseLock) Release(ctx context.Context, holder string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM sync_lock WHERE name = ? AND holder = ?`, l.name, holder); err != nil {
		return fmt.Errorf("failed to release %s lock: %w", l.name, err)
	}
	return nil
}
