package sync

import (
	"errors"
	"math"
	"time"

	"pos-sync/internal/config"
)

// ErrDrainLocked is returned when another process holds the drain lease on
// this database file.
var ErrDrainLocked = errors.New("another process is draining this database")

// ErrLeaseLost ends a drain whose lease was taken over by another process.
var ErrLeaseLost = errors.New("drain lease lost to another process")

// DrainResult summarizes one pass over the queue.
type DrainResult struct {
	Attempted  int       `json:"attempted"`
	Synced     int       `json:"synced"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"` // left pending behind an unsynced predecessor
	Requeued   int       `json:"requeued"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
	Err        error     `json:"-"`
}

type Options struct {
	BatchSize   int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	LockTTL     time.Duration
	Timeout     time.Duration // bound on one drain, independent of the caller
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:   cfg.DrainBatchSize,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		MaxAttempts: cfg.MaxAttempts,
		LockTTL:     cfg.LockTTL,
		Timeout:     cfg.DrainTimeout,
	}
}

// Backoff returns the wait before the next automatic retry of an entry that
// has already failed attempts times: base * 2^attempts, capped at maxDelay
// (at the largest duration when maxDelay is unset).
func Backoff(base, maxDelay time.Duration, attempts int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 30 {
		attempts = 30
	}
	d := base << attempts
	if d>>attempts != base {
		d = math.MaxInt64
	}
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}
