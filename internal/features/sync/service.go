package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/config"
	"pos-sync/internal/database"
	"pos-sync/internal/features/queue"
	"pos-sync/internal/features/remote"
	"pos-sync/internal/syncerr"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Remote is the part of the remote API the drain replays entries against.
type Remote interface {
	Import(ctx context.Context, table string, records []models.Record) (*remote.ImportResult, error)
	Delete(ctx context.Context, resource, id string) error
}

type SyncService interface {
	// Push replays one entry and records the outcome on it. The returned
	// error is the push failure, already recorded unless it is an AUTH_ERROR.
	Push(ctx context.Context, entry *queue.Entry) error
	// Drain processes up to batchSize pending entries. Only one drain runs per
	// database file at a time.
	Drain(ctx context.Context, batchSize int) (*DrainResult, error)
	LastResult() *DrainResult
}

type SyncServiceImpl struct {
	Queue  queue.QueueService
	Remote Remote
	Lock   *LeaseLock
	Hub    *Hub
	Logger *zap.Logger

	opts  Options
	group singleflight.Group
	now   func() time.Time

	mu   stdsync.Mutex
	last *DrainResult
}

func NewSyncService(cfg *config.Config, db *database.LocalDB, queueService queue.QueueService, client *remote.Client, hub *Hub, logger *zap.Logger) SyncService {
	opts := OptionsFromConfig(cfg)
	return NewSyncServiceWithOptions(opts, NewLeaseLock(db, drainLockName, opts.LockTTL), queueService, client, hub, logger)
}

func NewSyncServiceWithOptions(opts Options, lock *LeaseLock, queueService queue.QueueService, client Remote, hub *Hub, logger *zap.Logger) *SyncServiceImpl {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	return &SyncServiceImpl{
		Queue:  queueService,
		Remote: client,
		Lock:   lock,
		Hub:    hub,
		Logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

func (s *SyncServiceImpl) Push(ctx context.Context, entry *queue.Entry) error {
	def, err := models.Lookup(entry.EntityType)
	if err != nil {
		return s.settle(ctx, entry, syncerr.Invalid(err.Error()))
	}

	rec, err := entry.Record()
	if err != nil {
		return s.settle(ctx, entry, syncerr.Invalid(fmt.Sprintf("corrupt payload: %v", err)))
	}

	switch entry.Operation {
	case models.OperationCreate, models.OperationUpdate:
		if rec.ID() == "" {
			rec["id"] = entry.EntityID
		}
		// the remote upserts by id, so a replay after a crash is harmless
		_, err = s.Remote.Import(ctx, def.Table, []models.Record{rec})
	case models.OperationDelete:
		err = s.Remote.Delete(ctx, def.Resource, entry.EntityID)
		if remote.IsNotFound(err) {
			err = nil
		}
	default:
		err = syncerr.Invalid(fmt.Sprintf("unknown operation %q", entry.Operation))
	}

	return s.settle(ctx, entry, err)
}

// settle records the outcome of a push on its entry.
func (s *SyncServiceImpl) settle(ctx context.Context, entry *queue.Entry, pushErr error) error {
	log := s.Logger.With(
		zap.Int64("queue_id", entry.ID),
		zap.String("entity_type", string(entry.EntityType)),
		zap.String("entity_id", entry.EntityID),
		zap.String("operation", string(entry.Operation)),
	)

	if pushErr == nil {
		if err := s.Queue.MarkSynced(ctx, entry.ID); err != nil {
			return fmt.Errorf("pushed but could not mark synced: %w", err)
		}
		log.Debug("Entry synced")
		return nil
	}

	if syncerr.Is(pushErr, syncerr.KindAuth) {
		// not the entry's fault; it stays pending
		return pushErr
	}

	retryable := syncerr.Retryable(pushErr)
	next := s.now()
	if retryable {
		next = next.Add(Backoff(s.opts.BaseDelay, s.opts.MaxDelay, entry.Attempts))
	}

	if err := s.Queue.MarkFailed(ctx, entry.ID, lastError(pushErr), retryable, next); err != nil {
		return fmt.Errorf("%v (and could not mark failed: %w)", pushErr, err)
	}

	if retryable {
		log.Warn("Entry failed, will retry", zap.Error(pushErr), zap.Time("next_retry_at", next))
	} else {
		log.Error("Entry rejected by remote", zap.Error(pushErr))
	}
	return pushErr
}

// lastError keeps the remote response body when there is one.
func lastError(err error) string {
	var e *syncerr.Error
	if errors.As(err, &e) && e.Kind == syncerr.KindValidation && e.Body != "" {
		return e.Body
	}
	return err.Error()
}

func (s *SyncServiceImpl) Drain(ctx context.Context, batchSize int) (*DrainResult, error) {
	if batchSize <= 0 {
		batchSize = s.opts.BatchSize
	}
	// One drain serves every concurrent caller and runs on its own deadline.
	// A caller whose context ends stops waiting; the drain carries on.
	ch := s.group.DoChan("drain", func() (interface{}, error) {
		drainCtx := context.WithoutCancel(ctx)
		if s.opts.Timeout > 0 {
			var cancel context.CancelFunc
			drainCtx, cancel = context.WithTimeout(drainCtx, s.opts.Timeout)
			defer cancel()
		}
		return s.drain(drainCtx, batchSize)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DrainResult), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SyncServiceImpl) drain(ctx context.Context, batchSize int) (*DrainResult, error) {
	holder := uuid.NewString()
	acquired, err := s.Lock.Acquire(ctx, holder)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrDrainLocked
	}
	defer func() {
		if err := s.Lock.Release(context.Background(), holder); err != nil {
			s.Logger.Error("Failed to release drain lock", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := s.keepLease(ctx, holder, cancel)
	defer stop()

	result := &DrainResult{StartedAt: s.now()}

	requeued, err := s.Queue.RequeueDue(ctx, s.opts.MaxAttempts)
	if err != nil {
		return nil, err
	}
	result.Requeued = requeued

	// abort ends the pass early when the context is done; other errors fail the drain.
	abort := func(err error) error {
		if ctx.Err() != nil {
			result.Err = context.Cause(ctx)
			return nil
		}
		return err
	}

	// Skipped entries do not count toward batchSize: paging continues until
	// batchSize entries were attempted or no pending entry is left.
	var after *queue.Entry
scan:
	for result.Attempted < batchSize {
		entries, err := s.Queue.ListPendingAfter(ctx, after, batchSize)
		if err != nil {
			if err := abort(err); err != nil {
				return nil, err
			}
			break
		}

		for i := range entries {
			entry := &entries[i]
			after = entry
			if ctx.Err() != nil {
				result.Err = context.Cause(ctx)
				break scan
			}

			ready, err := s.ready(ctx, entry)
			if err != nil {
				if err := abort(err); err != nil {
					return nil, err
				}
				break scan
			}
			if !ready {
				result.Skipped++
				continue
			}

			if err := s.renew(ctx, holder); err != nil {
				if errors.Is(err, ErrLeaseLost) {
					result.Err = err
				} else if err := abort(err); err != nil {
					return nil, err
				}
				break scan
			}

			result.Attempted++
			pushErr := s.Push(ctx, entry)
			switch {
			case pushErr == nil:
				result.Synced++
			case syncerr.Is(pushErr, syncerr.KindAuth):
				result.Err = pushErr
				break scan
			default:
				result.Failed++
			}
			if result.Attempted >= batchSize {
				break scan
			}
		}

		if len(entries) < batchSize {
			break
		}
	}

	result.FinishedAt = s.now()
	if result.Err != nil {
		result.Error = result.Err.Error()
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
	if s.Hub != nil {
		s.Hub.Publish(*result)
	}

	s.Logger.Info("Drain finished",
		zap.Int("attempted", result.Attempted),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("requeued", result.Requeued),
		zap.Error(result.Err),
	)
	return result, nil
}

// renew extends the lease before each push. Losing it to another process
// ends the drain.
func (s *SyncServiceImpl) renew(ctx context.Context, holder string) error {
	ok, err := s.Lock.Acquire(ctx, holder)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLeaseLost
	}
	return nil
}

// keepLease renews the lease every third of its TTL while a push is in
// flight. A failed renewal cancels ctx with the reason.
func (s *SyncServiceImpl) keepLease(ctx context.Context, holder string, cancel context.CancelCauseFunc) (stop func()) {
	interval := s.Lock.ttl / 3
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg stdsync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.renew(ctx, holder); err != nil {
					s.Logger.Error("Drain lease renewal failed", zap.Error(err))
					cancel(err)
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// ready reports whether entry can be pushed now: no earlier entry for the
// same record, nor for any record it references, is still unsynced.
func (s *SyncServiceImpl) ready(ctx context.Context, entry *queue.Entry) (bool, error) {
	blocked, err := s.Queue.HasUnsyncedBefore(ctx, entry.EntityType, entry.EntityID, entry.ID)
	if err != nil || blocked {
		return false, err
	}

	def, err := models.Lookup(entry.EntityType)
	if err != nil || len(def.Parents) == 0 {
		return true, nil
	}
	rec, err := entry.Record()
	if err != nil {
		return true, nil
	}

	for _, parent := range def.Parents {
		parentID := rec.String(parent.Field)
		if parentID == "" {
			continue
		}
		blocked, err := s.Queue.HasUnsyncedBefore(ctx, parent.Type, parentID, entry.ID)
		if err != nil || blocked {
			return false, err
		}
	}
	return true, nil
}

func (s *SyncServiceImpl) LastResult() *DrainResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
