package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/database"
	"pos-sync/internal/syncerr"

	"go.uber.org/zap"
)

// ErrInvalidTransition is returned when an entry is not in the state a transition starts from.
var ErrInvalidTransition = errors.New("invalid sync queue transition")

type QueueService interface {
	// Enqueue records a mutation outside of any business transaction.
	Enqueue(ctx context.Context, entityType models.EntityType, entityID string, op models.Operation, payload any) (*Entry, error)
	// EnqueueTx records a mutation in the caller's transaction so that the
	// business write and its queue entry commit or roll back together.
	EnqueueTx(ctx context.Context, q database.Querier, entityType models.EntityType, entityID string, op models.Operation, payload any) (*Entry, error)
	Get(ctx context.Context, id int64) (*Entry, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
	ListPending(ctx context.Context, limit int) ([]Entry, error)
	ListPendingByType(ctx context.Context, entityType models.EntityType, limit int) ([]Entry, error)
	// ListPendingAfter pages through pending entries in drain order, starting
	// after the given entry (from the beginning when after is nil).
	ListPendingAfter(ctx context.Context, after *Entry, limit int) ([]Entry, error)
	// ListUnsynced returns every pending and failed entry, oldest first.
	ListUnsynced(ctx context.Context) ([]Entry, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause string, retryable bool, nextRetryAt time.Time) error
	Requeue(ctx context.Context, id int64) error
	RequeueDue(ctx context.Context, maxAttempts int) (int, error)
	HasUnsyncedBefore(ctx context.Context, entityType models.EntityType, entityID string, beforeID int64) (bool, error)
	Stats(ctx context.Context) (*Stats, error)
	CheckIntegrity(ctx context.Context) ([]IntegrityIssue, error)
	Verify(ctx context.Context) error
}

type QueueServiceImpl struct {
	Repo   QueueRepository
	Logger *zap.Logger
	now    func() time.Time
}

func NewQueueService(repo QueueRepository, logger *zap.Logger) QueueService {
	return &QueueServiceImpl{
		Repo:   repo,
		Logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source. Used by tests driving retry schedules.
func (s *QueueServiceImpl) SetClock(now func() time.Time) {
	s.now = now
}

func (s *QueueServiceImpl) Enqueue(ctx context.Context, entityType models.EntityType, entityID string, op models.Operation, payload any) (*Entry, error) {
	return s.EnqueueTx(ctx, nil, entityType, entityID, op, payload)
}

func (s *QueueServiceImpl) EnqueueTx(ctx context.Context, q database.Querier, entityType models.EntityType, entityID string, op models.Operation, payload any) (*Entry, error) {
	if !op.Valid() {
		return nil, syncerr.Invalid(fmt.Sprintf("unknown operation %q", op))
	}
	if _, err := models.Lookup(entityType); err != nil {
		return nil, syncerr.Invalid(err.Error())
	}
	if entityID == "" {
		return nil, syncerr.Invalid("entity id is required")
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for %s/%s: %w", entityType, entityID, err)
	}

	now := s.now()
	entry := &Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  op,
		Payload:    raw,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Insert(ctx, q, entry); err != nil {
		return nil, err
	}

	s.Logger.Debug("Enqueued mutation",
		zap.String("entity_type", string(entityType)),
		zap.String("entity_id", entityID),
		zap.String("operation", string(op)),
		zap.Int64("queue_id", entry.ID),
	)
	return entry, nil
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	}
	return json.Marshal(payload)
}

func (s *QueueServiceImpl) Get(ctx context.Context, id int64) (*Entry, error) {
	return s.Repo.Get(ctx, id)
}

func (s *QueueServiceImpl) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.Repo.List(ctx, filter)
}

func (s *QueueServiceImpl) ListPending(ctx context.Context, limit int) ([]Entry, error) {
	return s.Repo.ListPending(ctx, "", limit)
}

func (s *QueueServiceImpl) ListPendingByType(ctx context.Context, entityType models.EntityType, limit int) ([]Entry, error) {
	return s.Repo.ListPending(ctx, entityType, limit)
}

func (s *QueueServiceImpl) ListPendingAfter(ctx context.Context, after *Entry, limit int) ([]Entry, error) {
	return s.Repo.List(ctx, Filter{Status: models.StatusPending, After: after, Limit: limit})
}

func (s *QueueServiceImpl) ListUnsynced(ctx context.Context) ([]Entry, error) {
	pending, err := s.Repo.List(ctx, Filter{Status: models.StatusPending})
	if err != nil {
		return nil, err
	}
	failed, err := s.Repo.List(ctx, Filter{Status: models.StatusFailed})
	if err != nil {
		return nil, err
	}
	entries := append(pending, failed...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (s *QueueServiceImpl) MarkSynced(ctx context.Context, id int64) error {
	ok, err := s.Repo.MarkSynced(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionError(ctx, id, models.StatusSynced)
	}
	return nil
}

func (s *QueueServiceImpl) MarkFailed(ctx context.Context, id int64, cause string, retryable bool, nextRetryAt time.Time) error {
	ok, err := s.Repo.MarkFailed(ctx, id, cause, retryable, nextRetryAt, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionError(ctx, id, models.StatusFailed)
	}
	return nil
}

func (s *QueueServiceImpl) Requeue(ctx context.Context, id int64) error {
	ok, err := s.Repo.Requeue(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionError(ctx, id, models.StatusPending)
	}
	s.Logger.Info("Requeued entry", zap.Int64("queue_id", id))
	return nil
}

func (s *QueueServiceImpl) RequeueDue(ctx context.Context, maxAttempts int) (int, error) {
	return s.Repo.RequeueDue(ctx, s.now(), maxAttempts)
}

func (s *QueueServiceImpl) HasUnsyncedBefore(ctx context.Context, entityType models.EntityType, entityID string, beforeID int64) (bool, error) {
	return s.Repo.HasUnsyncedBefore(ctx, entityType, entityID, beforeID)
}

func (s *QueueServiceImpl) Stats(ctx context.Context) (*Stats, error) {
	return s.Repo.Stats(ctx)
}

// CheckIntegrity reports queue states that cannot be replayed safely.
// Issues are logged and returned; nothing is corrected.
func (s *QueueServiceImpl) CheckIntegrity(ctx context.Context) ([]IntegrityIssue, error) {
	issues, err := s.Repo.IntegrityIssues(ctx)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		s.Logger.Warn("Sync queue integrity issue",
			zap.String("entity_type", string(issue.EntityType)),
			zap.String("entity_id", issue.EntityID),
			zap.Int64s("entry_ids", issue.EntryIDs),
			zap.String("problem", issue.Problem),
		)
	}
	return issues, nil
}

// Verify is CheckIntegrity returning a single INTEGRITY_ERROR when anything is wrong.
func (s *QueueServiceImpl) Verify(ctx context.Context) error {
	issues, err := s.CheckIntegrity(ctx)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		return nil
	}
	first := issues[0]
	return syncerr.Integrity(fmt.Sprintf("%d integrity issue(s), first: %s/%s %s",
		len(issues), first.EntityType, first.EntityID, first.Problem))
}

func (s *QueueServiceImpl) transitionError(ctx context.Context, id int64, to models.SyncStatus) error {
	entry, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: entry %d is %s, cannot move to %s", ErrInvalidTransition, id, entry.Status, to)
}
