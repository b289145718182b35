package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/config"
	"pos-sync/internal/features/queue"
	"pos-sync/internal/features/remote"
	"pos-sync/internal/features/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoRule is returned when no duplicate rule exists for an entity type.
var ErrNoRule = errors.New("no duplicate rule for entity type")

// DiagnosticsService compares the local store with the remote one. Only
// RepairDuplicates writes anything, and only to the remote.
type DiagnosticsService interface {
	Run(ctx context.Context) (*Report, error)
	CheckPurchases(ctx context.Context) ([]PurchaseIssue, error)
	Duplicates(ctx context.Context, entityType models.EntityType) ([]DuplicateGroup, error)
	RepairDuplicates(ctx context.Context, entityType models.EntityType) (*RepairResult, error)
	Rules() []DuplicateRule
}

type DiagnosticsServiceImpl struct {
	Local     Source
	Remote    Source
	Deleter   Deleter
	Queue     queue.QueueService
	rules     []DuplicateRule
	Tolerance float64
	Logger    *zap.Logger
	now       func() time.Time
}

func NewDiagnosticsService(
	cfg *config.Config,
	storeService store.StoreService,
	queueService queue.QueueService,
	remoteSource Source,
	client *remote.Client,
	logger *zap.Logger,
) (DiagnosticsService, error) {
	rules, err := LoadRules(cfg.DuplicateRulesFile)
	if err != nil {
		return nil, err
	}
	return NewDiagnosticsServiceWith(&LocalSource{Store: storeService}, remoteSource, client,
		queueService, rules, cfg.Tolerance, logger), nil
}

// NewDiagnosticsServiceWith builds the service from explicit collaborators.
func NewDiagnosticsServiceWith(local, remoteSource Source, deleter Deleter, queueService queue.QueueService,
	rules []DuplicateRule, tolerance float64, logger *zap.Logger) *DiagnosticsServiceImpl {
	return &DiagnosticsServiceImpl{
		Local:     local,
		Remote:    remoteSource,
		Deleter:   deleter,
		Queue:     queueService,
		rules:     rules,
		Tolerance: tolerance,
		Logger:    logger,
		now:       time.Now,
	}
}

func (s *DiagnosticsServiceImpl) Rules() []DuplicateRule {
	return s.rules
}

// Run loads both snapshots concurrently and builds the divergence report.
// Any load failure aborts the run with the reason.
func (s *DiagnosticsServiceImpl) Run(ctx context.Context) (*Report, error) {
	remoteTypes := append([]models.EntityType{}, models.LocalEntities...)
	for _, rule := range s.rules {
		if !contains(remoteTypes, rule.EntityType) {
			remoteTypes = append(remoteTypes, rule.EntityType)
		}
	}

	var (
		local, remoteSnap models.Snapshot
		pending           []queue.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.Local.Snapshot(gctx, models.LocalEntities)
		if err != nil {
			return fmt.Errorf("local snapshot failed: %w", err)
		}
		local = snap
		return nil
	})
	g.Go(func() error {
		snap, err := s.Remote.Snapshot(gctx, remoteTypes)
		if err != nil {
			return fmt.Errorf("remote snapshot (%s) failed: %w", s.Remote.Name(), err)
		}
		remoteSnap = snap
		return nil
	})
	g.Go(func() error {
		entries, err := s.Queue.ListUnsynced(gctx)
		if err != nil {
			return fmt.Errorf("failed to read sync queue: %w", err)
		}
		pending = entries
		return nil
	})
	if err := g.Wait(); err != nil {
		s.Logger.Error("Diagnostics run aborted", zap.Error(err))
		return nil, err
	}

	report := &Report{
		GeneratedAt: s.now(),
		Source:      s.Remote.Name(),
		Tolerance:   s.Tolerance,
		Entities: Compare(local, remoteSnap, CompareOptions{
			Tolerance: s.Tolerance,
			Pending:   PendingFromQueue(pending),
		}),
	}

	report.Purchases = s.purchaseIssues(local, remoteSnap)

	for _, rule := range s.rules {
		groups, err := FindDuplicates(ctx, remoteSnap[rule.EntityType], rule)
		if err != nil {
			return nil, err
		}
		report.Duplicates = append(report.Duplicates, groups...)
	}

	issues, err := s.Queue.CheckIntegrity(ctx)
	if err != nil {
		return nil, err
	}
	report.Integrity = issues

	s.Logger.Info("Diagnostics run finished",
		zap.String("source", report.Source),
		zap.Int("purchase_issues", len(report.Purchases)),
		zap.Int("duplicate_groups", len(report.Duplicates)),
		zap.Int("integrity_issues", len(report.Integrity)),
		zap.Bool("clean", report.Clean()),
	)
	return report, nil
}

func (s *DiagnosticsServiceImpl) CheckPurchases(ctx context.Context) ([]PurchaseIssue, error) {
	types := []models.EntityType{models.EntityPurchaseItem}

	var local, remoteSnap models.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		local, err = s.Local.Snapshot(gctx, types)
		return err
	})
	g.Go(func() (err error) {
		remoteSnap, err = s.Remote.Snapshot(gctx, types)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.purchaseIssues(local, remoteSnap), nil
}

func (s *DiagnosticsServiceImpl) purchaseIssues(local, remoteSnap models.Snapshot) []PurchaseIssue {
	var issues []PurchaseIssue
	for _, side := range []struct {
		name string
		snap models.Snapshot
	}{{"local", local}, {s.Remote.Name(), remoteSnap}} {
		found := CheckPurchaseTotals(side.snap[models.EntityPurchaseItem], s.Tolerance)
		for i := range found {
			found[i].Source = side.name
		}
		issues = append(issues, found...)
	}
	return issues
}

func (s *DiagnosticsServiceImpl) Duplicates(ctx context.Context, entityType models.EntityType) ([]DuplicateGroup, error) {
	rule, ok := FindRule(s.rules, entityType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRule, entityType)
	}
	snap, err := s.Remote.Snapshot(ctx, []models.EntityType{entityType})
	if err != nil {
		return nil, fmt.Errorf("remote snapshot (%s) failed: %w", s.Remote.Name(), err)
	}
	return FindDuplicates(ctx, snap[entityType], rule)
}

// RepairDuplicates recomputes the duplicate groups and deletes the
// duplicates remotely. It is only ever run on operator request.
func (s *DiagnosticsServiceImpl) RepairDuplicates(ctx context.Context, entityType models.EntityType) (*RepairResult, error) {
	resource, err := Resource(entityType)
	if err != nil {
		return nil, err
	}
	groups, err := s.Duplicates(ctx, entityType)
	if err != nil {
		return nil, err
	}

	result := RepairDuplicates(ctx, s.Deleter, resource, groups)
	result.EntityType = entityType
	for _, id := range result.Deleted {
		s.Logger.Info("Deleted duplicate remote record",
			zap.String("entity_type", string(entityType)),
			zap.String("entity_id", id),
		)
	}
	for id, reason := range result.Failed {
		s.Logger.Warn("Failed to delete duplicate remote record",
			zap.String("entity_type", string(entityType)),
			zap.String("entity_id", id),
			zap.String("error", reason),
		)
	}
	return result, nil
}

func contains(types []models.EntityType, t models.EntityType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
