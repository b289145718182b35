package cron_feature

import (
	"context"
	"errors"
	"testing"

	"pos-sync/internal/config"
	"pos-sync/internal/database/dbtest"
	"pos-sync/internal/features/queue"
	sync_feature "pos-sync/internal/features/sync"
	"pos-sync/internal/syncerr"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockSyncService struct {
	sync_feature.SyncService
	result *sync_feature.DrainResult
	err    error
	calls  int
}

func (m *mockSyncService) Drain(ctx context.Context, batchSize int) (*sync_feature.DrainResult, error) {
	m.calls++
	return m.result, m.err
}

type mockQueueService struct {
	queue.QueueService
	issues []queue.IntegrityIssue
}

func (m *mockQueueService) CheckIntegrity(ctx context.Context) ([]queue.IntegrityIssue, error) {
	return m.issues, nil
}

func (m *mockQueueService) Verify(ctx context.Context) error {
	if len(m.issues) == 0 {
		return nil
	}
	return syncerr.Integrity("queue has issues")
}

func newTestCronService(t *testing.T, syncSvc *mockSyncService, queueSvc *mockQueueService, cfg *config.Config) CronService {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{DrainSchedule: "@every 30s", IntegritySchedule: "@every 10m", DrainBatchSize: 10}
	}
	return NewCronService(NewCronRepository(dbtest.Open(t)), syncSvc, queueSvc, cfg, zap.NewNop())
}

func TestExecuteDrainJobRecordsLog(t *testing.T) {
	syncSvc := &mockSyncService{result: &sync_feature.DrainResult{Attempted: 3, Synced: 2, Failed: 1}}
	svc := newTestCronService(t, syncSvc, &mockQueueService{}, nil)
	ctx := context.Background()

	entry, err := svc.ExecuteCronJob(ctx, JobDrain)
	if err != nil {
		t.Fatalf("ExecuteCronJob: %v", err)
	}
	if entry.Status != "success" || entry.RecordsAffected != 2 || entry.RecordsProcessed != 3 {
		t.Fatalf("unexpected log %+v", entry)
	}

	logs, err := svc.GetCronJobLogs(ctx, JobDrain, 10)
	if err != nil {
		t.Fatalf("GetCronJobLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != "success" || logs[0].EndTime == nil {
		t.Fatalf("log not persisted: %+v", logs)
	}

	for _, job := range svc.ListCronJobs(ctx) {
		if job.Name == JobDrain && job.LastRun == nil {
			t.Fatal("last run not recorded")
		}
	}
}

func TestLockedDrainIsSkipped(t *testing.T) {
	syncSvc := &mockSyncService{err: sync_feature.ErrDrainLocked}
	svc := newTestCronService(t, syncSvc, &mockQueueService{}, nil)

	entry, err := svc.ExecuteCronJob(context.Background(), JobDrain)
	if err != nil {
		t.Fatalf("a locked drain is not a failure, got %v", err)
	}
	if entry.Status != "skipped" {
		t.Fatalf("expected skipped, got %s", entry.Status)
	}
}

func TestIntegrityJobFailsWhenIssuesExist(t *testing.T) {
	queueSvc := &mockQueueService{issues: []queue.IntegrityIssue{{EntityID: "c1", Problem: "dup"}}}
	svc := newTestCronService(t, &mockSyncService{}, queueSvc, nil)

	entry, err := svc.ExecuteCronJob(context.Background(), JobIntegrity)
	if !syncerr.Is(err, syncerr.KindIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if entry.Status != "failed" || entry.RecordsAffected != 1 {
		t.Fatalf("unexpected log %+v", entry)
	}
}

func TestUnknownJob(t *testing.T) {
	svc := newTestCronService(t, &mockSyncService{}, &mockQueueService{}, nil)
	if _, err := svc.ExecuteCronJob(context.Background(), "backup"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestInitializeSchedulerRejectsBadSchedule(t *testing.T) {
	cfg := &config.Config{DrainSchedule: "every now and then"}
	svc := newTestCronService(t, &mockSyncService{}, &mockQueueService{}, cfg)

	err := svc.InitializeScheduler(context.Background())
	if err == nil {
		t.Fatal("expected invalid schedule error")
	}
	_ = svc.StopScheduler()
}

func TestSchedulerReportsNextRun(t *testing.T) {
	svc := newTestCronService(t, &mockSyncService{result: &sync_feature.DrainResult{}}, &mockQueueService{}, nil)
	if err := svc.InitializeScheduler(context.Background()); err != nil {
		t.Fatalf("InitializeScheduler: %v", err)
	}
	defer svc.StopScheduler()

	for _, job := range svc.ListCronJobs(context.Background()) {
		if job.Active && job.NextRun == nil {
			t.Fatalf("job %s has no next run", job.Name)
		}
	}
}

func TestFailedJobIsLoggedAtWarn(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	queueSvc := &mockQueueService{issues: []queue.IntegrityIssue{{EntityID: "c1", Problem: "dup"}}}
	cfg := &config.Config{IntegritySchedule: "@every 10m"}
	svc := NewCronService(NewCronRepository(dbtest.Open(t)), &mockSyncService{}, queueSvc, cfg, zap.New(core))

	if _, err := svc.ExecuteCronJob(context.Background(), JobIntegrity); err == nil {
		t.Fatal("expected integrity error")
	}

	entries := logs.FilterMessage("Cron job failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	if job := entries[0].ContextMap()["job"]; job != JobIntegrity {
		t.Fatalf("warning must name the job, got %v", job)
	}
}
