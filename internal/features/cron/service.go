package cron_feature

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pos-sync/internal/config"
	"pos-sync/internal/features/queue"
	sync_feature "pos-sync/internal/features/sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type CronService interface {
	ListCronJobs(ctx context.Context) []CronJob
	ExecuteCronJob(ctx context.Context, name string) (*CronJobLog, error)
	GetCronJobLogs(ctx context.Context, name string, limit int) ([]CronJobLog, error)
	InitializeScheduler(ctx context.Context) error
	StopScheduler() error
}

type CronServiceImpl struct {
	repo         CronRepository
	syncService  sync_feature.SyncService
	queueService queue.QueueService
	cfg          *config.Config
	logger       *zap.Logger

	scheduler  *cron.Cron
	jobs       map[string]*CronJob
	jobEntries map[string]cron.EntryID
	mu         sync.RWMutex
}

var ErrJobNotFound = errors.New("cron job not found")

func NewCronService(
	repo CronRepository,
	syncService sync_feature.SyncService,
	queueService queue.QueueService,
	cfg *config.Config,
	logger *zap.Logger,
) CronService {
	s := &CronServiceImpl{
		repo:         repo,
		syncService:  syncService,
		queueService: queueService,
		cfg:          cfg,
		logger:       logger,
		jobs:         make(map[string]*CronJob),
		jobEntries:   make(map[string]cron.EntryID),
	}
	s.jobs[JobDrain] = &CronJob{
		Name:        JobDrain,
		Description: "Replay pending sync queue entries against the remote API",
		Schedule:    cfg.DrainSchedule,
		Active:      cfg.DrainSchedule != "",
	}
	s.jobs[JobIntegrity] = &CronJob{
		Name:        JobIntegrity,
		Description: "Report sync queue states that cannot be replayed safely",
		Schedule:    cfg.IntegritySchedule,
		Active:      cfg.IntegritySchedule != "",
	}
	return s
}

func (s *CronServiceImpl) ListCronJobs(ctx context.Context) []CronJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]CronJob, 0, len(s.jobs))
	for name, job := range s.jobs {
		j := *job
		if entryID, ok := s.jobEntries[name]; ok && s.scheduler != nil {
			if next := s.scheduler.Entry(entryID).Next; !next.IsZero() {
				j.NextRun = &next
			}
		}
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name < jobs[k].Name })
	return jobs
}

func (s *CronServiceImpl) ExecuteCronJob(ctx context.Context, name string) (*CronJobLog, error) {
	s.mu.RLock()
	_, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return s.executeCronJobInternal(ctx, name)
}

func (s *CronServiceImpl) executeCronJobInternal(ctx context.Context, name string) (*CronJobLog, error) {
	startTime := time.Now()

	logEntry := &CronJobLog{
		JobName:   name,
		StartTime: startTime,
		Status:    "running",
	}
	if err := s.repo.CreateLog(ctx, logEntry); err != nil {
		s.logger.Error("Failed to create cron job log", zap.String("job", name), zap.Error(err))
	}

	var execError error
	switch name {
	case JobDrain:
		execError = s.runDrain(ctx, logEntry)
	case JobIntegrity:
		execError = s.runIntegrityCheck(ctx, logEntry)
	default:
		execError = ErrJobNotFound
	}

	endTime := time.Now()
	logEntry.EndTime = &endTime
	switch {
	case errors.Is(execError, sync_feature.ErrDrainLocked):
		logEntry.Status = "skipped"
		logEntry.Output = execError.Error()
		execError = nil
	case execError != nil:
		logEntry.Status = "failed"
		logEntry.Error = execError.Error()
		s.logger.Warn("Cron job failed", zap.String("job", name), zap.Error(execError))
	default:
		logEntry.Status = "success"
	}

	if err := s.repo.UpdateLog(ctx, logEntry); err != nil {
		s.logger.Error("Failed to update cron job log", zap.String("job", name), zap.Error(err))
	}

	s.mu.Lock()
	if job, ok := s.jobs[name]; ok {
		job.LastRun = &startTime
	}
	s.mu.Unlock()

	return logEntry, execError
}

func (s *CronServiceImpl) runDrain(ctx context.Context, logEntry *CronJobLog) error {
	result, err := s.syncService.Drain(ctx, s.cfg.DrainBatchSize)
	if err != nil {
		return err
	}
	logEntry.RecordsProcessed = result.Attempted + result.Skipped
	logEntry.RecordsAffected = result.Synced
	logEntry.Output = fmt.Sprintf("synced=%d failed=%d skipped=%d requeued=%d",
		result.Synced, result.Failed, result.Skipped, result.Requeued)
	return result.Err
}

func (s *CronServiceImpl) runIntegrityCheck(ctx context.Context, logEntry *CronJobLog) error {
	issues, err := s.queueService.CheckIntegrity(ctx)
	if err != nil {
		return err
	}
	logEntry.RecordsAffected = len(issues)
	logEntry.Output = fmt.Sprintf("%d issue(s)", len(issues))
	if len(issues) > 0 {
		return s.queueService.Verify(ctx)
	}
	return nil
}

func (s *CronServiceImpl) GetCronJobLogs(ctx context.Context, name string, limit int) ([]CronJobLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.GetLogs(ctx, name, limit)
}

func (s *CronServiceImpl) InitializeScheduler(ctx context.Context) error {
	s.logger.Info("Initializing cron scheduler")
	cronLog := cronLogger{s.logger.Sugar()}
	s.scheduler = cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog)))

	s.mu.RLock()
	var active []CronJob
	for _, job := range s.jobs {
		if job.Active {
			active = append(active, *job)
		}
	}
	s.mu.RUnlock()

	for i := range active {
		if err := s.registerJob(&active[i]); err != nil {
			return err
		}
	}

	s.scheduler.Start()
	return nil
}

func (s *CronServiceImpl) StopScheduler() error {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
	return nil
}

func (s *CronServiceImpl) registerJob(job *CronJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return fmt.Errorf("scheduler not initialized")
	}

	name := job.Name
	timeout := s.cfg.DrainTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		// failures are logged and recorded in cron_job_logs
		_, _ = s.executeCronJobInternal(ctx, name)
	}

	entryID, err := s.scheduler.AddFunc(job.Schedule, jobFunc)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for cron job %s: %w", job.Schedule, name, err)
	}

	s.jobEntries[name] = entryID
	return nil
}

// cronLogger routes the scheduler's own messages through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
