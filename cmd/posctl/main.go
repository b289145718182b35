package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pos-sync/internal/config"
	"pos-sync/internal/database"
	"pos-sync/internal/features/diagnostics"
	"pos-sync/internal/features/queue"
	"pos-sync/internal/features/remote"
	"pos-sync/internal/features/store"
	sync_feature "pos-sync/internal/features/sync"
	"pos-sync/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "posctl",
	Short: "Operator tools for the POS sync queue",
	Long: `Inspect and operate the local sync queue and compare the local store
with the remote one. Configuration comes from the environment (.env).`,
	SilenceUsage: true,
}

// env holds the collaborators shared by every subcommand.
type env struct {
	cfg    *config.Config
	db     *database.LocalDB
	log    *zap.Logger
	queue  queue.QueueService
	store  store.StoreService
	client *remote.Client
	closer []func() error
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.LocalDBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log, err := logger.NewLogger(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	q := queue.NewQueueService(queue.NewQueueRepository(db), log)
	e := &env{
		cfg:    cfg,
		db:     db,
		log:    log,
		queue:  q,
		store:  store.NewStoreService(db, store.NewStoreRepository(), q, log),
		client: remote.NewRemoteClient(cfg, log),
	}
	e.closer = append(e.closer, func() error { _ = log.Sync(); return nil }, db.Close)
	return e, nil
}

func (e *env) Close() {
	for _, fn := range e.closer {
		_ = fn()
	}
}

func (e *env) syncService() sync_feature.SyncService {
	return sync_feature.NewSyncService(e.cfg, e.db, e.queue, e.client, sync_feature.NewHub(), e.log)
}

// diagnosticsService reads the remote through REMOTE_DSN when set, the API otherwise.
func (e *env) diagnosticsService() (diagnostics.DiagnosticsService, error) {
	var source diagnostics.Source = &diagnostics.APISource{Client: e.client}
	if e.cfg.RemoteDSN != "" {
		pg, err := diagnostics.NewPostgresSource(e.cfg.RemoteDSN)
		if err != nil {
			return nil, err
		}
		e.closer = append([]func() error{pg.Close}, e.closer...)
		source = pg
	}
	rules, err := diagnostics.LoadRules(e.cfg.DuplicateRulesFile)
	if err != nil {
		return nil, err
	}
	return diagnostics.NewDiagnosticsServiceWith(&diagnostics.LocalSource{Store: e.store}, source, e.client,
		e.queue, rules, e.cfg.Tolerance, e.log), nil
}

// withEnv runs fn with an opened environment and a deadline.
func withEnv(timeout time.Duration, fn func(ctx context.Context, e *env) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(ctx, e)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
