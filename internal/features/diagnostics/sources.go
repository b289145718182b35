package diagnostics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/config"
	"pos-sync/internal/database"
	"pos-sync/internal/features/remote"
	"pos-sync/internal/features/store"

	"github.com/lib/pq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Source loads a read-only snapshot of the given entity types.
type Source interface {
	Name() string
	Snapshot(ctx context.Context, types []models.EntityType) (models.Snapshot, error)
}

// LocalSource reads the local store.
type LocalSource struct {
	Store store.StoreService
}

func (s *LocalSource) Name() string { return "local" }

func (s *LocalSource) Snapshot(ctx context.Context, types []models.EntityType) (models.Snapshot, error) {
	all, err := s.Store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	snap := models.Snapshot{}
	for _, entityType := range types {
		if records, ok := all[entityType]; ok {
			snap[entityType] = records
		}
	}
	return snap, nil
}

// Lister is the read side of the remote API. *remote.Client implements it.
type Lister interface {
	List(ctx context.Context, resource string) ([]models.Record, error)
}

// APISource lists every resource through GET /<resource>.
type APISource struct {
	Client Lister
}

func (s *APISource) Name() string { return "api" }

func (s *APISource) Snapshot(ctx context.Context, types []models.EntityType) (models.Snapshot, error) {
	snap := models.Snapshot{}
	for _, entityType := range types {
		def, err := models.Lookup(entityType)
		if err != nil {
			return nil, err
		}
		records, err := s.Client.List(ctx, def.Resource)
		if err != nil {
			return nil, fmt.Errorf("failed to list remote %s: %w", def.Resource, err)
		}
		snap[entityType] = records
	}
	return snap, nil
}

// PostgresSource reads the remote database directly inside a read-only
// transaction, so a snapshot is consistent across tables.
type PostgresSource struct {
	db *sql.DB
	// Tables overrides the remote table name per entity type. The local
	// table name is used otherwise.
	Tables map[models.EntityType]string
}

func NewPostgresSource(dsn string) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PostgresSource{db: db, Tables: map[models.EntityType]string{}}, nil
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Close() error {
	return s.db.Close()
}

func (s *PostgresSource) Snapshot(ctx context.Context, types []models.EntityType) (models.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("failed to open read-only transaction: %w", err)
	}
	defer tx.Rollback()

	snap := models.Snapshot{}
	for _, entityType := range types {
		def, err := models.Lookup(entityType)
		if err != nil {
			return nil, err
		}
		table := def.Table
		if name, ok := s.Tables[entityType]; ok {
			table = name
		}
		records, err := database.ScanRecords(tx.QueryContext(ctx, "SELECT * FROM "+pq.QuoteIdentifier(table)))
		if err != nil {
			return nil, fmt.Errorf("failed to read remote %s: %w", table, err)
		}
		snap[entityType] = records
	}
	return snap, nil
}

// NewRemoteSource picks the remote snapshot source: PostgreSQL when
// REMOTE_DSN is set, the remote API otherwise.
func NewRemoteSource(lc fx.Lifecycle, cfg *config.Config, client *remote.Client, logger *zap.Logger) (Source, error) {
	if cfg.RemoteDSN == "" {
		return &APISource{Client: client}, nil
	}
	src, err := NewPostgresSource(cfg.RemoteDSN)
	if err != nil {
		return nil, err
	}
	logger.Info("Diagnostics read the remote database directly")
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return src.Close()
		},
	})
	return src, nil
}
