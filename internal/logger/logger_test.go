package logger

import (
	"context"
	"errors"
	"testing"

	"pos-sync/internal/config"
	"pos-sync/internal/database/dbtest"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDBCorePersistsWarnAndAbove(t *testing.T) {
	db := dbtest.Open(t)
	writer := NewDBLogWriter(db, &config.Config{AppId: "pos-sync-test"})
	observed, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(NewDBCore(observed, writer)).With(zap.String("entity_type", "sales"))

	log.Info("Drain started")
	log.Warn("Entry failed",
		zap.String("entity_id", "s1"),
		zap.Int64("queue_id", 7),
		zap.Error(errors.New("remote unavailable")),
	)
	if err := log.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if logs.Len() != 2 {
		t.Fatalf("base core must still receive every entry, got %d", logs.Len())
	}

	var (
		count                       int
		level, entityType, entityID string
		errText, appID              string
		queueID                     int64
	)
	if err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM sync_log`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected only the warning persisted, got %d rows", count)
	}
	err := db.QueryRowContext(context.Background(), `
		SELECT level, entity_type, entity_id, queue_id, error, app_id FROM sync_log`).
		Scan(&level, &entityType, &entityID, &queueID, &errText, &appID)
	if err != nil {
		t.Fatal(err)
	}
	if level != "WARN" || entityType != "sales" || entityID != "s1" || queueID != 7 ||
		errText != "remote unavailable" || appID != "pos-sync-test" {
		t.Fatalf("unexpected row %s %s %s %d %s %s", level, entityType, entityID, queueID, errText, appID)
	}
}
