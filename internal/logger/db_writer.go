package logger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"pos-sync/internal/config"
	"pos-sync/internal/database"

	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from zap to the writer
type LogEntry struct {
	Level      zapcore.Level
	Message    string
	Caller     string
	EntityType string
	EntityID   string
	QueueID    int64
	Error      string
	Time       time.Time

	flushed chan struct{} // set on flush markers only
}

func (e *LogEntry) apply(f zapcore.Field) {
	switch f.Key {
	case "entity_type":
		e.EntityType = f.String
	case "entity_id":
		e.EntityID = f.String
	case "queue_id":
		e.QueueID = f.Integer
	case "error":
		if err, ok := f.Interface.(error); ok {
			e.Error = err.Error()
		} else if f.Type == zapcore.StringType {
			e.Error = f.String
		}
	}
}

// DBLogWriter persists log entries to sync_log from a single goroutine.
type DBLogWriter struct {
	db      *database.LocalDB
	logChan chan LogEntry
	appId   string
}

func NewDBLogWriter(db *database.LocalDB, cfg *config.Config) *DBLogWriter {
	writer := &DBLogWriter{
		db:      db,
		logChan: make(chan LogEntry, 1000),
		appId:   cfg.AppId,
	}

	go writer.processLogs()

	return writer
}

// AddLog never blocks: when the buffer is full the entry is dropped.
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
	default:
		fmt.Fprintln(os.Stderr, "DB log channel full, dropping log:", entry.Message)
	}
}

// Flush waits up to five seconds for entries queued so far to be written.
func (w *DBLogWriter) Flush() {
	done := make(chan struct{})
	select {
	case w.logChan <- LogEntry{flushed: done}:
	case <-time.After(5 * time.Second):
		return
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}

func (w *DBLogWriter) processLogs() {
	for entry := range w.logChan {
		if entry.flushed != nil {
			close(entry.flushed)
			continue
		}
		if err := w.insert(entry); err != nil {
			fmt.Fprintln(os.Stderr, "failed to persist log:", err)
		}
	}
}

func (w *DBLogWriter) insert(entry LogEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	at := entry.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO sync_log (level, message, caller, entity_type, entity_id, queue_id, error, app_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Level.CapitalString(), entry.Message, nullString(entry.Caller),
		nullString(entry.EntityType), nullString(entry.EntityID),
		sql.NullInt64{Int64: entry.QueueID, Valid: entry.QueueID != 0},
		nullString(entry.Error), w.appId, at.UnixMilli(),
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
