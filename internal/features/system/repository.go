package system

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pos-sync/internal/database"
)

// LogRecord is one persisted WARN+ entry of sync_log.
type LogRecord struct {
	ID         int64     `json:"id"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	Caller     string    `json:"caller,omitempty"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	QueueID    int64     `json:"queue_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type LogRepository interface {
	Recent(ctx context.Context, level string, limit int) ([]LogRecord, error)
}

type LogRepositoryImpl struct {
	db *database.LocalDB
}

func NewLogRepository(db *database.LocalDB) LogRepository {
	return &LogRepositoryImpl{db: db}
}

func (r *LogRepositoryImpl) Recent(ctx context.Context, level string, limit int) ([]LogRecord, error) {
	query := `SELECT id, level, message, caller, entity_type, entity_id, queue_id, error, created_at FROM sync_log`
	var args []any
	if level != "" {
		query += ` WHERE level = ?`
		args = append(args, level)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync log: %w", err)
	}
	defer rows.Close()

	var logs []LogRecord
	for rows.Next() {
		var (
			rec                                  LogRecord
			caller, entityType, entityID, errMsg sql.NullString
			queueID                              sql.NullInt64
			createdAt                            int64
		)
		if err := rows.Scan(&rec.ID, &rec.Level, &rec.Message, &caller, &entityType, &entityID,
			&queueID, &errMsg, &createdAt); err != nil {
			return nil, err
		}
		rec.Caller = caller.String
		rec.EntityType = entityType.String
		rec.EntityID = entityID.String
		rec.QueueID = queueID.Int64
		rec.Error = errMsg.String
		rec.CreatedAt = time.UnixMilli(createdAt)
		logs = append(logs, rec)
	}
	return logs, rows.Err()
}
