package cron_feature

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pos-sync/internal/database"
)

type CronRepository interface {
	CreateLog(ctx context.Context, log *CronJobLog) error
	UpdateLog(ctx context.Context, log *CronJobLog) error
	GetLogs(ctx context.Context, jobName string, limit int) ([]CronJobLog, error)
}

type CronRepositoryImpl struct {
	db *database.LocalDB
}

func NewCronRepository(db *database.LocalDB) CronRepository {
	return &CronRepositoryImpl{db: db}
}

func (r *CronRepositoryImpl) CreateLog(ctx context.Context, log *CronJobLog) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO cron_job_logs (job_name, start_time, status) VALUES (?, ?, ?)`,
		log.JobName, log.StartTime.UnixMilli(), log.Status)
	if err != nil {
		return fmt.Errorf("failed to create cron log: %w", err)
	}
	log.ID, err = res.LastInsertId()
	return err
}

func (r *CronRepositoryImpl) UpdateLog(ctx context.Context, log *CronJobLog) error {
	var endTime any
	if log.EndTime != nil {
		endTime = log.EndTime.UnixMilli()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE cron_job_logs
		SET end_time = ?, status = ?, records_processed = ?, records_affected = ?, error = ?, output = ?
		WHERE id = ?`,
		endTime, log.Status, log.RecordsProcessed, log.RecordsAffected, log.Error, log.Output, log.ID)
	if err != nil {
		return fmt.Errorf("failed to update cron log: %w", err)
	}
	return nil
}

func (r *CronRepositoryImpl) GetLogs(ctx context.Context, jobName string, limit int) ([]CronJobLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_name, start_time, end_time, status, records_processed, records_affected, error, output
		FROM cron_job_logs WHERE job_name = ? ORDER BY start_time DESC, id DESC LIMIT ?`,
		jobName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []CronJobLog
	for rows.Next() {
		var (
			l         CronJobLog
			startTime int64
			endTime   sql.NullInt64
			errText   sql.NullString
			output    sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.JobName, &startTime, &endTime, &l.Status,
			&l.RecordsProcessed, &l.RecordsAffected, &errText, &output); err != nil {
			return nil, err
		}
		l.StartTime = time.UnixMilli(startTime)
		if endTime.Valid {
			t := time.UnixMilli(endTime.Int64)
			l.EndTime = &t
		}
		l.Error = errText.String
		l.Output = output.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
