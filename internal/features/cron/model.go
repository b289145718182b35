package cron_feature

import "time"

const (
	JobDrain     = "drain"
	JobIntegrity = "integrity_check"
)

// CronJob is one of the built-in scheduled jobs of the sync process.
type CronJob struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Schedule    string     `json:"schedule"`
	Active      bool       `json:"active"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

// CronJobLog represents a single execution of a cron job
type CronJobLog struct {
	ID               int64      `json:"id"`
	JobName          string     `json:"job_name"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	Status           string     `json:"status"` // "success", "failed", "running", "skipped"
	RecordsProcessed int        `json:"records_processed"`
	RecordsAffected  int        `json:"records_affected"`
	Error            string     `json:"error,omitempty"`
	Output           string     `json:"output,omitempty"`
}
