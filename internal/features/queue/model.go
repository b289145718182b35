package queue

import (
	"encoding/json"
	"time"

	"pos-sync/internal/common/models"
)

// Entry is one pending, synced or failed mutation in the sync_queue table.
type Entry struct {
	ID          int64             `json:"id"`
	EntityType  models.EntityType `json:"entity_type"`
	EntityID    string            `json:"entity_id"`
	Operation   models.Operation  `json:"operation"`
	Payload     json.RawMessage   `json:"payload"`
	Status      models.SyncStatus `json:"status"`
	LastError   string            `json:"last_error,omitempty"`
	Attempts    int               `json:"attempts"`
	Retryable   bool              `json:"retryable"`
	NextRetryAt *time.Time        `json:"next_retry_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	SyncedAt    *time.Time        `json:"synced_at,omitempty"`
}

// Record decodes the payload snapshot taken at enqueue time.
func (e *Entry) Record() (models.Record, error) {
	rec := models.Record{}
	if len(e.Payload) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(e.Payload, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

type Filter struct {
	Status     models.SyncStatus
	EntityType models.EntityType
	EntityID   string
	// After restricts the listing to entries ordered after this one.
	After *Entry
	Limit int
}

type Stats struct {
	Pending        int `json:"pending"`
	Synced         int `json:"synced"`
	Failed         int `json:"failed"`
	FailedTerminal int `json:"failed_terminal"` // failed and not eligible for automatic retry
}

type IntegrityIssue struct {
	EntityType models.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	EntryIDs   []int64           `json:"entry_ids"`
	Problem    string            `json:"problem"`
}
