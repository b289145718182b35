package diagnostics

import (
	"context"

	"pos-sync/internal/common/models"
	"pos-sync/internal/features/remote"
)

// Deleter removes one remote record. *remote.Client implements it.
type Deleter interface {
	Delete(ctx context.Context, resource, id string) error
}

// RepairDuplicates deletes the duplicates of each group through the remote
// API. Originals are never touched. A record already gone (404) counts as
// deleted; other failures are collected and the remaining deletions proceed.
func RepairDuplicates(ctx context.Context, deleter Deleter, resource string, groups []DuplicateGroup) *RepairResult {
	result := &RepairResult{}
	for _, group := range groups {
		result.EntityType = group.EntityType
		for _, id := range group.DuplicateIDs() {
			if id == "" || id == group.Original.ID() {
				continue
			}
			err := deleter.Delete(ctx, resource, id)
			if err != nil && !remote.IsNotFound(err) {
				if result.Failed == nil {
					result.Failed = map[string]string{}
				}
				result.Failed[id] = err.Error()
				continue
			}
			result.Deleted = append(result.Deleted, id)
		}
	}
	return result
}

// Resource returns the remote path segment of an entity type.
func Resource(entityType models.EntityType) (string, error) {
	def, err := models.Lookup(entityType)
	if err != nil {
		return "", err
	}
	return def.Resource, nil
}
