package scheduler

import (
	"context"
	"fmt"
	"strconv"

	"grana/internal/domain/openfinance"
)

// UserSyncJob syncs every bank connection of one user: connection status and
// balances first, then transaction reconciliation.
type UserSyncJob struct {
	userID      int64
	syncService *openfinance.SyncService
}

// NewUserSyncJob creates a sync job for a user.
func NewUserSyncJob(userID int64, syncService *openfinance.SyncService) *UserSyncJob {
	return &UserSyncJob{userID: userID, syncService: syncService}
}

// Execute runs the sync. Per-connection failures are collected by the sync
// service; the job only fails when every connection failed.
func (j *UserSyncJob) Execute(ctx context.Context) error {
	result, err := j.syncService.SyncUser(ctx, j.userID)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if len(result.Errors) > 0 && result.New == 0 && result.Updated == 0 {
		return fmt.Errorf("sync completed with %d errors and no progress", len(result.Errors))
	}
	return nil
}

// UserID returns the user ID associated with this job.
func (j *UserSyncJob) UserID() string {
	return strconv.FormatInt(j.userID, 10)
}

// Description returns a human-readable description of the job.
func (j *UserSyncJob) Description() string {
	return fmt.Sprintf("Full sync for user %d", j.userID)
}
