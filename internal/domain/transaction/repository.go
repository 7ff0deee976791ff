package transaction

import (
	"context"
)

// BulkResult reports the outcome of a bulk upsert.
type BulkResult struct {
	Inserted int
	Updated  int
}

// Repository defines the interface for transaction data access
type Repository interface {
	// ExistingExternalIDs returns which of the given external IDs are already
	// persisted. Projection only; no full records are loaded.
	ExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error)
	// BulkUpsert applies all operations in a single database transaction.
	// Inserts set every field; conflicting rows are refreshed on
	// amount/status/date/updated_at only.
	BulkUpsert(ctx context.Context, ops []UpsertParams) (*BulkResult, error)
	// RecentCategorized returns the user's most recent transactions whose tag
	// is not the default, newest first.
	RecentCategorized(ctx context.Context, userID int64, limit int) ([]Memory, error)
	GetByExternalID(ctx context.Context, externalID string) (*Transaction, error)
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Transaction, error)
	// UpdateUserEdit applies a manual description/tag edit.
	UpdateUserEdit(ctx context.Context, externalID string, userID int64, params UpdateUserEditParams) (*Transaction, error)
	Delete(ctx context.Context, externalID string, userID int64) error
}
