package connection

import "context"

// Repository defines the interface for bank connection data access
type Repository interface {
	Upsert(ctx context.Context, params UpsertParams) (*BankConnection, error)
	GetByItemID(ctx context.Context, itemID string) (*BankConnection, error)
	ListByUserID(ctx context.Context, userID int64) ([]*BankConnection, error)
	Delete(ctx context.Context, itemID string, userID int64) error
}
