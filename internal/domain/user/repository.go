package user

import "context"

// Repository defines the interface for user data access
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	// ListWithConnections returns every user owning at least one bank
	// connection; input for the scheduled sync.
	ListWithConnections(ctx context.Context) ([]*User, error)
}
