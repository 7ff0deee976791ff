package pluggy

import "context"

// ClientInterface defines the aggregator operations used by sync services.
type ClientInterface interface {
	GetItem(ctx context.Context, itemID string) (*Item, error)
	DeleteItem(ctx context.Context, itemID string) error
	ListAccounts(ctx context.Context, itemID string) ([]Account, error)
	ListTransactions(ctx context.Context, params ListTransactionsParams) (*TransactionPage, error)
}
