package openfinance

import (
	"context"
	"errors"
	"testing"

	"grana/internal/domain/connection"
	"grana/internal/domain/enrichment"
	"grana/internal/domain/transaction"
	"grana/internal/domain/user"
	"grana/internal/infrastructure/pluggy"
)

// MockClient implements pluggy.ClientInterface
type MockClient struct {
	GetItemFunc          func(ctx context.Context, itemID string) (*pluggy.Item, error)
	DeleteItemFunc       func(ctx context.Context, itemID string) error
	ListAccountsFunc     func(ctx context.Context, itemID string) ([]pluggy.Account, error)
	ListTransactionsFunc func(ctx context.Context, params pluggy.ListTransactionsParams) (*pluggy.TransactionPage, error)
}

func (m *MockClient) GetItem(ctx context.Context, itemID string) (*pluggy.Item, error) {
	if m.GetItemFunc != nil {
		return m.GetItemFunc(ctx, itemID)
	}
	return &pluggy.Item{ID: itemID, Status: pluggy.ItemStatusUpdated}, nil
}

func (m *MockClient) DeleteItem(ctx context.Context, itemID string) error {
	if m.DeleteItemFunc != nil {
		return m.DeleteItemFunc(ctx, itemID)
	}
	return nil
}

func (m *MockClient) ListAccounts(ctx context.Context, itemID string) ([]pluggy.Account, error) {
	if m.ListAccountsFunc != nil {
		return m.ListAccountsFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *MockClient) ListTransactions(ctx context.Context, params pluggy.ListTransactionsParams) (*pluggy.TransactionPage, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, params)
	}
	return &pluggy.TransactionPage{TotalPages: 1}, nil
}

// MockConnectionRepo implements connection.Repository
type MockConnectionRepo struct {
	UpsertFunc       func(ctx context.Context, params connection.UpsertParams) (*connection.BankConnection, error)
	GetByItemIDFunc  func(ctx context.Context, itemID string) (*connection.BankConnection, error)
	ListByUserIDFunc func(ctx context.Context, userID int64) ([]*connection.BankConnection, error)
	DeleteFunc       func(ctx context.Context, itemID string, userID int64) error
}

func (m *MockConnectionRepo) Upsert(ctx context.Context, params connection.UpsertParams) (*connection.BankConnection, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return &connection.BankConnection{
		ItemID:   params.ItemID,
		UserID:   params.UserID,
		Accounts: params.Accounts,
		Status:   params.Status,
	}, nil
}

func (m *MockConnectionRepo) GetByItemID(ctx context.Context, itemID string) (*connection.BankConnection, error) {
	if m.GetByItemIDFunc != nil {
		return m.GetByItemIDFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *MockConnectionRepo) ListByUserID(ctx context.Context, userID int64) ([]*connection.BankConnection, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockConnectionRepo) Delete(ctx context.Context, itemID string, userID int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, itemID, userID)
	}
	return nil
}

// MockTransactionRepo implements transaction.Repository
type MockTransactionRepo struct {
	ExistingExternalIDsFunc func(ctx context.Context, ids []string) (map[string]bool, error)
	BulkUpsertFunc          func(ctx context.Context, ops []transaction.UpsertParams) (*transaction.BulkResult, error)
	RecentCategorizedFunc   func(ctx context.Context, userID int64, limit int) ([]transaction.Memory, error)
}

func (m *MockTransactionRepo) ExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if m.ExistingExternalIDsFunc != nil {
		return m.ExistingExternalIDsFunc(ctx, ids)
	}
	return map[string]bool{}, nil
}

func (m *MockTransactionRepo) BulkUpsert(ctx context.Context, ops []transaction.UpsertParams) (*transaction.BulkResult, error) {
	if m.BulkUpsertFunc != nil {
		return m.BulkUpsertFunc(ctx, ops)
	}
	return &transaction.BulkResult{}, nil
}

func (m *MockTransactionRepo) RecentCategorized(ctx context.Context, userID int64, limit int) ([]transaction.Memory, error) {
	if m.RecentCategorizedFunc != nil {
		return m.RecentCategorizedFunc(ctx, userID, limit)
	}
	return nil, nil
}

func (m *MockTransactionRepo) GetByExternalID(ctx context.Context, externalID string) (*transaction.Transaction, error) {
	return nil, nil
}

func (m *MockTransactionRepo) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
	return nil, nil
}

func (m *MockTransactionRepo) UpdateUserEdit(ctx context.Context, externalID string, userID int64, params transaction.UpdateUserEditParams) (*transaction.Transaction, error) {
	return nil, nil
}

func (m *MockTransactionRepo) Delete(ctx context.Context, externalID string, userID int64) error {
	return nil
}

// MockEnricher implements Enricher
type MockEnricher struct {
	EnrichFunc func(ctx context.Context, userID int64, batch []enrichment.Input) []enrichment.Result
}

func (m *MockEnricher) Enrich(ctx context.Context, userID int64, batch []enrichment.Input) []enrichment.Result {
	if m.EnrichFunc != nil {
		return m.EnrichFunc(ctx, userID, batch)
	}
	results := make([]enrichment.Result, 0, len(batch))
	for _, in := range batch {
		results = append(results, enrichment.Result{
			ExternalID:       in.ExternalID,
			CleanDescription: in.Description,
			Category:         transaction.TagOutros,
		})
	}
	return results
}

// MockNotifier implements Notifier
type MockNotifier struct {
	NotifyFunc func(ctx context.Context, userID int64, newCount int) error
}

func (m *MockNotifier) NotifyNewTransactions(ctx context.Context, userID int64, newCount int) error {
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, userID, newCount)
	}
	return nil
}

// MockUserRepo implements user.Repository
type MockUserRepo struct {
	GetByIDFunc             func(ctx context.Context, id int64) (*user.User, error)
	ListWithConnectionsFunc func(ctx context.Context) ([]*user.User, error)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockUserRepo) ListWithConnections(ctx context.Context) ([]*user.User, error) {
	if m.ListWithConnectionsFunc != nil {
		return m.ListWithConnectionsFunc(ctx)
	}
	return nil, nil
}

// MockActionNotifier implements ActionNotifier
type MockActionNotifier struct {
	NotifyBankActionRequiredFunc func(ctx context.Context, userID int64, connectorName string) error
}

func (m *MockActionNotifier) NotifyBankActionRequired(ctx context.Context, userID int64, connectorName string) error {
	if m.NotifyBankActionRequiredFunc != nil {
		return m.NotifyBankActionRequiredFunc(ctx, userID, connectorName)
	}
	return nil
}

func TestSyncConnection(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		mockClient   func(t *testing.T) *MockClient
		mockConn     func(t *testing.T) *MockConnectionRepo
		wantErr      error
		wantAnyErr   bool
		wantAccounts int
	}{
		{
			name: "Success - Accounts Persisted",
			mockClient: func(t *testing.T) *MockClient {
				return &MockClient{
					GetItemFunc: func(ctx context.Context, itemID string) (*pluggy.Item, error) {
						return &pluggy.Item{ID: itemID, ConnectorName: "Nubank", Status: pluggy.ItemStatusUpdated}, nil
					},
					ListAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
						return []pluggy.Account{
							{ID: "acc-1", ItemID: itemID, Name: "Conta Corrente", Type: "BANK", Balance: 1520.75, CurrencyCode: "BRL"},
							{ID: "acc-2", ItemID: itemID, Name: "Cartão", Type: "CREDIT", Subtype: "CREDIT_CARD", Balance: 430.10, CurrencyCode: "BRL"},
						}, nil
					},
				}
			},
			mockConn: func(t *testing.T) *MockConnectionRepo {
				return &MockConnectionRepo{
					UpsertFunc: func(ctx context.Context, params connection.UpsertParams) (*connection.BankConnection, error) {
						if len(params.Accounts) != 2 {
							t.Errorf("Upsert accounts = %d, want 2", len(params.Accounts))
						}
						if params.Status != pluggy.ItemStatusUpdated {
							t.Errorf("Upsert status = %s, want %s", params.Status, pluggy.ItemStatusUpdated)
						}
						if params.LastSyncedAt == nil {
							t.Error("Upsert LastSyncedAt is nil, want set")
						}
						return &connection.BankConnection{ItemID: params.ItemID, Accounts: params.Accounts}, nil
					},
				}
			},
			wantAccounts: 2,
		},
		{
			name: "Item Not Found",
			mockClient: func(t *testing.T) *MockClient {
				return &MockClient{
					GetItemFunc: func(ctx context.Context, itemID string) (*pluggy.Item, error) {
						return nil, &pluggy.APIError{StatusCode: 404, Code: pluggy.CodeItemNotFound}
					},
				}
			},
			mockConn: func(t *testing.T) *MockConnectionRepo {
				return &MockConnectionRepo{
					UpsertFunc: func(ctx context.Context, params connection.UpsertParams) (*connection.BankConnection, error) {
						t.Error("Upsert should not be called when the item is gone")
						return nil, nil
					},
				}
			},
			wantErr: ErrItemNotFound,
		},
		{
			name: "Login Required - Status Persisted And Error Raised",
			mockClient: func(t *testing.T) *MockClient {
				return &MockClient{
					GetItemFunc: func(ctx context.Context, itemID string) (*pluggy.Item, error) {
						return &pluggy.Item{ID: itemID, Status: pluggy.ItemStatusLoginError}, nil
					},
					ListAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
						return nil, nil
					},
				}
			},
			mockConn: func(t *testing.T) *MockConnectionRepo {
				return &MockConnectionRepo{
					UpsertFunc: func(ctx context.Context, params connection.UpsertParams) (*connection.BankConnection, error) {
						if params.Status != pluggy.ItemStatusLoginError {
							t.Errorf("Upsert status = %s, want %s", params.Status, pluggy.ItemStatusLoginError)
						}
						return &connection.BankConnection{ItemID: params.ItemID, Status: params.Status}, nil
					},
				}
			},
			wantErr: ErrLoginRequired,
		},
		{
			name: "Account Listing Fails - Status Still Persisted",
			mockClient: func(t *testing.T) *MockClient {
				return &MockClient{
					GetItemFunc: func(ctx context.Context, itemID string) (*pluggy.Item, error) {
						return &pluggy.Item{ID: itemID, Status: pluggy.ItemStatusOutdated}, nil
					},
					ListAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
						return nil, errors.New("aggregator timeout")
					},
				}
			},
			mockConn: func(t *testing.T) *MockConnectionRepo {
				return &MockConnectionRepo{
					UpsertFunc: func(ctx context.Context, params connection.UpsertParams) (*connection.BankConnection, error) {
						if params.Accounts != nil {
							t.Errorf("Upsert accounts = %v, want nil so stored snapshots are kept", params.Accounts)
						}
						if params.Status != pluggy.ItemStatusOutdated {
							t.Errorf("Upsert status = %s, want %s", params.Status, pluggy.ItemStatusOutdated)
						}
						return &connection.BankConnection{ItemID: params.ItemID, Status: params.Status}, nil
					},
				}
			},
			wantAnyErr: true,
		},
		{
			name: "Empty Account Listing Overwrites Snapshots",
			mockClient: func(t *testing.T) *MockClient {
				return &MockClient{
					GetItemFunc: func(ctx context.Context, itemID string) (*pluggy.Item, error) {
						return &pluggy.Item{ID: itemID, Status: pluggy.ItemStatusUpdated}, nil
					},
					ListAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
						return []pluggy.Account{}, nil
					},
				}
			},
			mockConn: func(t *testing.T) *MockConnectionRepo {
				return &MockConnectionRepo{
					UpsertFunc: func(ctx context.Context, params connection.UpsertParams) (*connection.BankConnection, error) {
						if params.Accounts == nil {
							t.Error("Upsert accounts is nil, want empty slice so stored snapshots are cleared")
						}
						if len(params.Accounts) != 0 {
							t.Errorf("Upsert accounts = %d, want 0", len(params.Accounts))
						}
						return &connection.BankConnection{ItemID: params.ItemID, Accounts: params.Accounts}, nil
					},
				}
			},
			wantAccounts: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAccountSyncService(tt.mockClient(t), tt.mockConn(t))

			conn, err := svc.SyncConnection(ctx, 1, "item-1")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SyncConnection() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if tt.wantAnyErr {
				if err == nil {
					t.Fatal("SyncConnection() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("SyncConnection() unexpected error: %v", err)
			}
			if len(conn.Accounts) != tt.wantAccounts {
				t.Errorf("SyncConnection() accounts = %d, want %d", len(conn.Accounts), tt.wantAccounts)
			}
		})
	}
}
