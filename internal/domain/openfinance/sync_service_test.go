package openfinance

import (
	"context"
	"testing"

	"grana/internal/domain/connection"
	"grana/internal/domain/transaction"
	"grana/internal/infrastructure/pluggy"
)

func TestSyncUser_ContinuesPastFailingConnection(t *testing.T) {
	ctx := context.Background()

	client := &MockClient{
		GetItemFunc: func(ctx context.Context, itemID string) (*pluggy.Item, error) {
			if itemID == "item-broken" {
				return &pluggy.Item{ID: itemID, Status: pluggy.ItemStatusLoginError}, nil
			}
			return &pluggy.Item{ID: itemID, Status: pluggy.ItemStatusUpdated}, nil
		},
		ListAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
			return []pluggy.Account{{ID: "acc-" + itemID, ItemID: itemID, Type: "BANK"}}, nil
		},
		ListTransactionsFunc: func(ctx context.Context, params pluggy.ListTransactionsParams) (*pluggy.TransactionPage, error) {
			return singlePage(
				pluggy.Transaction{ID: "tx-" + params.ItemID, AccountID: "acc-" + params.ItemID, Description: "PIX", Amount: 10, DateString: "2026-08-28 12:00:00"},
			), nil
		},
	}

	connRepo := &MockConnectionRepo{
		ListByUserIDFunc: func(ctx context.Context, userID int64) ([]*connection.BankConnection, error) {
			return []*connection.BankConnection{
				{ItemID: "item-broken", UserID: userID},
				{ItemID: "item-ok", UserID: userID},
			}, nil
		},
	}

	accountSync := NewAccountSyncService(client, connRepo)
	txSync := newTestSyncService(client, &MockTransactionRepo{
		BulkUpsertFunc: func(ctx context.Context, ops []transaction.UpsertParams) (*transaction.BulkResult, error) {
			return &transaction.BulkResult{Inserted: len(ops)}, nil
		},
	}, &MockEnricher{}, nil)

	actionNotified := false
	notifier := &MockActionNotifier{
		NotifyBankActionRequiredFunc: func(ctx context.Context, userID int64, connectorName string) error {
			actionNotified = true
			return nil
		},
	}

	svc := NewSyncService(accountSync, txSync, connRepo, &MockUserRepo{}, notifier)

	result, err := svc.SyncUser(ctx, 1)
	if err != nil {
		t.Fatalf("SyncUser() unexpected error: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("SyncUser() errors = %v, want exactly one", result.Errors)
	}
	if result.New != 1 {
		t.Errorf("SyncUser() new = %d, want 1 from the healthy connection", result.New)
	}
	if !actionNotified {
		t.Error("SyncUser() should notify the user about the connection needing re-authentication")
	}
}
