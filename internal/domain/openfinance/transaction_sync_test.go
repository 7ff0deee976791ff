package openfinance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"grana/internal/domain/connection"
	"grana/internal/domain/enrichment"
	"grana/internal/domain/transaction"
	"grana/internal/infrastructure/pluggy"
)

func testConnection() *connection.BankConnection {
	return &connection.BankConnection{
		ItemID: "item-1",
		UserID: 1,
		Accounts: []connection.AccountSnapshot{
			{ExternalID: "acc-bank", Type: "BANK"},
			{ExternalID: "acc-cc", Type: "CREDIT", Subtype: "CREDIT_CARD"},
		},
	}
}

func newTestSyncService(client *MockClient, txRepo *MockTransactionRepo, enricher *MockEnricher, notifier *MockNotifier) *TransactionSyncService {
	return NewTransactionSyncService(client, txRepo, enricher, notifier, 60, 500, 20)
}

func singlePage(txs ...pluggy.Transaction) *pluggy.TransactionPage {
	return &pluggy.TransactionPage{Total: len(txs), TotalPages: 1, Page: 1, Results: txs}
}

func TestSyncTransactions_NewAndExisting(t *testing.T) {
	ctx := context.Background()
	client := &MockClient{
		ListTransactionsFunc: func(ctx context.Context, params pluggy.ListTransactionsParams) (*pluggy.TransactionPage, error) {
			if params.ItemID != "item-1" {
				t.Errorf("ListTransactions itemID = %s, want item-1", params.ItemID)
			}
			return singlePage(
				pluggy.Transaction{ID: "tx-new", AccountID: "acc-bank", Description: "UBER *TRIP", Amount: -25.90, DateString: "2026-08-20 10:00:00", Status: "POSTED"},
				pluggy.Transaction{ID: "tx-known", AccountID: "acc-bank", Description: "IFOOD", Amount: -80.00, DateString: "2026-08-19 20:00:00", Status: "POSTED"},
			), nil
		},
	}

	var enrichedIDs []string
	enricher := &MockEnricher{
		EnrichFunc: func(ctx context.Context, userID int64, batch []enrichment.Input) []enrichment.Result {
			for _, in := range batch {
				enrichedIDs = append(enrichedIDs, in.ExternalID)
			}
			return []enrichment.Result{
				{ExternalID: "tx-new", CleanDescription: "Uber", Category: transaction.TagTransporte},
			}
		},
	}

	var ops []transaction.UpsertParams
	txRepo := &MockTransactionRepo{
		ExistingExternalIDsFunc: func(ctx context.Context, ids []string) (map[string]bool, error) {
			return map[string]bool{"tx-known": true}, nil
		},
		BulkUpsertFunc: func(ctx context.Context, got []transaction.UpsertParams) (*transaction.BulkResult, error) {
			ops = got
			return &transaction.BulkResult{Inserted: 1, Updated: 1}, nil
		},
	}

	notified := make(chan int, 1)
	notifier := &MockNotifier{
		NotifyFunc: func(ctx context.Context, userID int64, newCount int) error {
			notified <- newCount
			return nil
		},
	}

	svc := newTestSyncService(client, txRepo, enricher, notifier)
	result, err := svc.SyncTransactions(ctx, testConnection())
	if err != nil {
		t.Fatalf("SyncTransactions() unexpected error: %v", err)
	}

	if result.New != 1 || result.Updated != 1 {
		t.Errorf("SyncTransactions() = {New:%d Updated:%d}, want {New:1 Updated:1}", result.New, result.Updated)
	}
	if len(enrichedIDs) != 1 || enrichedIDs[0] != "tx-new" {
		t.Errorf("enriched IDs = %v, want only tx-new", enrichedIDs)
	}
	if len(ops) != 2 {
		t.Fatalf("upsert ops = %d, want 2", len(ops))
	}
	for _, op := range ops {
		if op.Amount < 0 {
			t.Errorf("op %s amount = %f, want non-negative", op.ExternalID, op.Amount)
		}
		if op.ExternalID == "tx-new" {
			if op.Description != "Uber" || op.Tag != transaction.TagTransporte {
				t.Errorf("tx-new enrichment not applied: description=%q tag=%q", op.Description, op.Tag)
			}
			if op.DescriptionRaw != "UBER *TRIP" {
				t.Errorf("tx-new raw description = %q, want UBER *TRIP", op.DescriptionRaw)
			}
			if op.Type != transaction.TypeExpense {
				t.Errorf("tx-new type = %s, want %s", op.Type, transaction.TypeExpense)
			}
		}
	}

	select {
	case count := <-notified:
		if count != 1 {
			t.Errorf("notification count = %d, want 1", count)
		}
	case <-time.After(2 * time.Second):
		t.Error("expected a new-transactions notification")
	}
}

func TestSyncTransactions_EmptyWindow(t *testing.T) {
	client := &MockClient{
		ListTransactionsFunc: func(ctx context.Context, params pluggy.ListTransactionsParams) (*pluggy.TransactionPage, error) {
			return singlePage(), nil
		},
	}
	txRepo := &MockTransactionRepo{
		BulkUpsertFunc: func(ctx context.Context, ops []transaction.UpsertParams) (*transaction.BulkResult, error) {
			t.Error("BulkUpsert should not run for an empty window")
			return nil, nil
		},
	}

	svc := newTestSyncService(client, txRepo, &MockEnricher{}, nil)
	result, err := svc.SyncTransactions(context.Background(), testConnection())
	if err != nil {
		t.Fatalf("SyncTransactions() unexpected error: %v", err)
	}
	if result.New != 0 || result.Updated != 0 {
		t.Errorf("SyncTransactions() = {New:%d Updated:%d}, want zeroes", result.New, result.Updated)
	}
}

func TestSyncTransactions_LoginRequiredPropagates(t *testing.T) {
	client := &MockClient{
		ListTransactionsFunc: func(ctx context.Context, params pluggy.ListTransactionsParams) (*pluggy.TransactionPage, error) {
			return nil, &pluggy.APIError{StatusCode: 403, Code: pluggy.CodeLoginRequired}
		},
	}

	svc := newTestSyncService(client, &MockTransactionRepo{}, &MockEnricher{}, nil)
	_, err := svc.SyncTransactions(context.Background(), testConnection())
	if !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("SyncTransactions() error = %v, want %v", err, ErrLoginRequired)
	}
}

func TestSyncTransactions_PerAccountFallback(t *testing.T) {
	var accountCalls []string
	client := &MockClient{
		ListTransactionsFunc: func(ctx context.Context, params pluggy.ListTransactionsParams) (*pluggy.TransactionPage, error) {
			if params.ItemID != "" {
				return nil, errors.New("item listing unavailable")
			}
			accountCalls = append(accountCalls, params.AccountID)
			if params.AccountID == "acc-bank" {
				return singlePage(
					pluggy.Transaction{ID: "tx-1", AccountID: "acc-bank", Description: "PIX RECEBIDO", Amount: 300, DateString: "2026-08-25 09:00:00", Status: "POSTED"},
				), nil
			}
			// The credit card account fails too; its transactions are skipped
			// but the sync still succeeds with what it got.
			return nil, errors.New("account listing unavailable")
		},
	}
	txRepo := &MockTransactionRepo{
		BulkUpsertFunc: func(ctx context.Context, ops []transaction.UpsertParams) (*transaction.BulkResult, error) {
			if len(ops) != 1 || ops[0].ExternalID != "tx-1" {
				t.Errorf("upsert ops = %v, want only tx-1", ops)
			}
			return &transaction.BulkResult{Inserted: 1}, nil
		},
	}

	svc := newTestSyncService(client, txRepo, &MockEnricher{}, nil)
	result, err := svc.SyncTransactions(context.Background(), testConnection())
	if err != nil {
		t.Fatalf("SyncTransactions() unexpected error: %v", err)
	}
	if result.New != 1 {
		t.Errorf("SyncTransactions() new = %d, want 1", result.New)
	}
	if len(accountCalls) != 2 {
		t.Errorf("per-account calls = %v, want both accounts tried", accountCalls)
	}
}

func TestSyncTransactions_Pagination(t *testing.T) {
	pages := map[int]*pluggy.TransactionPage{
		1: {Total: 3, TotalPages: 2, Page: 1, Results: []pluggy.Transaction{
			{ID: "tx-1", AccountID: "acc-bank", Description: "A", Amount: -1, DateString: "2026-08-01 00:00:00"},
			{ID: "tx-2", AccountID: "acc-bank", Description: "B", Amount: -2, DateString: "2026-08-02 00:00:00"},
		}},
		2: {Total: 3, TotalPages: 2, Page: 2, Results: []pluggy.Transaction{
			{ID: "tx-3", AccountID: "acc-bank", Description: "C", Amount: -3, DateString: "2026-08-03 00:00:00"},
		}},
	}
	client := &MockClient{
		ListTransactionsFunc: func(ctx context.Context, params pluggy.ListTransactionsParams) (*pluggy.TransactionPage, error) {
			page, ok := pages[params.Page]
			if !ok {
				t.Fatalf("unexpected page request %d", params.Page)
			}
			return page, nil
		},
	}
	txRepo := &MockTransactionRepo{
		BulkUpsertFunc: func(ctx context.Context, ops []transaction.UpsertParams) (*transaction.BulkResult, error) {
			if len(ops) != 3 {
				t.Errorf("upsert ops = %d, want 3", len(ops))
			}
			return &transaction.BulkResult{Inserted: 3}, nil
		},
	}

	svc := newTestSyncService(client, txRepo, &MockEnricher{}, nil)
	if _, err := svc.SyncTransactions(context.Background(), testConnection()); err != nil {
		t.Fatalf("SyncTransactions() unexpected error: %v", err)
	}
}

func TestSyncTransactions_EnrichmentBatchCap(t *testing.T) {
	txs := make([]pluggy.Transaction, 0, enrichBatchLimit+10)
	for i := 0; i < enrichBatchLimit+10; i++ {
		txs = append(txs, pluggy.Transaction{
			ID:          fmt.Sprintf("tx-%03d", i),
			AccountID:   "acc-bank",
			Description: "MERCADO LIVRE",
			Amount:      -10,
			DateString:  "2026-08-10 00:00:00",
		})
	}

	client := &MockClient{
		ListTransactionsFunc: func(ctx context.Context, params pluggy.ListTransactionsParams) (*pluggy.TransactionPage, error) {
			return singlePage(txs...), nil
		},
	}
	enricher := &MockEnricher{
		EnrichFunc: func(ctx context.Context, userID int64, batch []enrichment.Input) []enrichment.Result {
			if len(batch) != enrichBatchLimit {
				t.Errorf("enrich batch = %d, want %d", len(batch), enrichBatchLimit)
			}
			return nil
		},
	}
	txRepo := &MockTransactionRepo{
		BulkUpsertFunc: func(ctx context.Context, ops []transaction.UpsertParams) (*transaction.BulkResult, error) {
			if len(ops) != len(txs) {
				t.Errorf("upsert ops = %d, want %d", len(ops), len(txs))
			}
			return &transaction.BulkResult{Inserted: len(ops)}, nil
		},
	}

	svc := newTestSyncService(client, txRepo, enricher, nil)
	if _, err := svc.SyncTransactions(context.Background(), testConnection()); err != nil {
		t.Fatalf("SyncTransactions() unexpected error: %v", err)
	}
}

func TestDeriveType(t *testing.T) {
	transfer := transferCategory

	tests := []struct {
		name         string
		tx           pluggy.Transaction
		isCreditCard bool
		want         string
	}{
		{
			name: "bank account negative amount is expense",
			tx:   pluggy.Transaction{Description: "UBER *TRIP", Amount: -25.90},
			want: transaction.TypeExpense,
		},
		{
			name: "bank account positive amount is income",
			tx:   pluggy.Transaction{Description: "PIX RECEBIDO", Amount: 300},
			want: transaction.TypeIncome,
		},
		{
			name:         "credit card positive amount is expense",
			tx:           pluggy.Transaction{Description: "IFOOD", Amount: 80},
			isCreditCard: true,
			want:         transaction.TypeExpense,
		},
		{
			name:         "credit card negative amount is income",
			tx:           pluggy.Transaction{Description: "ESTORNO COMPRA", Amount: -45},
			isCreditCard: true,
			want:         transaction.TypeIncome,
		},
		{
			name: "bill payment marker is transfer",
			tx:   pluggy.Transaction{Description: "Pagamento de fatura Nubank", Amount: -500},
			want: transaction.TypeTransfer,
		},
		{
			name: "top-up marker is transfer",
			tx:   pluggy.Transaction{Description: "Valor adicionado na conta", Amount: 200},
			want: transaction.TypeTransfer,
		},
		{
			name: "internal transfer category is transfer",
			tx:   pluggy.Transaction{Description: "TED Conta Poupança", Amount: -150, Category: &transfer},
			want: transaction.TypeTransfer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveType(tt.tx, tt.isCreditCard); got != tt.want {
				t.Errorf("deriveType() = %s, want %s", got, tt.want)
			}
		})
	}
}
