// Package openfinance syncs bank connections, accounts and transactions
// from the Open Finance aggregator into local storage.
package openfinance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"grana/internal/domain/connection"
	"grana/internal/infrastructure/pluggy"
)

// Domain errors surfaced to callers so handlers can map them to responses.
var (
	// ErrLoginRequired means the bank connection needs user re-authentication.
	// Never degraded: the caller must tell the user to reconnect the bank.
	ErrLoginRequired = errors.New("bank connection requires user login")
	// ErrItemNotFound means the aggregator no longer knows this connection.
	ErrItemNotFound = errors.New("bank connection not found at aggregator")
)

// AccountSyncResult reports one connection's account refresh.
type AccountSyncResult struct {
	ItemID       string
	Status       string
	AccountCount int
}

// AccountSyncService refreshes connection status and account balances.
type AccountSyncService struct {
	client   pluggy.ClientInterface
	connRepo connection.Repository
}

func NewAccountSyncService(client pluggy.ClientInterface, connRepo connection.Repository) *AccountSyncService {
	return &AccountSyncService{client: client, connRepo: connRepo}
}

// SyncConnection refreshes one bank connection: item status first, then the
// account snapshots. A failed or empty account listing still persists the
// fresh item status so the user sees why their data is stale.
func (s *AccountSyncService) SyncConnection(ctx context.Context, userID int64, itemID string) (*connection.BankConnection, error) {
	item, err := s.client.GetItem(ctx, itemID)
	if err != nil {
		if pluggy.IsItemNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}
		return nil, fmt.Errorf("failed to fetch item %s: %w", itemID, err)
	}

	var snapshots []connection.AccountSnapshot
	accounts, err := s.client.ListAccounts(ctx, itemID)
	if err != nil {
		// Recoverable: persist the fresh item status. Nil snapshots tell the
		// repository to keep whatever was stored on the last good sync.
		log.Warn().Err(err).Str("item_id", itemID).Msg("Failed to list accounts, persisting item status only")
	} else {
		snapshots = make([]connection.AccountSnapshot, 0, len(accounts))
		for _, acc := range accounts {
			snapshots = append(snapshots, connection.AccountSnapshot{
				ExternalID:   acc.ID,
				Name:         acc.Name,
				Type:         acc.Type,
				Subtype:      acc.Subtype,
				Number:       acc.Number,
				Balance:      acc.Balance,
				CurrencyCode: acc.CurrencyCode,
			})
		}
	}

	now := time.Now()
	conn, upsertErr := s.connRepo.Upsert(ctx, connection.UpsertParams{
		ItemID:          itemID,
		UserID:          userID,
		ConnectorName:   item.ConnectorName,
		Accounts:        snapshots,
		Status:          item.Status,
		ExecutionStatus: item.ExecutionStatus,
		LastSyncedAt:    &now,
	})
	if upsertErr != nil {
		return nil, fmt.Errorf("failed to persist connection %s: %w", itemID, upsertErr)
	}

	if item.NeedsUserAction() {
		return conn, fmt.Errorf("%w: item %s status %s", ErrLoginRequired, itemID, item.Status)
	}
	if err != nil {
		return conn, fmt.Errorf("failed to list accounts for item %s: %w", itemID, err)
	}

	log.Info().Str("item_id", itemID).Str("status", item.Status).Int("accounts", len(snapshots)).Msg("Connection synced")
	return conn, nil
}
