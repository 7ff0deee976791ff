package openfinance

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"grana/internal/domain/connection"
	"grana/internal/domain/user"
)

// UserSyncResult aggregates one user's full sync across connections.
type UserSyncResult struct {
	UserID  int64    `json:"userId"`
	New     int      `json:"new"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors,omitempty"`
}

// ActionNotifier tells a user their bank connection needs re-authentication.
type ActionNotifier interface {
	NotifyBankActionRequired(ctx context.Context, userID int64, connectorName string) error
}

// SyncService orchestrates a full sync: connection status and balances
// first, then transaction reconciliation.
type SyncService struct {
	accountSync *AccountSyncService
	txSync      *TransactionSyncService
	connRepo    connection.Repository
	userRepo    user.Repository
	notifier    ActionNotifier
}

func NewSyncService(
	accountSync *AccountSyncService,
	txSync *TransactionSyncService,
	connRepo connection.Repository,
	userRepo user.Repository,
	notifier ActionNotifier,
) *SyncService {
	return &SyncService{
		accountSync: accountSync,
		txSync:      txSync,
		connRepo:    connRepo,
		userRepo:    userRepo,
		notifier:    notifier,
	}
}

// SyncItem syncs a single bank connection end to end. ErrLoginRequired and
// ErrItemNotFound propagate so callers can tell the user what to do.
func (s *SyncService) SyncItem(ctx context.Context, userID int64, itemID string) (*SyncResult, error) {
	conn, err := s.accountSync.SyncConnection(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	result, err := s.txSync.SyncTransactions(ctx, conn)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SyncUser syncs every connection of one user. A failing connection never
// blocks the others; its error is collected in the result.
func (s *SyncService) SyncUser(ctx context.Context, userID int64) (*UserSyncResult, error) {
	connections, err := s.connRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections for user %d: %w", userID, err)
	}

	result := &UserSyncResult{UserID: userID}
	for _, conn := range connections {
		itemResult, err := s.SyncItem(ctx, userID, conn.ItemID)
		if err != nil {
			if errors.Is(err, ErrLoginRequired) {
				log.Info().Str("item_id", conn.ItemID).Int64("user_id", userID).Msg("Connection needs user re-authentication, skipping")
				if s.notifier != nil {
					if notifyErr := s.notifier.NotifyBankActionRequired(ctx, userID, conn.ConnectorName); notifyErr != nil {
						log.Error().Err(notifyErr).Int64("user_id", userID).Msg("Failed to notify about required bank action")
					}
				}
			} else {
				log.Error().Err(err).Str("item_id", conn.ItemID).Int64("user_id", userID).Msg("Connection sync failed")
			}
			result.Errors = append(result.Errors, fmt.Sprintf("item %s: %v", conn.ItemID, err))
			continue
		}
		result.New += itemResult.New
		result.Updated += itemResult.Updated
	}

	return result, nil
}

// SyncAllUsers runs SyncUser for every user owning at least one connection.
func (s *SyncService) SyncAllUsers(ctx context.Context) ([]*UserSyncResult, error) {
	users, err := s.userRepo.ListWithConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with connections: %w", err)
	}

	var results []*UserSyncResult
	for _, u := range users {
		result, err := s.SyncUser(ctx, u.ID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", u.ID).Msg("User sync failed")
			results = append(results, &UserSyncResult{UserID: u.ID, Errors: []string{err.Error()}})
			continue
		}
		results = append(results, result)
	}

	return results, nil
}
