package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"grana/internal/shared/messages"
)

// Service contains the business logic for notification operations
type Service struct {
	repo      Repository
	messenger Messenger
	texts     *messages.Messages
}

// NewService creates a new notification service. messenger may be nil when
// push delivery is not configured; notifications are then only stored.
func NewService(repo Repository, messenger Messenger, texts *messages.Messages) *Service {
	if texts == nil {
		texts = &messages.Defaults
	}
	return &Service{repo: repo, messenger: messenger, texts: texts}
}

// RegisterDevice registers a device token for a user. If the token already
// belongs to another user, it is reassigned. Creates default push preferences
// if none exist.
func (s *Service) RegisterDevice(ctx context.Context, params CreateDeviceTokenParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	token, err := s.repo.UpsertDeviceToken(ctx, params)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPreferences(ctx, params.UserID); err != nil {
		if _, err := s.repo.UpsertPreferences(ctx, params.UserID, UpdatePreferenceParams{}); err != nil {
			log.Warn().Err(err).Int64("user_id", params.UserID).Msg("Failed to create default push preferences")
		}
	}

	return token, nil
}

// GetPreferences returns the push preferences for a user, defaulting to
// all-enabled when none have been created yet.
func (s *Service) GetPreferences(ctx context.Context, userID int64) (*Preference, error) {
	if userID <= 0 {
		return nil, errors.New("valid user ID is required")
	}

	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return &Preference{
			UserID:              userID,
			TransactionsEnabled: true,
			ConnectionsEnabled:  true,
			GeneralEnabled:      true,
		}, nil
	}

	return prefs, nil
}

// UpdatePreferences updates push preferences for a user
func (s *Service) UpdatePreferences(ctx context.Context, userID int64, params UpdatePreferenceParams) (*Preference, error) {
	if userID <= 0 {
		return nil, errors.New("valid user ID is required")
	}

	return s.repo.UpsertPreferences(ctx, userID, params)
}

// ListNotifications returns paginated notifications for a user
func (s *Service) ListNotifications(ctx context.Context, userID int64, page, perPage int) ([]*Notification, int, error) {
	if userID <= 0 {
		return nil, 0, errors.New("valid user ID is required")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return s.repo.ListByUserID(ctx, userID, page, perPage)
}

// MarkNotificationOpened marks a notification as opened by its owner
func (s *Service) MarkNotificationOpened(ctx context.Context, notificationID string, userID int64) error {
	if notificationID == "" {
		return errors.New("notification ID is required")
	}
	if userID <= 0 {
		return errors.New("valid user ID is required")
	}

	return s.repo.MarkOpened(ctx, notificationID, userID)
}

// NotifyNewTransactions alerts a user about newly synced transactions.
// With zero new transactions it only sends a silent refresh so the app can
// pick up updated balances without a visible push.
func (s *Service) NotifyNewTransactions(ctx context.Context, userID int64, newCount int) error {
	if newCount <= 0 {
		return s.sendSilentRefresh(ctx, userID)
	}

	body := fmt.Sprintf(s.texts.NewTransactions.Body, newCount)
	return s.SendToUser(ctx, userID, s.texts.NewTransactions.Title, body, CategoryTransactions, map[string]string{
		"newCount": fmt.Sprintf("%d", newCount),
	})
}

// NotifyBankActionRequired alerts a user that a bank connection needs to be
// re-authenticated before syncing can continue.
func (s *Service) NotifyBankActionRequired(ctx context.Context, userID int64, connectorName string) error {
	return s.SendToUser(ctx, userID, s.texts.BankActionRequired.Title, s.texts.BankActionRequired.Body, CategoryConnections, map[string]string{
		"connector": connectorName,
	})
}

// SendToUser sends a push notification to a specific user. Respects push
// preferences and always stores a notification record.
func (s *Service) SendToUser(ctx context.Context, userID int64, title, body, category string, data map[string]string) error {
	if !IsValidCategory(category) {
		return ErrInvalidCategory
	}

	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}
	if !prefs.IsCategoryEnabled(category) {
		log.Debug().Int64("user_id", userID).Str("category", category).Msg("Notification skipped, category disabled")
		return nil
	}

	tokens, err := s.repo.GetActiveTokensByUserID(ctx, userID)
	if err != nil {
		return err
	}

	if data == nil {
		data = make(map[string]string)
	}
	if _, ok := data["route"]; !ok {
		data["route"] = category
	}

	if s.messenger != nil && len(tokens) > 0 {
		tokenStrings := make([]string, len(tokens))
		for i, t := range tokens {
			tokenStrings[i] = t.Token
		}
		if err := s.messenger.SendMulticast(ctx, tokenStrings, title, body, data); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("Failed to send push notification")
		}
	}

	if _, err := s.repo.CreateNotification(ctx, CreateNotificationParams{
		UserID:   userID,
		Title:    title,
		Message:  body,
		Category: category,
		Data:     data,
	}); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to store notification")
	}

	return nil
}

func (s *Service) sendSilentRefresh(ctx context.Context, userID int64) error {
	if s.messenger == nil {
		return nil
	}

	tokens, err := s.repo.GetActiveTokensByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	tokenStrings := make([]string, len(tokens))
	for i, t := range tokens {
		tokenStrings[i] = t.Token
	}
	return s.messenger.SendDataOnly(ctx, tokenStrings, map[string]string{"event": "sync_refresh"})
}
