package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"grana/internal/domain/enrichment"
	"grana/internal/domain/notification"
	"grana/internal/domain/openfinance"
	"grana/internal/infrastructure/firebase"
	"grana/internal/infrastructure/gemini"
	"grana/internal/infrastructure/pluggy"
	"grana/internal/infrastructure/postgres"
	httphandlers "grana/internal/interfaces/http"
	"grana/internal/shared/config"
	"grana/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	SyncHandler         *httphandlers.SyncHandler
	ConnectionHandler   *httphandlers.ConnectionHandler
	TransactionHandler  *httphandlers.TransactionHandler
	NotificationHandler *httphandlers.NotificationHandler

	// Sync orchestration (shared with the scheduler)
	SyncService *openfinance.SyncService

	// Repositories (for the scheduler job provider)
	UserRepo *postgres.UserRepository
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Connected to database")

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	connRepo := postgres.NewConnectionRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	// Aggregator client
	pluggyClient := pluggy.NewClient(cfg.Pluggy.BaseURL, cfg.Pluggy.APIKey)

	// Enrichment: model tier degrades to keyword mapping when unconfigured
	geminiClient := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Models)
	if !geminiClient.Configured() {
		log.Warn().Msg("Gemini API key not set, enrichment runs on keyword mapping only")
	}
	enricher := enrichment.NewEngine(geminiClient, transactionRepo)

	// Push notifications are optional; without credentials the service still
	// stores notification records.
	texts, err := messages.Load(cfg.Messages.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Messages.Path).Msg("Failed to load notification messages, using defaults")
		texts = &messages.Defaults
	}

	var messenger notification.Messenger
	if cfg.Firebase.CredentialsFile != "" {
		fcmClient, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, notificationRepo.DeactivateToken)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Firebase, push notifications disabled")
		} else {
			messenger = fcmClient
		}
	} else {
		log.Info().Msg("Firebase credentials not set, push notifications disabled")
	}
	notificationService := notification.NewService(notificationRepo, messenger, texts)

	// Sync services
	accountSync := openfinance.NewAccountSyncService(pluggyClient, connRepo)
	txSync := openfinance.NewTransactionSyncService(
		pluggyClient,
		transactionRepo,
		enricher,
		notificationService,
		cfg.Pluggy.LookbackDays,
		cfg.Pluggy.PageSize,
		cfg.Pluggy.MaxPages,
	)
	syncService := openfinance.NewSyncService(accountSync, txSync, connRepo, userRepo, notificationService)

	return &Dependencies{
		DB:                  db,
		SyncHandler:         httphandlers.NewSyncHandler(syncService),
		ConnectionHandler:   httphandlers.NewConnectionHandler(connRepo, pluggyClient),
		TransactionHandler:  httphandlers.NewTransactionHandler(transactionRepo),
		NotificationHandler: httphandlers.NewNotificationHandler(notificationService),
		SyncService:         syncService,
		UserRepo:            userRepo,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
