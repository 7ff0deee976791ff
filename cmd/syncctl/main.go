package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"grana/internal/domain/enrichment"
	"grana/internal/domain/notification"
	"grana/internal/domain/openfinance"
	"grana/internal/infrastructure/gemini"
	"grana/internal/infrastructure/pluggy"
	"grana/internal/infrastructure/postgres"
	"grana/internal/logger"
	"grana/internal/shared/config"
)

const usage = `syncctl - Manual sync commands for the Grana API

Usage:
  syncctl <command> [options]

Commands:
  sync        Run a full sync for one or more users
  sync-item   Run a sync for a single bank connection

Examples:
  # Sync one user
  syncctl sync --user-id=1

  # Sync several users
  syncctl sync --user-id=1,2,3

  # Sync every user with a bank connection
  syncctl sync --all

  # Sync a single connection
  syncctl sync-item --user-id=1 --item-id=a3f1c2...

  # Run with a timeout
  syncctl sync --all --timeout=30m
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sync":
		runSync(os.Args[2:])
	case "sync-item":
		runSyncItem(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		fmt.Print(usage)
		os.Exit(1)
	}
}

func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	userIDStr := fs.String("user-id", "", "User ID(s) to sync (comma-separated for multiple)")
	allUsers := fs.Bool("all", false, "Sync all users with bank connections")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: syncctl sync [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *userIDStr == "" && !*allUsers {
		fmt.Println("Error: must specify --user-id or --all")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timeout format")
	}

	env := mustSetup()
	defer env.db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var userIDs []int64
	if *allUsers {
		users, err := env.userRepo.ListWithConnections(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list users")
		}
		for _, u := range users {
			userIDs = append(userIDs, u.ID)
		}
		log.Info().Int("count", len(userIDs)).Msg("Found users with bank connections")
	} else {
		userIDs, err = parseUserIDs(*userIDStr)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid user ID")
		}
	}

	if len(userIDs) == 0 {
		log.Info().Msg("No users to sync")
		return
	}

	startTime := time.Now()
	for _, userID := range userIDs {
		result, err := env.syncService.SyncUser(ctx, userID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("Sync failed")
			continue
		}
		printResult(result)
	}
	log.Info().Dur("elapsed", time.Since(startTime)).Msg("Sync completed")
}

func runSyncItem(args []string) {
	fs := flag.NewFlagSet("sync-item", flag.ExitOnError)

	userID := fs.Int64("user-id", 0, "Owner of the connection")
	itemID := fs.String("item-id", "", "Aggregator item ID of the connection")
	timeoutStr := fs.String("timeout", "10m", "Timeout for the operation")

	fs.Usage = func() {
		fmt.Println("Usage: syncctl sync-item [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *userID <= 0 || *itemID == "" {
		fmt.Println("Error: must specify --user-id and --item-id")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timeout format")
	}

	env := mustSetup()
	defer env.db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := env.syncService.SyncItem(ctx, *userID, *itemID)
	if err != nil {
		switch {
		case errors.Is(err, openfinance.ErrLoginRequired):
			log.Fatal().Str("item_id", *itemID).Msg("Connection requires user action, ask the user to reconnect")
		case errors.Is(err, openfinance.ErrItemNotFound):
			log.Fatal().Str("item_id", *itemID).Msg("Connection no longer exists at the aggregator")
		default:
			log.Fatal().Err(err).Msg("Sync failed")
		}
	}

	fmt.Printf("\n=== Item %s ===\n", *itemID)
	fmt.Printf("  New transactions:     %d\n", result.New)
	fmt.Printf("  Updated transactions: %d\n", result.Updated)
}

type cliEnv struct {
	db          *postgres.DB
	userRepo    *postgres.UserRepository
	syncService *openfinance.SyncService
}

// mustSetup wires the sync pipeline without push delivery; manual runs still
// store notification records.
func mustSetup() *cliEnv {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Connected to database")

	userRepo := postgres.NewUserRepository(db)
	connRepo := postgres.NewConnectionRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	pluggyClient := pluggy.NewClient(cfg.Pluggy.BaseURL, cfg.Pluggy.APIKey)
	geminiClient := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Models)
	enricher := enrichment.NewEngine(geminiClient, transactionRepo)
	notificationService := notification.NewService(notificationRepo, nil, nil)

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

	return &cliEnv{
		db:          db,
		userRepo:    userRepo,
		syncService: openfinance.NewSyncService(accountSync, txSync, connRepo, userRepo, notificationService),
	}
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printResult(result *openfinance.UserSyncResult) {
	fmt.Printf("\n=== User %d ===\n", result.UserID)
	fmt.Printf("  New transactions:     %d\n", result.New)
	fmt.Printf("  Updated transactions: %d\n", result.Updated)

	if len(result.Errors) > 0 {
		fmt.Printf("  Errors:               %d\n", len(result.Errors))
		for i, e := range result.Errors {
			if i >= 5 {
				fmt.Printf("    ... and %d more errors\n", len(result.Errors)-5)
				break
			}
			fmt.Printf("    - %s\n", e)
		}
	}
}
