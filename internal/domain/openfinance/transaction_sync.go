package openfinance

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"grana/internal/domain/connection"
	"grana/internal/domain/enrichment"
	"grana/internal/domain/transaction"
	"grana/internal/infrastructure/pluggy"
)

// enrichBatchLimit caps how many new transactions go through the enrichment
// engine per sync; the remainder falls back to keyword categorization.
const enrichBatchLimit = enrichment.MaxBatchSize

// Aggregator descriptions that mark internal money movement rather than
// income or expense.
var transferMarkers = []string{
	"pagamento de fatura",
	"valor adicionado na conta",
}

const transferCategory = "transfer - internal"

// SyncResult reports one connection's transaction reconciliation.
type SyncResult struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
}

// Enricher produces clean descriptions and categories for new transactions.
type Enricher interface {
	Enrich(ctx context.Context, userID int64, batch []enrichment.Input) []enrichment.Result
}

// Notifier alerts a user after a sync. Failures are logged, never propagated.
type Notifier interface {
	NotifyNewTransactions(ctx context.Context, userID int64, newCount int) error
}

// TransactionSyncService reconciles aggregator transactions against local
// storage: re-fetched history never overwrites user edits, and only genuinely
// new transactions are enriched and announced.
type TransactionSyncService struct {
	client       pluggy.ClientInterface
	txRepo       transaction.Repository
	enricher     Enricher
	notifier     Notifier
	lookbackDays int
	pageSize     int
	maxPages     int
}

func NewTransactionSyncService(
	client pluggy.ClientInterface,
	txRepo transaction.Repository,
	enricher Enricher,
	notifier Notifier,
	lookbackDays, pageSize, maxPages int,
) *TransactionSyncService {
	return &TransactionSyncService{
		client:       client,
		txRepo:       txRepo,
		enricher:     enricher,
		notifier:     notifier,
		lookbackDays: lookbackDays,
		pageSize:     pageSize,
		maxPages:     maxPages,
	}
}

// SyncTransactions reconciles the lookback window for one connection.
// Login-required errors propagate untouched; other item-level fetch failures
// degrade to per-account fetching before giving up.
func (s *TransactionSyncService) SyncTransactions(ctx context.Context, conn *connection.BankConnection) (*SyncResult, error) {
	from := time.Now().AddDate(0, 0, -s.lookbackDays)

	fetched, err := s.fetchWindow(ctx, conn, from)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return &SyncResult{}, nil
	}

	creditCards := make(map[string]bool, len(conn.Accounts))
	for _, acc := range conn.Accounts {
		if acc.Type == "CREDIT" || acc.Subtype == "CREDIT_CARD" {
			creditCards[acc.ExternalID] = true
		}
	}

	ids := make([]string, 0, len(fetched))
	for _, tx := range fetched {
		ids = append(ids, tx.ID)
	}
	existing, err := s.txRepo.ExistingExternalIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to project existing transactions: %w", err)
	}

	var newTxs, knownTxs []pluggy.Transaction
	for _, tx := range fetched {
		if existing[tx.ID] {
			knownTxs = append(knownTxs, tx)
		} else {
			newTxs = append(newTxs, tx)
		}
	}

	enriched := s.enrichNew(ctx, conn.UserID, newTxs)

	ops := make([]transaction.UpsertParams, 0, len(fetched))
	for _, tx := range newTxs {
		op, err := s.buildUpsert(conn.UserID, tx, creditCards, enriched)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Skipping malformed transaction")
			continue
		}
		ops = append(ops, op)
	}
	for _, tx := range knownTxs {
		// Known rows only refresh amount, status and date in storage, so the
		// enrichment fields here are never written.
		op, err := s.buildUpsert(conn.UserID, tx, creditCards, nil)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Skipping malformed transaction")
			continue
		}
		ops = append(ops, op)
	}

	result, err := s.txRepo.BulkUpsert(ctx, ops)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert transactions: %w", err)
	}

	sync := &SyncResult{New: result.Inserted, Updated: result.Updated}
	log.Info().
		Str("item_id", conn.ItemID).
		Int64("user_id", conn.UserID).
		Int("fetched", len(fetched)).
		Int("new", sync.New).
		Int("updated", sync.Updated).
		Msg("Transactions reconciled")

	if s.notifier != nil && sync.New > 0 {
		// Fire and forget: delivery must not hold up or fail the sync.
		go func(userID int64, newCount int) {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.notifier.NotifyNewTransactions(notifyCtx, userID, newCount); err != nil {
				log.Error().Err(err).Int64("user_id", userID).Msg("Failed to notify about new transactions")
			}
		}(conn.UserID, sync.New)
	}

	return sync, nil
}

// fetchWindow pulls every transaction in the lookback window, item-level
// first and per-account when that fails for anything but a login problem.
func (s *TransactionSyncService) fetchWindow(ctx context.Context, conn *connection.BankConnection, from time.Time) ([]pluggy.Transaction, error) {
	itemTxs, err := s.fetchPages(ctx, pluggy.ListTransactionsParams{
		ItemID:   conn.ItemID,
		From:     from,
		PageSize: s.pageSize,
	})
	if err == nil {
		return itemTxs, nil
	}
	if pluggy.IsLoginRequired(err) {
		return nil, fmt.Errorf("%w: item %s", ErrLoginRequired, conn.ItemID)
	}

	log.Warn().Err(err).Str("item_id", conn.ItemID).Msg("Item-level fetch failed, falling back to per-account")

	var all []pluggy.Transaction
	var lastErr error
	for _, acc := range conn.Accounts {
		accTxs, err := s.fetchPages(ctx, pluggy.ListTransactionsParams{
			AccountID: acc.ExternalID,
			From:      from,
			PageSize:  s.pageSize,
		})
		if err != nil {
			if pluggy.IsLoginRequired(err) {
				return nil, fmt.Errorf("%w: account %s", ErrLoginRequired, acc.ExternalID)
			}
			log.Warn().Err(err).Str("account_id", acc.ExternalID).Msg("Per-account fetch failed, skipping account")
			lastErr = err
			continue
		}
		all = append(all, accTxs...)
	}

	if len(all) == 0 && lastErr != nil {
		return nil, fmt.Errorf("failed to fetch transactions for item %s: %w", conn.ItemID, lastErr)
	}
	return all, nil
}

func (s *TransactionSyncService) fetchPages(ctx context.Context, params pluggy.ListTransactionsParams) ([]pluggy.Transaction, error) {
	var all []pluggy.Transaction

	for page := 1; page <= s.maxPages; page++ {
		params.Page = page
		resp, err := s.client.ListTransactions(ctx, params)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Results...)
		if page >= resp.TotalPages {
			return all, nil
		}
	}

	log.Warn().Int("max_pages", s.maxPages).Msg("Transaction listing truncated at page cap")
	return all, nil
}

// enrichNew runs the newest transactions through the enrichment engine,
// keyed by external ID. Transactions beyond the batch limit are left out and
// fall back to keyword categorization in buildUpsert.
func (s *TransactionSyncService) enrichNew(ctx context.Context, userID int64, newTxs []pluggy.Transaction) map[string]enrichment.Result {
	if s.enricher == nil || len(newTxs) == 0 {
		return nil
	}

	batch := newTxs
	if len(batch) > enrichBatchLimit {
		batch = batch[:enrichBatchLimit]
	}

	inputs := make([]enrichment.Input, 0, len(batch))
	for _, tx := range batch {
		inputs = append(inputs, enrichment.Input{
			ExternalID:  tx.ID,
			Description: tx.Description,
			Amount:      tx.Amount,
			Category:    tx.Category,
		})
	}

	results := s.enricher.Enrich(ctx, userID, inputs)
	byID := make(map[string]enrichment.Result, len(results))
	for _, r := range results {
		byID[r.ExternalID] = r
	}
	return byID
}

func (s *TransactionSyncService) buildUpsert(
	userID int64,
	tx pluggy.Transaction,
	creditCards map[string]bool,
	enriched map[string]enrichment.Result,
) (transaction.UpsertParams, error) {
	date, err := tx.GetDate()
	if err != nil {
		return transaction.UpsertParams{}, fmt.Errorf("failed to parse date: %w", err)
	}
	if date == nil {
		return transaction.UpsertParams{}, fmt.Errorf("transaction date is required")
	}

	description := tx.Description
	tag := ""
	if r, ok := enriched[tx.ID]; ok {
		description = r.CleanDescription
		tag = r.Category
	}
	if tag == "" || tag == transaction.TagOutros {
		// Keyword mapping over both the raw description and the aggregator's
		// own category catches what the model tier missed or never saw.
		if mapped := transaction.MapCategory(tx.Description); mapped != transaction.TagOutros {
			tag = mapped
		} else if tx.Category != nil {
			tag = transaction.MapCategory(*tx.Category)
		} else {
			tag = transaction.TagOutros
		}
	}

	status := transaction.StatusPosted
	if tx.Pending() {
		status = transaction.StatusPending
	}

	return transaction.UpsertParams{
		ExternalID:     tx.ID,
		UserID:         userID,
		AccountID:      tx.AccountID,
		Amount:         math.Abs(tx.Amount),
		Type:           deriveType(tx, creditCards[tx.AccountID]),
		Date:           *date,
		Description:    description,
		DescriptionRaw: tx.Description,
		Tag:            tag,
		Category:       tx.Category,
		Status:         status,
	}, nil
}

// deriveType encodes the raw amount's sign as a transaction type. Credit card
// statements report charges as positive amounts, so the sign convention flips.
func deriveType(tx pluggy.Transaction, isCreditCard bool) string {
	desc := strings.ToLower(tx.Description)
	for _, marker := range transferMarkers {
		if strings.Contains(desc, marker) {
			return transaction.TypeTransfer
		}
	}
	if tx.Category != nil && strings.EqualFold(*tx.Category, transferCategory) {
		return transaction.TypeTransfer
	}

	if isCreditCard {
		if tx.Amount > 0 {
			return transaction.TypeExpense
		}
		return transaction.TypeIncome
	}
	if tx.Amount < 0 {
		return transaction.TypeExpense
	}
	return transaction.TypeIncome
}
