package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"grana/internal/domain/transaction"
)

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ExistingExternalIDs returns which of the given IDs already have a row.
func (r *TransactionRepository) ExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	query := `SELECT external_id FROM transactions WHERE external_id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query existing transaction ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan transaction id: %w", err)
		}
		existing[id] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction ids: %w", err)
	}

	return existing, nil
}

// BulkUpsert writes all operations in one database transaction. Conflicting
// rows only refresh amount, status and date; description, tag and the other
// insert-time fields are preserved so user edits survive re-syncs.
// (xmax = 0) distinguishes freshly inserted rows from updated ones.
func (r *TransactionRepository) BulkUpsert(ctx context.Context, ops []transaction.UpsertParams) (*transaction.BulkResult, error) {
	result := &transaction.BulkResult{}
	if len(ops) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO transactions (external_id, user_id, account_id, amount, type, transaction_date,
		                          description, description_raw, tag, category, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_id) DO UPDATE SET
		    amount = EXCLUDED.amount,
		    status = EXCLUDED.status,
		    transaction_date = EXCLUDED.transaction_date,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING (xmax = 0)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, op := range ops {
		var inserted bool
		err := stmt.QueryRowContext(
			ctx,
			op.ExternalID, op.UserID, op.AccountID, op.Amount, op.Type, op.Date,
			op.Description, op.DescriptionRaw, op.Tag, op.Category, op.Status,
		).Scan(&inserted)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert transaction %s: %w", op.ExternalID, err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bulk upsert: %w", err)
	}

	return result, nil
}

// RecentCategorized returns the user's latest non-default categorizations,
// newest first.
func (r *TransactionRepository) RecentCategorized(ctx context.Context, userID int64, limit int) ([]transaction.Memory, error) {
	query := `
		SELECT description, tag
		FROM transactions
		WHERE user_id = $1 AND tag <> $2
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, transaction.TagOutros, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query categorization history: %w", err)
	}
	defer rows.Close()

	var history []transaction.Memory
	for rows.Next() {
		var m transaction.Memory
		if err := rows.Scan(&m.Description, &m.Tag); err != nil {
			return nil, fmt.Errorf("failed to scan categorization history: %w", err)
		}
		history = append(history, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categorization history: %w", err)
	}

	return history, nil
}

func (r *TransactionRepository) GetByExternalID(ctx context.Context, externalID string) (*transaction.Transaction, error) {
	query := `
		SELECT external_id, user_id, account_id, amount, type, transaction_date,
		       description, description_raw, tag, category, status, created_at, updated_at
		FROM transactions
		WHERE external_id = $1
	`

	var t transaction.Transaction
	err := r.db.QueryRowContext(ctx, query, externalID).Scan(
		&t.ExternalID, &t.UserID, &t.AccountID, &t.Amount, &t.Type, &t.Date,
		&t.Description, &t.DescriptionRaw, &t.Tag, &t.Category, &t.Status,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &t, nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT external_id, user_id, account_id, amount, type, transaction_date,
		       description, description_raw, tag, category, status, created_at, updated_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		var t transaction.Transaction
		err := rows.Scan(
			&t.ExternalID, &t.UserID, &t.AccountID, &t.Amount, &t.Type, &t.Date,
			&t.Description, &t.DescriptionRaw, &t.Tag, &t.Category, &t.Status,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// UpdateUserEdit applies a manual description/tag edit. Edited fields stay
// untouched by later syncs because re-syncs never rewrite them.
func (r *TransactionRepository) UpdateUserEdit(ctx context.Context, externalID string, userID int64, params transaction.UpdateUserEditParams) (*transaction.Transaction, error) {
	query := `
		UPDATE transactions
		SET description = COALESCE($1, description),
		    tag = COALESCE($2, tag),
		    updated_at = CURRENT_TIMESTAMP
		WHERE external_id = $3 AND user_id = $4
		RETURNING external_id, user_id, account_id, amount, type, transaction_date,
		          description, description_raw, tag, category, status, created_at, updated_at
	`

	var t transaction.Transaction
	err := r.db.QueryRowContext(ctx, query, params.Description, params.Tag, externalID, userID).Scan(
		&t.ExternalID, &t.UserID, &t.AccountID, &t.Amount, &t.Type, &t.Date,
		&t.Description, &t.DescriptionRaw, &t.Tag, &t.Category, &t.Status,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	return &t, nil
}

func (r *TransactionRepository) Delete(ctx context.Context, externalID string, userID int64) error {
	query := `DELETE FROM transactions WHERE external_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, externalID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transaction not found")
	}

	return nil
}
