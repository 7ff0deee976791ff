package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"grana/internal/domain/connection"
)

type ConnectionRepository struct {
	db *DB
}

func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Upsert refreshes the connection state after a sync. The account snapshots
// are stored as a JSONB document alongside the item status. Nil snapshots
// mean the account fetch did not happen, so the stored document is kept; an
// empty slice is a real listing and overwrites it.
func (r *ConnectionRepository) Upsert(ctx context.Context, params connection.UpsertParams) (*connection.BankConnection, error) {
	var accounts []byte
	if params.Accounts != nil {
		var err error
		accounts, err = json.Marshal(params.Accounts)
		if err != nil {
			return nil, fmt.Errorf("failed to encode account snapshots: %w", err)
		}
	}

	query := `
		INSERT INTO bank_connections (item_id, user_id, connector_name, accounts, status,
		                              execution_status, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (item_id) DO UPDATE SET
		    connector_name = EXCLUDED.connector_name,
		    accounts = COALESCE(EXCLUDED.accounts, bank_connections.accounts),
		    status = EXCLUDED.status,
		    execution_status = EXCLUDED.execution_status,
		    last_synced_at = COALESCE(EXCLUDED.last_synced_at, bank_connections.last_synced_at),
		    updated_at = CURRENT_TIMESTAMP
		RETURNING item_id, user_id, connector_name, accounts, status, execution_status,
		          last_synced_at, created_at, updated_at
	`

	row := r.db.QueryRowContext(
		ctx, query,
		params.ItemID, params.UserID, params.ConnectorName, accounts,
		params.Status, params.ExecutionStatus, params.LastSyncedAt,
	)

	conn, err := scanConnection(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert bank connection: %w", err)
	}

	return conn, nil
}

func (r *ConnectionRepository) GetByItemID(ctx context.Context, itemID string) (*connection.BankConnection, error) {
	query := `
		SELECT item_id, user_id, connector_name, accounts, status, execution_status,
		       last_synced_at, created_at, updated_at
		FROM bank_connections
		WHERE item_id = $1
	`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank connection: %w", err)
	}

	return conn, nil
}

func (r *ConnectionRepository) ListByUserID(ctx context.Context, userID int64) ([]*connection.BankConnection, error) {
	query := `
		SELECT item_id, user_id, connector_name, accounts, status, execution_status,
		       last_synced_at, created_at, updated_at
		FROM bank_connections
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank connections: %w", err)
	}
	defer rows.Close()

	var connections []*connection.BankConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank connection: %w", err)
		}
		connections = append(connections, conn)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bank connections: %w", err)
	}

	return connections, nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, itemID string, userID int64) error {
	query := `DELETE FROM bank_connections WHERE item_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete bank connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("bank connection not found")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*connection.BankConnection, error) {
	var conn connection.BankConnection
	var accounts []byte
	var lastSyncedAt sql.NullTime

	err := row.Scan(
		&conn.ItemID, &conn.UserID, &conn.ConnectorName, &accounts,
		&conn.Status, &conn.ExecutionStatus, &lastSyncedAt,
		&conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastSyncedAt.Valid {
		conn.LastSyncedAt = &lastSyncedAt.Time
	}
	if len(accounts) > 0 {
		if err := json.Unmarshal(accounts, &conn.Accounts); err != nil {
			return nil, fmt.Errorf("failed to decode account snapshots: %w", err)
		}
	}

	return &conn, nil
}
