// Package connection models a user's bank connection (an aggregator "item")
// and its account snapshots.
package connection

import (
	"time"
)

// AccountSnapshot is the last known state of one account of a connection.
// Stored as a JSON document array on the connection record.
type AccountSnapshot struct {
	ExternalID   string  `json:"externalId"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Subtype      string  `json:"subtype"`
	Number       string  `json:"number"`
	Balance      float64 `json:"balance"`
	CurrencyCode string  `json:"currencyCode"`
}

// BankConnection mirrors the aggregator item plus local bookkeeping.
// Mutated on every sync; deleted when the user disconnects the bank.
type BankConnection struct {
	ItemID          string            `json:"itemId"`
	UserID          int64             `json:"userId"`
	ConnectorName   string            `json:"connectorName"`
	Accounts        []AccountSnapshot `json:"accounts"`
	Status          string            `json:"status"`
	ExecutionStatus string            `json:"executionStatus"`
	LastSyncedAt    *time.Time        `json:"lastSyncedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// UpsertParams carries a refreshed connection state into storage. Nil
// Accounts keeps the stored snapshots; an empty slice overwrites them.
type UpsertParams struct {
	ItemID          string
	UserID          int64
	ConnectorName   string
	Accounts        []AccountSnapshot
	Status          string
	ExecutionStatus string
	LastSyncedAt    *time.Time
}
