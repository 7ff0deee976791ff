package transaction

import (
	"time"
)

// Transaction type: the sign of the original aggregator amount is fully
// encoded here; the stored amount is always non-negative.
const (
	TypeIncome   = "income"
	TypeExpense  = "expense"
	TypeTransfer = "transfer"
)

// Settlement status mirrored from the aggregator.
const (
	StatusPending = "PENDING"
	StatusPosted  = "POSTED"
)

type Transaction struct {
	ExternalID     string    `json:"externalId"` // aggregator's transaction id, unique
	UserID         int64     `json:"userId"`
	AccountID      string    `json:"accountId"`
	Amount         float64   `json:"amount"` // always >= 0
	Type           string    `json:"type"`   // income, expense or transfer
	Date           time.Time `json:"date"`
	Description    string    `json:"description"`    // cleaned
	DescriptionRaw string    `json:"descriptionRaw"` // as received from the aggregator
	Tag            string    `json:"tag"`            // internal category
	Category       *string   `json:"category,omitempty"` // aggregator's raw category
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UpsertParams carries one reconciled transaction into the bulk write.
// Description, DescriptionRaw and Tag are applied on insert only; re-syncs
// refresh amount, status and date without touching user-editable fields.
type UpsertParams struct {
	ExternalID     string
	UserID         int64
	AccountID      string
	Amount         float64
	Type           string
	Date           time.Time
	Description    string
	DescriptionRaw string
	Tag            string
	Category       *string
	Status         string
}

// UpdateUserEditParams carries a manual edit to description and/or tag.
type UpdateUserEditParams struct {
	Description *string
	Tag         *string
}

// Memory is one entry of a user's categorization history, used by the
// enrichment engine to resolve repeat merchants without a model call.
type Memory struct {
	Description string
	Tag         string
}
