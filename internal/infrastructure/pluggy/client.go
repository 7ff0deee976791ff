// Package pluggy is a thin client for the Pluggy Open Finance aggregator API.
package pluggy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultTimeout = 180 * time.Second // large transaction fetches can be slow

	itemsPath        = "/items"
	accountsPath     = "/accounts"
	transactionsPath = "/transactions"
)

// Client handles communication with the aggregator API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a new aggregator API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Item represents a bank connection on the aggregator side.
type Item struct {
	ID              string  `json:"id"`
	ConnectorName   string  `json:"connectorName"`
	Status          string  `json:"status"`
	ExecutionStatus string  `json:"executionStatus"`
	StatusDetail    *string `json:"statusDetail"`
	LastUpdatedAt   string  `json:"lastUpdatedAt"`
}

// Item lifecycle states reported by the aggregator.
const (
	ItemStatusUpdated          = "UPDATED"
	ItemStatusUpdating         = "UPDATING"
	ItemStatusOutdated         = "OUTDATED"
	ItemStatusLoginError       = "LOGIN_ERROR"
	ItemStatusWaitingUserInput = "WAITING_USER_INPUT"
)

// NeedsUserAction reports whether the connection is stuck waiting for the
// user (expired credentials, MFA prompt) rather than a transient failure.
func (i *Item) NeedsUserAction() bool {
	return i.Status == ItemStatusLoginError || i.Status == ItemStatusWaitingUserInput
}

// Account represents a bank account belonging to an item.
type Account struct {
	ID           string  `json:"id"`
	ItemID       string  `json:"itemId"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`    // BANK or CREDIT
	Subtype      string  `json:"subtype"` // e.g. CHECKING_ACCOUNT, CREDIT_CARD
	Number       string  `json:"number"`
	Balance      float64 `json:"balance"`
	CurrencyCode string  `json:"currencyCode"`
}

// IsCreditCard reports whether the account follows the credit-card statement
// sign convention (positive amounts are charges).
func (a *Account) IsCreditCard() bool {
	return a.Type == "CREDIT" || a.Subtype == "CREDIT_CARD"
}

// Transaction represents a transaction from the aggregator API.
type Transaction struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"accountId"`
	Description string  `json:"description"`
	Category    *string `json:"category"`
	Amount      float64 `json:"amount"` // signed; convention depends on account type
	DateString  string  `json:"date"`   // ISO 8601
	Status      string  `json:"status"` // PENDING or POSTED
}

// GetDate parses and returns the transaction date.
func (t *Transaction) GetDate() (*time.Time, error) {
	if t.DateString == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, t.DateString)
	if err != nil {
		parsed, err = time.Parse("2006-01-02 15:04:05", t.DateString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date '%s': %w", t.DateString, err)
		}
	}
	return &parsed, nil
}

// Pending reports whether the aggregator still marks this transaction as pending.
func (t *Transaction) Pending() bool {
	return t.Status == "PENDING"
}

type accountListResponse struct {
	Total   int       `json:"total"`
	Results []Account `json:"results"`
}

// TransactionPage is one page of a paginated transaction listing.
type TransactionPage struct {
	Total      int           `json:"total"`
	TotalPages int           `json:"totalPages"`
	Page       int           `json:"page"`
	Results    []Transaction `json:"results"`
}

// ListTransactionsParams bounds a transaction listing. Exactly one of ItemID
// or AccountID should be set.
type ListTransactionsParams struct {
	ItemID    string
	AccountID string
	From      time.Time
	To        time.Time
	Page      int
	PageSize  int
}

// GetItem fetches the current status of a bank connection.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	var item Item
	if err := c.get(ctx, itemsPath+"/"+url.PathEscape(itemID), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes a bank connection on the aggregator side.
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, itemsPath+"/"+url.PathEscape(itemID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// ListAccounts fetches all accounts for a bank connection.
func (c *Client) ListAccounts(ctx context.Context, itemID string) ([]Account, error) {
	query := url.Values{"itemId": {itemID}}
	var resp accountListResponse
	if err := c.get(ctx, accountsPath, query, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// ListTransactions fetches one page of transactions.
func (c *Client) ListTransactions(ctx context.Context, params ListTransactionsParams) (*TransactionPage, error) {
	query := url.Values{}
	if params.ItemID != "" {
		query.Set("itemId", params.ItemID)
	}
	if params.AccountID != "" {
		query.Set("accountId", params.AccountID)
	}
	if !params.From.IsZero() {
		query.Set("from", params.From.Format("2006-01-02"))
	}
	if !params.To.IsZero() {
		query.Set("to", params.To.Format("2006-01-02"))
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(params.PageSize))
	}

	var page TransactionPage
	if err := c.get(ctx, transactionsPath, query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(req.URL.Path, resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
