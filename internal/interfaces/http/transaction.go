package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"grana/internal/domain/transaction"
	"grana/internal/shared/middleware"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 200
)

type TransactionHandler struct {
	transactionRepo transaction.Repository
}

func NewTransactionHandler(transactionRepo transaction.Repository) *TransactionHandler {
	return &TransactionHandler{transactionRepo: transactionRepo}
}

type UpdateTransactionRequest struct {
	Description *string `json:"description"`
	Tag         *string `json:"tag"`
}

// HandleListTransactions handles GET /api/transactions/
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxTransactionLimit {
		limit = defaultTransactionLimit
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	transactions, err := h.transactionRepo.ListByUserID(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to list transactions")
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	if transactions == nil {
		transactions = []*transaction.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// HandleTransactionByID handles GET, PATCH and DELETE on /api/transactions/{id}
func (h *TransactionHandler) HandleTransactionByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	externalID := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	externalID = strings.TrimSuffix(externalID, "/")
	if externalID == "" {
		http.Error(w, "Transaction ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTransaction(w, r, userID, externalID)
	case http.MethodPatch:
		h.updateTransaction(w, r, userID, externalID)
	case http.MethodDelete:
		h.deleteTransaction(w, r, userID, externalID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TransactionHandler) getTransaction(w http.ResponseWriter, r *http.Request, userID int64, externalID string) {
	tx, err := h.transactionRepo.GetByExternalID(r.Context(), externalID)
	if err != nil {
		log.Error().Err(err).Str("external_id", externalID).Msg("Failed to get transaction")
		http.Error(w, "Failed to get transaction", http.StatusInternalServerError)
		return
	}
	if tx == nil || tx.UserID != userID {
		http.Error(w, "Transaction not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}

func (h *TransactionHandler) updateTransaction(w http.ResponseWriter, r *http.Request, userID int64, externalID string) {
	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Description == nil && req.Tag == nil {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}
	if req.Tag != nil && !transaction.IsValidTag(*req.Tag) {
		http.Error(w, "Invalid tag", http.StatusBadRequest)
		return
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		http.Error(w, "Description cannot be empty", http.StatusBadRequest)
		return
	}

	tx, err := h.transactionRepo.UpdateUserEdit(r.Context(), externalID, userID, transaction.UpdateUserEditParams{
		Description: req.Description,
		Tag:         req.Tag,
	})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Transaction not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("external_id", externalID).Msg("Failed to update transaction")
		http.Error(w, "Failed to update transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}

func (h *TransactionHandler) deleteTransaction(w http.ResponseWriter, r *http.Request, userID int64, externalID string) {
	if err := h.transactionRepo.Delete(r.Context(), externalID, userID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Transaction not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("external_id", externalID).Msg("Failed to delete transaction")
		http.Error(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleTags handles GET /api/tags/ returning the closed category set.
func HandleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transaction.Tags)
}
