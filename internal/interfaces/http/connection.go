package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"grana/internal/domain/connection"
	"grana/internal/infrastructure/pluggy"
	"grana/internal/shared/middleware"
)

type ConnectionHandler struct {
	connRepo connection.Repository
	client   pluggy.ClientInterface
}

func NewConnectionHandler(connRepo connection.Repository, client pluggy.ClientInterface) *ConnectionHandler {
	return &ConnectionHandler{connRepo: connRepo, client: client}
}

// HandleListConnections handles GET /api/connections/
func (h *ConnectionHandler) HandleListConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	connections, err := h.connRepo.ListByUserID(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to list connections")
		http.Error(w, "Failed to list connections", http.StatusInternalServerError)
		return
	}

	if connections == nil {
		connections = []*connection.BankConnection{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(connections)
}

// HandleConnectionByID handles GET and DELETE on /api/connections/{itemId}
func (h *ConnectionHandler) HandleConnectionByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID := strings.TrimPrefix(r.URL.Path, "/api/connections/")
	itemID = strings.TrimSuffix(itemID, "/")
	if itemID == "" {
		http.Error(w, "Item ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getConnection(w, r, userID, itemID)
	case http.MethodDelete:
		h.deleteConnection(w, r, userID, itemID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ConnectionHandler) getConnection(w http.ResponseWriter, r *http.Request, userID int64, itemID string) {
	conn, err := h.connRepo.GetByItemID(r.Context(), itemID)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("Failed to get connection")
		http.Error(w, "Failed to get connection", http.StatusInternalServerError)
		return
	}
	if conn == nil || conn.UserID != userID {
		http.Error(w, "Connection not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conn)
}

// deleteConnection removes the item at the aggregator first, then locally.
// A missing remote item is fine; the local record is deleted either way.
func (h *ConnectionHandler) deleteConnection(w http.ResponseWriter, r *http.Request, userID int64, itemID string) {
	conn, err := h.connRepo.GetByItemID(r.Context(), itemID)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("Failed to get connection")
		http.Error(w, "Failed to delete connection", http.StatusInternalServerError)
		return
	}
	if conn == nil || conn.UserID != userID {
		http.Error(w, "Connection not found", http.StatusNotFound)
		return
	}

	if err := h.client.DeleteItem(r.Context(), itemID); err != nil && !pluggy.IsItemNotFound(err) {
		log.Error().Err(err).Str("item_id", itemID).Msg("Failed to delete aggregator item")
		http.Error(w, "Failed to delete connection", http.StatusInternalServerError)
		return
	}

	if err := h.connRepo.Delete(r.Context(), itemID, userID); err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("Failed to delete connection record")
		http.Error(w, "Failed to delete connection", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
