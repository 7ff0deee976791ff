package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"grana/internal/domain/openfinance"
	"grana/internal/shared/middleware"
)

// Syncer runs account and transaction synchronization for a user.
type Syncer interface {
	SyncItem(ctx context.Context, userID int64, itemID string) (*openfinance.SyncResult, error)
	SyncUser(ctx context.Context, userID int64) (*openfinance.UserSyncResult, error)
}

type SyncHandler struct {
	syncService Syncer
}

func NewSyncHandler(syncService Syncer) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

type SyncResponse struct {
	New     int      `json:"new"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors,omitempty"`
}

// HandleSync handles POST /api/sync/ (all connections of the current user).
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.syncService.SyncUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Sync failed")
		http.Error(w, "Sync failed", http.StatusInternalServerError)
		return
	}

	resp := SyncResponse{New: result.New, Updated: result.Updated, Errors: result.Errors}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleSyncItem handles POST /api/sync/{itemId} (a single connection).
func (h *SyncHandler) HandleSyncItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID := strings.TrimPrefix(r.URL.Path, "/api/sync/")
	itemID = strings.TrimSuffix(itemID, "/")
	if itemID == "" {
		http.Error(w, "Item ID is required", http.StatusBadRequest)
		return
	}

	result, err := h.syncService.SyncItem(r.Context(), userID, itemID)
	if err != nil {
		switch {
		case errors.Is(err, openfinance.ErrLoginRequired):
			http.Error(w, "Bank connection requires user action, reconnect your bank", http.StatusConflict)
		case errors.Is(err, openfinance.ErrItemNotFound):
			http.Error(w, "Bank connection no longer exists", http.StatusGone)
		default:
			log.Error().Err(err).Int64("user_id", userID).Str("item_id", itemID).Msg("Item sync failed")
			http.Error(w, "Sync failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SyncResponse{New: result.New, Updated: result.Updated})
}
