package main

import (
	"net/http"

	httphandlers "grana/internal/interfaces/http"
	"grana/internal/shared/config"
	"grana/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with
// middleware applied.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check (unauthenticated)
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// API routes require the gateway-set user header
	api := http.NewServeMux()
	api.HandleFunc("/api/sync/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/sync/" {
			deps.SyncHandler.HandleSync(w, r)
			return
		}
		deps.SyncHandler.HandleSyncItem(w, r)
	})
	api.HandleFunc("/api/connections/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/connections/" {
			deps.ConnectionHandler.HandleListConnections(w, r)
			return
		}
		deps.ConnectionHandler.HandleConnectionByID(w, r)
	})
	api.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/transactions/" {
			deps.TransactionHandler.HandleListTransactions(w, r)
			return
		}
		deps.TransactionHandler.HandleTransactionByID(w, r)
	})
	api.HandleFunc("/api/tags/", httphandlers.HandleTags)
	api.HandleFunc("/api/notifications/register-device/", deps.NotificationHandler.HandleRegisterDevice)
	api.HandleFunc("/api/notifications/preferences/", deps.NotificationHandler.HandlePreferences)
	api.HandleFunc("/api/notifications/open/", deps.NotificationHandler.HandleOpen)
	api.HandleFunc("/api/notifications/", deps.NotificationHandler.HandleNotifications)

	mux.Handle("/api/", middleware.UserContext(api))

	// Global middleware
	handler := middleware.Logging(middleware.CORS(cfg.Server.AllowedHosts)(mux))
	handler = middleware.Tracing(handler)
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(handler)
	}
	if cfg.Server.ForceHTTPS {
		handler = middleware.RequireHTTPS(middleware.HSTS(handler))
	}

	return handler
}
