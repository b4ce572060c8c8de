// Package server exposes the liveness HTTP surface: a root liveness route,
// a readiness check backed by the database, and Prometheus metrics.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idlewatch/internal/database"
	"idlewatch/internal/telemetry"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db   *database.DB
	repo *database.Repository
}

// NewMux returns the HTTP handler with all routes.
func NewMux(db *database.DB, repo *database.Repository) http.Handler {
	h := &Handlers{db: db, repo: repo}

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleRoot)
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// handleRoot is the liveness route
func (h *Handlers) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Bot is alive!"))
}

// handleHealthz reports readiness: the database must be reachable
func (h *Handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.db.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"status": "unavailable"})
		return
	}

	var tracked int64
	if n, err := h.repo.CountTracked(); err == nil {
		tracked = n
		telemetry.SetTrackedUsers(n)
	}

	json.NewEncoder(w).Encode(map[string]any{
		"status":        "ok",
		"tracked_users": tracked,
	})
}
