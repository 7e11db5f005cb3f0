package httpapi

import (
	"encoding/json"
	"expvar"
	"net/http"

	"portal/internal/auth"
	"portal/internal/hub"
	"portal/internal/store"
)

type Handler struct {
	store    store.Store
	sessions *auth.Registry
	tokens   *auth.Tokens
	hub      *hub.Hub
	limiter  *RateLimiter
}

type Options struct {
	Store    store.Store
	Sessions *auth.Registry
	Tokens   *auth.Tokens
	Hub      *hub.Hub
	// Limiter throttles login attempts. Nil disables login throttling.
	Limiter *RateLimiter
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(opts Options) *Handler {
	h := opts.Hub
	if h == nil {
		h = hub.New()
	}
	return &Handler{
		store:    opts.Store,
		sessions: opts.Sessions,
		tokens:   opts.Tokens,
		hub:      h,
		limiter:  opts.Limiter,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/healthz", h.handleHealth)

	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.Handle("/api/auth/logout", h.requireSession(h.handleLogout))
	mux.Handle("/api/auth/me", h.requireSession(h.handleMe))

	mux.Handle("/api/portal/projects", h.requireSession(h.handleDashboard))
	mux.Handle("/api/portal/projects/", h.requireSession(h.handleProjectOpen))
	mux.Handle("/api/portal/events/", h.eventsHandler())

	mux.Handle("/api/admin/projects", h.requireSession(h.handleAdminProjects))
	mux.Handle("/api/admin/projects/", h.requireSession(h.handleAdminProject))
	mux.Handle("/api/admin/users", h.requireSession(h.handleAdminUsers))
	mux.Handle("/api/admin/users/", h.requireSession(h.handleAdminUser))
	mux.Handle("/api/admin/stats", h.requireSession(h.handleStats))
	mux.Handle("/api/admin/audit", h.requireSession(h.handleAudit))
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
