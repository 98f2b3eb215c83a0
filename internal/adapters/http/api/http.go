// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fivemin/harmony/internal/auth"
	"github.com/fivemin/harmony/internal/domain/gate"
	"github.com/fivemin/harmony/internal/domain/notes"
)

// Score bundles the score operations HTTP handlers need. Using an
// interface bundle keeps the handler layer loosely coupled to
// implementations in other packages.
type Score interface {
	EditPitch(ctx context.Context, identity, noteID, pitch string) (notes.Note, error)
	EditDuration(ctx context.Context, identity, noteID string, duration int) (notes.Note, error)
	MergeNotes(ctx context.Context, identity string, noteIDs []string) (notes.Note, error)
	Measures(ctx context.Context) []notes.MeasureSummary
	MeasureNotes(ctx context.Context, index int) ([]notes.Note, error)
	HasAction(ctx context.Context, identity string) (bool, int64, error)
}

// Accounts bundles the account operations HTTP handlers need.
type Accounts interface {
	Register(ctx context.Context, username, password, email string) (*auth.User, string, error)
	Login(ctx context.Context, username, password string) (*auth.User, string, error)
	GetUser(ctx context.Context, id string) (*auth.User, error)
	ListUsers(ctx context.Context) ([]*auth.User, error)
	Verifier() auth.TokenVerifier
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	authHandler   *AuthHandler
	scoreHandler  *ScoreHandler
	editsHandler  *EditsHandler
	verifier      auth.TokenVerifier
}

// NewServer creates a new API server with all handlers.
func NewServer(score Score, accounts Accounts, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		authHandler:   NewAuthHandler(accounts, score),
		scoreHandler:  NewScoreHandler(score),
		editsHandler:  NewEditsHandler(score),
		verifier:      accounts.Verifier(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return AuthMiddleware(next, s.verifier)
	}

	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/auth/register", MetricsMiddleware(s.authHandler.HandleRegister, "auth_register"))
	mux.HandleFunc("/auth/login", MetricsMiddleware(s.authHandler.HandleLogin, "auth_login"))
	mux.HandleFunc("/auth/me", MetricsMiddleware(authed(s.authHandler.HandleMe), "auth_me"))
	mux.HandleFunc("/auth/has_action", MetricsMiddleware(authed(s.authHandler.HandleHasAction), "auth_has_action"))
	mux.HandleFunc("/users", MetricsMiddleware(authed(s.authHandler.HandleListUsers), "users"))
	mux.HandleFunc("/measures", MetricsMiddleware(s.scoreHandler.HandleListMeasures, "measures"))
	mux.HandleFunc("/measures/", MetricsMiddleware(s.scoreHandler.HandleMeasureNotes, "measure_notes"))
	mux.HandleFunc("/notes/pitch", MetricsMiddleware(authed(s.editsHandler.HandleEditPitch), "notes_pitch"))
	mux.HandleFunc("/notes/duration", MetricsMiddleware(authed(s.editsHandler.HandleEditDuration), "notes_duration"))
	mux.HandleFunc("/notes/combine", MetricsMiddleware(authed(s.editsHandler.HandleCombine), "notes_combine"))
}

type errorResponse struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds *int64 `json:"retry_after_seconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeCooldown reports a rejected edit with the whole seconds left
// until the caller may act again.
func writeCooldown(w http.ResponseWriter, remaining int64) {
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Code:              "cooldown",
		Message:           "action not available yet",
		RetryAfterSeconds: &remaining,
	})
}

// writeDomainError translates store and gate errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notes.ErrNoteNotFound), errors.Is(err, notes.ErrMeasureNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, notes.ErrInvalidPitch),
		errors.Is(err, notes.ErrInvalidDuration),
		errors.Is(err, notes.ErrTooFewNotes),
		errors.Is(err, notes.ErrCrossMeasure),
		errors.Is(err, notes.ErrPitchMismatch):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, gate.ErrNotAvailable):
		// Callers with the remaining time use writeCooldown instead.
		writeCooldown(w, 0)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
