// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fivemin/harmony/internal/auth"
)

// AuthHandler handles account requests.
type AuthHandler struct {
	accounts Accounts
	score    Score
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accounts Accounts, score Score) *AuthHandler {
	return &AuthHandler{accounts: accounts, score: score}
}

// credentialsRequest mirrors the body of register and login calls.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (c credentialsRequest) validate() error {
	switch {
	case strings.TrimSpace(c.Username) == "":
		return errors.New("missing username")
	case c.Password == "":
		return errors.New("missing password")
	}
	return nil
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type meResponse struct {
	Username            string `json:"username"`
	Email               string `json:"email"`
	TimeUntilNextAction int64  `json:"time_until_next_action"`
}

type hasActionResponse struct {
	HasAction bool `json:"has_action"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

// HandleRegister handles POST /auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	user, token, err := h.accounts.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username_taken", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, Username: user.Username, Email: user.Email})
}

// HandleLogin handles POST /auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	user, token, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Username: user.Username, Email: user.Email})
}

// HandleMe handles GET /auth/me requests.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	const op = "api.me"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	user, err := h.accounts.GetUser(r.Context(), identity)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", WrapKind(op, ErrUnauthorized, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	_, remaining, err := h.score.HasAction(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Username:            user.Username,
		Email:               user.Email,
		TimeUntilNextAction: remaining,
	})
}

// HandleHasAction handles GET /auth/has_action requests.
func (h *AuthHandler) HandleHasAction(w http.ResponseWriter, r *http.Request) {
	const op = "api.has_action"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	available, _, err := h.score.HasAction(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, hasActionResponse{HasAction: available})
}

// HandleListUsers handles GET /users requests.
func (h *AuthHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_users"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	users, err := h.accounts.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	out := make([]userResponse, len(users))
	for i, u := range users {
		out[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, out)
}
