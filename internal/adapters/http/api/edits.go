// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fivemin/harmony/internal/auth"
	"github.com/fivemin/harmony/internal/domain/gate"
	"github.com/fivemin/harmony/internal/domain/notes"
)

// EditsHandler handles gated mutations of the shared score.
type EditsHandler struct {
	score Score
}

// NewEditsHandler creates a new edits handler.
func NewEditsHandler(score Score) *EditsHandler {
	return &EditsHandler{score: score}
}

// pitchRequest mirrors the body of PATCH /notes/pitch.
type pitchRequest struct {
	NoteID string `json:"note_id"`
	Pitch  string `json:"pitch"`
}

// durationRequest mirrors the body of PATCH /notes/duration.
type durationRequest struct {
	NoteID   string `json:"note_id"`
	Duration int    `json:"duration"`
}

// combineRequest mirrors the body of POST /notes/combine.
type combineRequest struct {
	NoteIDList []string `json:"note_id_list"`
}

// HandleEditPitch handles PATCH /notes/pitch requests.
func (h *EditsHandler) HandleEditPitch(w http.ResponseWriter, r *http.Request) {
	const op = "api.edit_pitch"
	if r.Method != http.MethodPatch {
		http.NotFound(w, r)
		return
	}
	var req pitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.NoteID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	h.respond(w, r, op, func(identity string) (notes.Note, error) {
		return h.score.EditPitch(r.Context(), identity, req.NoteID, req.Pitch)
	})
}

// HandleEditDuration handles PATCH /notes/duration requests.
func (h *EditsHandler) HandleEditDuration(w http.ResponseWriter, r *http.Request) {
	const op = "api.edit_duration"
	if r.Method != http.MethodPatch {
		http.NotFound(w, r)
		return
	}
	var req durationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.NoteID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	h.respond(w, r, op, func(identity string) (notes.Note, error) {
		return h.score.EditDuration(r.Context(), identity, req.NoteID, req.Duration)
	})
}

// HandleCombine handles POST /notes/combine requests.
func (h *EditsHandler) HandleCombine(w http.ResponseWriter, r *http.Request) {
	const op = "api.combine"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req combineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	h.respond(w, r, op, func(identity string) (notes.Note, error) {
		return h.score.MergeNotes(r.Context(), identity, req.NoteIDList)
	})
}

// respond runs a gated edit for the authenticated identity and writes
// the resulting note, a cooldown rejection, or a domain error.
func (h *EditsHandler) respond(w http.ResponseWriter, r *http.Request, op string, edit func(identity string) (notes.Note, error)) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	n, err := edit(identity)
	if err != nil {
		if errors.Is(err, gate.ErrNotAvailable) {
			_, remaining, herr := h.score.HasAction(r.Context(), identity)
			if herr != nil {
				remaining = 0
			}
			writeCooldown(w, remaining)
			return
		}
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, n)
}
