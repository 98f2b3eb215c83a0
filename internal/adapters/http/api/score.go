// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
	"strings"
)

// ScoreHandler handles read requests against the shared score.
type ScoreHandler struct {
	score Score
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(score Score) *ScoreHandler {
	return &ScoreHandler{score: score}
}

// HandleListMeasures handles GET /measures requests.
func (h *ScoreHandler) HandleListMeasures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.score.Measures(r.Context()))
}

// HandleMeasureNotes handles GET /measures/{index}/notes requests.
func (h *ScoreHandler) HandleMeasureNotes(w http.ResponseWriter, r *http.Request) {
	const op = "api.measure_notes"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameters after /measures/
	path := strings.TrimPrefix(r.URL.Path, "/measures/")
	indexStr, rest, ok := strings.Cut(path, "/")
	if !ok || rest != "notes" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	index, err := strconv.Atoi(indexStr)
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	ns, err := h.score.MeasureNotes(r.Context(), index)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ns)
}
