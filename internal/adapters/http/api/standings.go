package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/rapport/internal/adapters/repository"
)

// StandingsDependencies defines the interface for standings queries.
type StandingsDependencies interface {
	TopStandings(ctx context.Context, n int) ([]repository.Entry, error)
	Standing(ctx context.Context, subjectID string) (repository.Entry, error)
}

// StandingsHandler serves the reputation standings.
type StandingsHandler struct {
	deps     StandingsDependencies
	maxLimit int
}

// NewStandingsHandler creates a new standings handler.
func NewStandingsHandler(deps StandingsDependencies, maxLimit int) *StandingsHandler {
	return &StandingsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleTop handles GET /standings?limit=N requests.
func (h *StandingsHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_standings"
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		writeError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be a positive integer")))
		return
	}
	if n > h.maxLimit {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "limit_exceeded",
			Message: fmt.Sprintf("limit must not exceed %d", h.maxLimit),
		})
		return
	}
	entries, err := h.deps.TopStandings(r.Context(), n)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleStanding handles GET /standings/{subject} requests.
func (h *StandingsHandler) HandleStanding(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_standing"
	subject := strings.TrimSpace(r.PathValue("subject"))
	if subject == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}
	entry, err := h.deps.Standing(r.Context(), subject)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
