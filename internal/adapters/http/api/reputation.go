package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/rapport/internal/domain/model"
)

// ReputationDependencies defines the interface for reputation lookups.
type ReputationDependencies interface {
	ComputeReputation(ctx context.Context, subjectID string) model.ReputationSnapshot
	ComputeReputations(ctx context.Context, ids []string) []model.ReputationSnapshot
}

type batchRequest struct {
	SubjectIDs []string `json:"subject_ids" validate:"required,min=1,max=500,dive,required"`
}

// ReputationHandler serves reputation snapshots.
type ReputationHandler struct {
	deps ReputationDependencies
}

// NewReputationHandler creates a new reputation handler.
func NewReputationHandler(deps ReputationDependencies) *ReputationHandler {
	return &ReputationHandler{deps: deps}
}

// HandleGetReputation handles GET /reputation/{subject}. An unreadable
// ledger is not an error: the snapshot comes back with available=false.
func (h *ReputationHandler) HandleGetReputation(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_reputation"
	subject := strings.TrimSpace(r.PathValue("subject"))
	if subject == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ComputeReputation(r.Context(), subject))
}

// HandleBatch handles POST /reputation/batch.
func (h *ReputationHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.batch_reputation"
	var req batchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := check(&req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ComputeReputations(r.Context(), req.SubjectIDs))
}
