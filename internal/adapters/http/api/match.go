package api

import (
	"context"
	"net/http"

	"github.com/okian/rapport/internal/adapters/repository"
	service "github.com/okian/rapport/internal/app"
	"github.com/okian/rapport/internal/domain/model"
)

// MatchDependencies defines the interface for matching and ranking.
type MatchDependencies interface {
	Match(ctx context.Context, req service.MatchRequest) (service.MatchOutcome, error)
	RankOpportunities(ctx context.Context, req service.RankRequest) ([]model.RankedItem, error)
}

type matchRequest struct {
	RequesterID string                       `json:"requester_id" validate:"required_without=Requester"`
	Requester   *model.RequesterProfile      `json:"requester,omitempty"`
	Criteria    repository.CandidateCriteria `json:"criteria"`
	Profile     string                       `json:"profile,omitempty"`
	Weights     map[model.Factor]float64     `json:"weights,omitempty" validate:"omitempty,dive,gte=0"`
	IncludeAll  bool                         `json:"include_all,omitempty"`
}

type rankRequest struct {
	RequesterID string                         `json:"requester_id" validate:"required_without=Requester"`
	Requester   *model.RequesterProfile        `json:"requester,omitempty"`
	Criteria    repository.OpportunityCriteria `json:"criteria"`
	Limit       int                            `json:"limit,omitempty" validate:"gte=0"`
}

type rankResponse struct {
	RequesterID string             `json:"requester_id,omitempty"`
	Items       []model.RankedItem `json:"items"`
}

// MatchHandler serves compatibility matching and opportunity ranking.
type MatchHandler struct {
	deps MatchDependencies
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps MatchDependencies) *MatchHandler {
	return &MatchHandler{deps: deps}
}

// HandleMatch handles POST /match requests.
func (h *MatchHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.match"
	var req matchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := check(&req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := h.deps.Match(r.Context(), service.MatchRequest{
		RequesterID: req.RequesterID,
		Requester:   req.Requester,
		Criteria:    req.Criteria,
		Profile:     req.Profile,
		Weights:     req.Weights,
		IncludeAll:  req.IncludeAll,
	})
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRank handles POST /opportunities/rank requests.
func (h *MatchHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.rank_opportunities"
	var req rankRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := check(&req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	items, err := h.deps.RankOpportunities(r.Context(), service.RankRequest{
		RequesterID: req.RequesterID,
		Requester:   req.Requester,
		Criteria:    req.Criteria,
		Limit:       req.Limit,
	})
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{RequesterID: req.RequesterID, Items: items})
}
