package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/rapport/internal/domain/model"
)

// CatalogDependencies defines the interface for catalog upserts.
type CatalogDependencies interface {
	PutRequester(ctx context.Context, r model.RequesterProfile) error
	PutCandidate(ctx context.Context, c model.CandidateProfile) error
	PutOpportunity(ctx context.Context, it model.RankableItem) error
	PutInterests(ctx context.Context, userID string, records []model.InterestRecord) error
}

// CatalogHandler stores requesters, candidates, opportunities and interests.
type CatalogHandler struct {
	deps CatalogDependencies
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogDependencies) *CatalogHandler {
	return &CatalogHandler{deps: deps}
}

// pathID returns the path id, rejecting a body id that names another entity.
func pathID(r *http.Request, name, bodyID string) (string, error) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		return "", fmt.Errorf("missing %s", name)
	}
	if bodyID != "" && bodyID != id {
		return "", fmt.Errorf("body id %q does not match path id %q", bodyID, id)
	}
	return id, nil
}

// HandlePutRequester handles PUT /requesters/{id}.
func (h *CatalogHandler) HandlePutRequester(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_requester"
	var body model.RequesterProfile
	if err := decode(w, r, &body); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := pathID(r, "id", body.ID)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	body.ID = id
	h.store(w, op, h.deps.PutRequester(r.Context(), body))
}

// HandlePutCandidate handles PUT /candidates/{id}.
func (h *CatalogHandler) HandlePutCandidate(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_candidate"
	var body model.CandidateProfile
	if err := decode(w, r, &body); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := pathID(r, "id", body.ID)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if c := body.Attributes.Capacity; c.Max < 0 || c.Current < 0 {
		writeError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("capacity must not be negative")))
		return
	}
	body.ID = id
	h.store(w, op, h.deps.PutCandidate(r.Context(), body))
}

// HandlePutOpportunity handles PUT /opportunities/{id}.
func (h *CatalogHandler) HandlePutOpportunity(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_opportunity"
	var body model.RankableItem
	if err := decode(w, r, &body); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := pathID(r, "id", body.ID)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	body.ID = id
	h.store(w, op, h.deps.PutOpportunity(r.Context(), body))
}

// HandlePutInterests handles PUT /interests/{user}. The body replaces every
// interest of the user.
func (h *CatalogHandler) HandlePutInterests(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_interests"
	var body []model.InterestRecord
	if err := decode(w, r, &body); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	user, err := pathID(r, "user", "")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.store(w, op, h.deps.PutInterests(r.Context(), user, body))
}

func (h *CatalogHandler) store(w http.ResponseWriter, op string, err error) {
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
