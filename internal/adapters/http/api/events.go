package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/okian/rapport/internal/domain/model"
)

// EventDependencies defines the interface for event ingestion.
type EventDependencies interface {
	Enqueue(ctx context.Context, ev model.ContributionEvent) (duplicate bool, err error)
}

// eventRequest mirrors the OpenAPI schema for POST /events.
type eventRequest struct {
	EventID    string            `json:"event_id" validate:"required"`
	SubjectID  string            `json:"subject_id" validate:"required"`
	Kind       string            `json:"kind" validate:"required"`
	Value      int64             `json:"value"`
	OccurredAt string            `json:"occurred_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e *eventRequest) trim() {
	e.EventID = strings.TrimSpace(e.EventID)
	e.SubjectID = strings.TrimSpace(e.SubjectID)
	e.Kind = strings.TrimSpace(e.Kind)
	e.OccurredAt = strings.TrimSpace(e.OccurredAt)
}

// event converts the request. A missing timestamp is left zero for the
// service to stamp.
func (e eventRequest) event() (model.ContributionEvent, error) {
	ev := model.ContributionEvent{
		EventID:   e.EventID,
		SubjectID: e.SubjectID,
		Kind:      model.EventKind(e.Kind),
		Value:     e.Value,
		Metadata:  e.Metadata,
	}
	if e.OccurredAt != "" {
		ts, err := time.Parse(time.RFC3339, e.OccurredAt)
		if err != nil {
			return model.ContributionEvent{}, err
		}
		ev.OccurredAt = ts
	}
	return ev, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req eventRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	req.trim()
	if err := check(&req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := req.event()
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	dup, err := h.deps.Enqueue(r.Context(), ev)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
