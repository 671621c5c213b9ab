// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/rapport/internal/adapters/http/swagger"
)

const (
	defaultMaxStandingsLimit = 100
	maxBodyBytes             = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service.
type Dependencies interface {
	EventDependencies
	ReputationDependencies
	StandingsDependencies
	MatchDependencies
	CatalogDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	eventsHandler     *EventsHandler
	reputationHandler *ReputationHandler
	standingsHandler  *StandingsHandler
	matchHandler      *MatchHandler
	catalogHandler    *CatalogHandler
}

type options struct {
	maxStandingsLimit int
}

// Option configures the server.
type Option func(*options)

// WithMaxStandingsLimit caps the limit accepted by GET /standings.
func WithMaxStandingsLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxStandingsLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := options{maxStandingsLimit: defaultMaxStandingsLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(deps),
		eventsHandler:     NewEventsHandler(deps),
		reputationHandler: NewReputationHandler(deps),
		standingsHandler:  NewStandingsHandler(deps, o.maxStandingsLimit),
		matchHandler:      NewMatchHandler(deps),
		catalogHandler:    NewCatalogHandler(deps),
	}
}

// Register attaches all HTTP routes, including the API docs, to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}
	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)
	route("POST /events", "events", s.eventsHandler.HandlePostEvent)
	route("GET /reputation/{subject}", "reputation", s.reputationHandler.HandleGetReputation)
	route("POST /reputation/batch", "reputation_batch", s.reputationHandler.HandleBatch)
	route("GET /standings", "standings", s.standingsHandler.HandleTop)
	route("GET /standings/{subject}", "standing", s.standingsHandler.HandleStanding)
	route("POST /match", "match", s.matchHandler.HandleMatch)
	route("POST /opportunities/rank", "rank", s.matchHandler.HandleRank)
	route("PUT /requesters/{id}", "requesters", s.catalogHandler.HandlePutRequester)
	route("PUT /candidates/{id}", "candidates", s.catalogHandler.HandlePutCandidate)
	route("PUT /opportunities/{id}", "opportunities", s.catalogHandler.HandlePutOpportunity)
	route("PUT /interests/{user}", "interests", s.catalogHandler.HandlePutInterests)

	swagger.Register(ctx, mux)
}

var validate = func() *validator.Validate {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// check validates a request struct and names the first offending field.
func check(v any) error {
	err := validate.Struct(v)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		f := ve[0]
		if f.Param() != "" {
			return fmt.Errorf("invalid %s: %s=%s", f.Field(), f.Tag(), f.Param())
		}
		return fmt.Errorf("invalid %s: %s", f.Field(), f.Tag())
	}
	return err
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code, name := status(err)
	writeJSON(w, code, errorResponse{Code: name, Message: err.Error()})
}
