// Package cli implements rapportctl, a command line client for the rapport
// HTTP API.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/rapport/internal/adapters/repository"
	service "github.com/okian/rapport/internal/app"
	"github.com/okian/rapport/internal/domain/model"
)

// Event is the wire shape of POST /events.
type Event struct {
	EventID    string            `json:"event_id"`
	SubjectID  string            `json:"subject_id"`
	Kind       string            `json:"kind"`
	Value      int64             `json:"value,omitempty"`
	OccurredAt string            `json:"occurred_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Ack is the response to an event submission.
type Ack struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// MatchParams is the wire shape of POST /match.
type MatchParams struct {
	RequesterID string                       `json:"requester_id,omitempty"`
	Criteria    repository.CandidateCriteria `json:"criteria"`
	Profile     string                       `json:"profile,omitempty"`
	Weights     map[model.Factor]float64     `json:"weights,omitempty"`
	IncludeAll  bool                         `json:"include_all,omitempty"`
}

// RankParams is the wire shape of POST /opportunities/rank.
type RankParams struct {
	RequesterID string                         `json:"requester_id"`
	Criteria    repository.OpportunityCriteria `json:"criteria"`
	Limit       int                            `json:"limit,omitempty"`
}

// RankResult is the response of POST /opportunities/rank.
type RankResult struct {
	RequesterID string             `json:"requester_id"`
	Items       []model.RankedItem `json:"items"`
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to a rapport server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// do sends body as JSON and decodes a 2xx answer into out. It returns the
// status code so callers can tell 200 from 202.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return resp.StatusCode, apiErr
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Health checks that the service answers on /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

// PostEvent submits one event.
func (c *Client) PostEvent(ctx context.Context, ev Event) (Ack, error) {
	var ack Ack
	_, err := c.do(ctx, http.MethodPost, "/events", ev, &ack)
	return ack, err
}

// Reputation fetches one subject's snapshot.
func (c *Client) Reputation(ctx context.Context, subjectID string) (model.ReputationSnapshot, error) {
	var snap model.ReputationSnapshot
	_, err := c.do(ctx, http.MethodGet, "/reputation/"+url.PathEscape(subjectID), nil, &snap)
	return snap, err
}

// Reputations fetches many snapshots in one request.
func (c *Client) Reputations(ctx context.Context, ids []string) ([]model.ReputationSnapshot, error) {
	var snaps []model.ReputationSnapshot
	_, err := c.do(ctx, http.MethodPost, "/reputation/batch", map[string][]string{"subject_ids": ids}, &snaps)
	return snaps, err
}

// Standings fetches the top limit subjects.
func (c *Client) Standings(ctx context.Context, limit int) ([]repository.Entry, error) {
	var entries []repository.Entry
	_, err := c.do(ctx, http.MethodGet, "/standings?limit="+strconv.Itoa(limit), nil, &entries)
	return entries, err
}

// Standing fetches one subject's standing.
func (c *Client) Standing(ctx context.Context, subjectID string) (repository.Entry, error) {
	var e repository.Entry
	_, err := c.do(ctx, http.MethodGet, "/standings/"+url.PathEscape(subjectID), nil, &e)
	return e, err
}

// Match asks for ranked candidates.
func (c *Client) Match(ctx context.Context, p MatchParams) (service.MatchOutcome, error) {
	var out service.MatchOutcome
	_, err := c.do(ctx, http.MethodPost, "/match", p, &out)
	return out, err
}

// Rank asks for ranked opportunities.
func (c *Client) Rank(ctx context.Context, p RankParams) (RankResult, error) {
	var out RankResult
	_, err := c.do(ctx, http.MethodPost, "/opportunities/rank", p, &out)
	return out, err
}

func (c *Client) PutRequester(ctx context.Context, r model.RequesterProfile) error {
	_, err := c.do(ctx, http.MethodPut, "/requesters/"+url.PathEscape(r.ID), r, nil)
	return err
}

func (c *Client) PutCandidate(ctx context.Context, cand model.CandidateProfile) error {
	_, err := c.do(ctx, http.MethodPut, "/candidates/"+url.PathEscape(cand.ID), cand, nil)
	return err
}

func (c *Client) PutOpportunity(ctx context.Context, it model.RankableItem) error {
	_, err := c.do(ctx, http.MethodPut, "/opportunities/"+url.PathEscape(it.ID), it, nil)
	return err
}

func (c *Client) PutInterests(ctx context.Context, userID string, records []model.InterestRecord) error {
	_, err := c.do(ctx, http.MethodPut, "/interests/"+url.PathEscape(userID), records, nil)
	return err
}
