package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/rapport/internal/adapters/mq/queue"
	"github.com/okian/rapport/internal/adapters/repository"
	service "github.com/okian/rapport/internal/app"
	"github.com/okian/rapport/internal/domain/matching"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrBackpressure = errors.New("backpressure")
	ErrUnavailable  = errors.New("service unavailable")
	ErrInternal     = errors.New("internal error")
)

// Error carries the operation that failed and the kind that decides the
// response status.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind reports kind for op without an underlying cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap tags err with op and the kind derived from the engine's sentinels.
func Wrap(op string, err error) error {
	return WrapKind(op, kindOf(err), err)
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrInvalidEvent),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, matching.ErrInvalidWeights),
		errors.Is(err, service.ErrUnknownProfile),
		errors.Is(err, service.ErrNoRequester):
		return ErrBadRequest
	case errors.Is(err, queue.ErrQueueFull):
		return ErrBackpressure
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, queue.ErrQueueClosed),
		errors.Is(err, repository.ErrDataUnavailable):
		return ErrUnavailable
	default:
		return ErrInternal
	}
}

// status maps an error to its HTTP status and response code.
func status(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
