package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidLimit    = errors.New("invalid standings limit")
	ErrInvalidEvent    = errors.New("invalid contribution event")
	ErrDataUnavailable = errors.New("collaborator data unavailable")
	ErrUnknownBackend  = errors.New("unknown ledger backend")
)
