package service

import "errors"

// Sentinel error kinds for the service.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrUnknownProfile = errors.New("unknown match profile")
	ErrNoRequester    = errors.New("requester id or profile required")
)
