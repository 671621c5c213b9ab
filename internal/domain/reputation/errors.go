package reputation

import "errors"

// Sentinel kinds for reputation errors.
var (
	// ErrInvalidConfiguration marks a ladder, label list or decay config that
	// cannot be used. It is fatal at startup, never returned per call.
	ErrInvalidConfiguration = errors.New("invalid reputation configuration")
)
