package worker

import "errors"

// ErrAppend marks an event that could not be written to the ledger.
var ErrAppend = errors.New("append to ledger failed")
