package worker

import (
	"github.com/okian/rapport/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithOnProcessed sets a hook called after each event, with its error if any.
func WithOnProcessed(fn func(ev Event, err error)) Option {
	return func(w *InMemoryWorker) {
		w.onProcessed = fn
	}
}
