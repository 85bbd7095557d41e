// Package worker drains the mentorship queue and evaluates each event.
package worker

import (
	"context"

	"github.com/okian/rota/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithLogger sets a custom logger for the pool and its workers.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithOnFailure registers a hook called when evaluating an event fails.
func WithOnFailure(fn func(ctx context.Context, e Event, err error)) Option {
	return func(p *Pool) {
		p.onFailure = fn
	}
}
