// Package service wires the stores, engines, queue and publisher behind the
// HTTP API.
package service

import (
	"time"

	"github.com/okian/rota/internal/adapters/broker"
	"github.com/okian/rota/internal/adapters/repository"
	"github.com/okian/rota/internal/domain/dedupe"
	"github.com/okian/rota/internal/domain/selection"
	"github.com/okian/rota/pkg/logger"
)

// Option configures a Service.
type Option func(*Service)

// WithStore uses store instead of building one from the configuration.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDeduper uses d instead of building one from the configuration.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithPublisher uses p for domain events instead of dialling RabbitMQ.
func WithPublisher(p broker.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithRandomSource sets the rotation draw source.
func WithRandomSource(src selection.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithClock sets the time source for assignments, bonuses and events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
