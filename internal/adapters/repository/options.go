package repository

import "github.com/okian/rota/pkg/logger"

// Option applies a configuration option to the stores.
type Option func(*options)

type options struct {
	log     logger.Logger
	newID   func() string
	migrate bool
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithIDGenerator overrides how assignment ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithMigrate applies the embedded schema when the SQL store opens.
func WithMigrate(migrate bool) Option {
	return func(o *options) {
		o.migrate = migrate
	}
}

func buildOptions(opts []Option) options {
	o := options{log: logger.Nop(), newID: newUUID}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
