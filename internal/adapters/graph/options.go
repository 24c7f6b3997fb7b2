package graph

import (
	"time"

	"github.com/okian/athletegraph/pkg/logger"
)

type options struct {
	policy    MetricPolicy
	log       logger.Logger
	txTimeout time.Duration
	newID     func() string
}

func defaultOptions() options {
	return options{
		policy:    PolicyAppend,
		log:       logger.Nop(),
		txTimeout: 10 * time.Second,
		newID:     newObservationID,
	}
}

// Option configures a store.
type Option func(*options)

// WithPolicy sets the Metric policy.
func WithPolicy(p MetricPolicy) Option {
	return func(o *options) {
		if p != "" {
			o.policy = p
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithTxTimeout bounds each write transaction on the server side.
func WithTxTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.txTimeout = d
		}
	}
}

// WithIDGenerator overrides how observation ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}
