package store

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/assetgraph/internal/asset"
	"github.com/roach88/assetgraph/internal/ids"
)

const (
	// DefaultMaxRetries is how many times a conflicting batch is rerun.
	DefaultMaxRetries = 3

	// DefaultBatchTimeout applies when the caller's context has no deadline.
	DefaultBatchTimeout = 30 * time.Second

	defaultRetryBaseDelay = 20 * time.Millisecond
	defaultRetryMaxDelay  = 500 * time.Millisecond
)

// Hooks captures batch-level observability events.
type Hooks interface {
	// ObserveBatch is called once per UpsertAssetsAndEdges call.
	// status is "committed" or the failure kind.
	ObserveBatch(status string, attempts int, dur time.Duration)
	// ObserveOutcome is called once per spec of a committed batch.
	ObserveOutcome(action asset.Action)
	// IncConflict counts attempts aborted by a retryable conflict.
	IncConflict()
	// IncRetry counts attempts started after a conflict.
	IncRetry()
}

type noopHooks struct{}

func (noopHooks) ObserveBatch(string, int, time.Duration) {}
func (noopHooks) ObserveOutcome(asset.Action)             {}
func (noopHooks) IncConflict()                            {}
func (noopHooks) IncRetry()                               {}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHooks installs observability hooks.
func WithHooks(h Hooks) Option {
	return func(s *Store) {
		if h != nil {
			s.hooks = h
		}
	}
}

// WithTracer sets the tracer used for batch spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMaxRetries bounds conflict retries. Negative values are treated as 0.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		s.maxRetries = max(n, 0)
	}
}

// WithBatchTimeout sets the deadline applied to batches whose context has
// none. Zero disables it.
func WithBatchTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.batchTimeout = d
	}
}

// WithRetryDelay sets the backoff base and cap between attempts.
func WithRetryDelay(base, maxDelay time.Duration) Option {
	return func(s *Store) {
		s.retryBase = base
		s.retryMax = maxDelay
	}
}

// WithIDGenerator sets the source of row ids and asset uids.
func WithIDGenerator(g ids.Generator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithClock sets the source of created_at and updated_at.
func WithClock(c ids.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}
