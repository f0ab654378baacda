// Package metrics exports store activity to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/assetgraph/internal/asset"
	"github.com/roach88/assetgraph/internal/store"
)

// DefaultNamespace prefixes every metric when none is given.
const DefaultNamespace = "assetgraph"

// Observer implements store.Hooks with Prometheus collectors.
type Observer struct {
	batchDuration *prometheus.HistogramVec
	batchAttempts prometheus.Histogram
	outcomes      *prometheus.CounterVec
	conflicts     prometheus.Counter
	retries       prometheus.Counter
}

// NewObserver registers the batch metrics on reg. A nil reg uses the default
// registerer. Collectors already registered under the same names are reused,
// so two stores in one process share series.
func NewObserver(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Latency of UpsertAssetsAndEdges calls by final status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		batchAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_attempts",
			Help:      "Transaction attempts per batch.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16, 21},
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_outcomes_total",
			Help:      "Specs of committed batches by resolved action.",
		}, []string{"action"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Attempts aborted by a retryable conflict.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Attempts started after a conflict.",
		}),
	}

	var err error
	if o.batchDuration, err = register(reg, o.batchDuration); err != nil {
		return nil, fmt.Errorf("register batch duration histogram: %w", err)
	}
	if o.batchAttempts, err = register(reg, o.batchAttempts); err != nil {
		return nil, fmt.Errorf("register batch attempts histogram: %w", err)
	}
	if o.outcomes, err = register(reg, o.outcomes); err != nil {
		return nil, fmt.Errorf("register outcome counter: %w", err)
	}
	if o.conflicts, err = register(reg, o.conflicts); err != nil {
		return nil, fmt.Errorf("register conflict counter: %w", err)
	}
	if o.retries, err = register(reg, o.retries); err != nil {
		return nil, fmt.Errorf("register retry counter: %w", err)
	}
	return o, nil
}

// register adds c to reg, or returns the collector already registered under
// the same descriptor when it has the same type.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// ObserveBatch records the duration and attempt count of one call.
func (o *Observer) ObserveBatch(status string, attempts int, dur time.Duration) {
	if o == nil {
		return
	}
	o.batchDuration.WithLabelValues(status).Observe(dur.Seconds())
	if attempts > 0 {
		o.batchAttempts.Observe(float64(attempts))
	}
}

// ObserveOutcome counts one resolved spec.
func (o *Observer) ObserveOutcome(action asset.Action) {
	if o == nil {
		return
	}
	o.outcomes.WithLabelValues(string(action)).Inc()
}

func (o *Observer) IncConflict() {
	if o == nil {
		return
	}
	o.conflicts.Inc()
}

func (o *Observer) IncRetry() {
	if o == nil {
		return
	}
	o.retries.Inc()
}

var _ store.Hooks = (*Observer)(nil)
