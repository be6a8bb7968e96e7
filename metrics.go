// Copyright (c) The Threadline Authors. All rights reserved.

package threadline

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report invoker activity.
type Metrics struct {
	invocations     *prometheus.CounterVec
	persistFailures prometheus.Counter
	duration        prometheus.Histogram
}

// Invocation outcome label values.
const (
	outcomeOK                 = "ok"
	outcomeConfigError        = "config_error"
	outcomeHistoryUnavailable = "history_unavailable"
	outcomePersistError       = "persist_error"
	outcomeInnerError         = "inner_error"
)

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Supply a fresh registry when unique collectors are required (for example in
// tests); nil uses the default registry. Registration errors panic, mirroring
// promauto semantics, except for duplicate registration, where the existing
// collector is reused.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	invocations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "threadline",
			Name:      "invocations_total",
			Help:      "Total history-scoped invocations by outcome.",
		},
		[]string{"outcome"},
	)
	persistFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "threadline",
			Name:      "history_persist_failures_total",
			Help:      "Appends that failed after a successful inner invocation.",
		},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "threadline",
			Name:      "invocation_duration_seconds",
			Help:      "End-to-end invocation duration including history I/O.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	for _, collector := range []prometheus.Collector{invocations, persistFailures, duration} {
		if err := reg.Register(collector); err != nil {
			already := prometheus.AlreadyRegisteredError{}
			if errors.As(err, &already) {
				switch collector {
				case invocations:
					invocations = already.ExistingCollector.(*prometheus.CounterVec)
				case persistFailures:
					persistFailures = already.ExistingCollector.(prometheus.Counter)
				case duration:
					duration = already.ExistingCollector.(prometheus.Histogram)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		invocations:     invocations,
		persistFailures: persistFailures,
		duration:        duration,
	}
}

// Middleware returns a [Middleware] recording each invocation's outcome and
// duration.
func (m *Metrics) Middleware() Middleware {
	return func(next InvokeFunc) InvokeFunc {
		return func(ctx context.Context, input any, cfg Config) (any, error) {
			start := time.Now()
			out, err := next(ctx, input, cfg)
			m.duration.Observe(time.Since(start).Seconds())
			m.invocations.WithLabelValues(outcomeFor(err)).Inc()
			if errors.Is(err, ErrHistoryPersist) {
				m.persistFailures.Inc()
			}
			return out, err
		}
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrConfig):
		return outcomeConfigError
	case errors.Is(err, ErrHistoryUnavailable):
		return outcomeHistoryUnavailable
	case errors.Is(err, ErrHistoryPersist):
		return outcomePersistError
	default:
		return outcomeInnerError
	}
}
