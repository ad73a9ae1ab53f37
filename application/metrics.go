package application

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gigflow/domain"
)

var (
	hireAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigflow_hire_attempts_total",
		Help: "hire attempts by outcome",
	}, []string{"outcome"})

	hireLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gigflow_hire_duration_seconds",
		Help:    "time spent in the hire transaction",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	bidSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigflow_bid_submissions_total",
		Help: "bid submissions by outcome",
	}, []string{"outcome"})

	rejectedBids = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigflow_bids_rejected_total",
		Help: "competing bids rejected by hires",
	})
)

// outcome is the metric label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
