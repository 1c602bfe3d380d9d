package provider

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialrss_provider_fetch_attempts_total",
		Help: "The total number of upstream fetch attempts per provider",
	}, []string{"provider"})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialrss_provider_fetch_errors_total",
		Help: "The total number of failed upstream fetches per provider and error kind",
	}, []string{"provider", "kind"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialrss_provider_fetch_duration_seconds",
		Help:    "Duration of upstream timeline fetches",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // Start at 10ms, double each bucket, 10 buckets
	}, []string{"provider"})
)

// ErrorKind maps an error to the label used on FetchErrors.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrRateLimited):
		return "rate_limit"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream"
	default:
		return "other"
	}
}
