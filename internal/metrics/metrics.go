// Package metrics exposes Prometheus counters for persistence operations.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gehl",
		Name:      "operations_total",
		Help:      "Persistence operations by name and outcome.",
	}, []string{"operation", "outcome"})

	duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gehl",
		Name:      "operation_duration_seconds",
		Help:      "Persistence operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(operations, duration)
}

// Outcome labels an error by class.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, utils.ErrValidation):
		return "invalid"
	case errors.Is(err, utils.ErrNotFound):
		return "not_found"
	case errors.Is(err, utils.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// Observe records one operation. Use with defer:
//
//	defer metrics.Observe("upsert_data_point", time.Now(), &err)
func Observe(operation string, start time.Time, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	operations.WithLabelValues(operation, Outcome(e)).Inc()
	duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
