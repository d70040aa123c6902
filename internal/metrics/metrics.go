// Package metrics exposes Prometheus counters for schedule sync operations.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lightsched"

// Sync results
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultInvalid  = "invalid"
	ResultRejected = "rejected"
)

var (
	once sync.Once

	syncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_total",
			Help:      "Count of schedule sync attempts by operation and result.",
		},
		[]string{"operation", "result"},
	)

	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Latency of schedule endpoint requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	edits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_total",
			Help:      "Count of local schedule edits by kind.",
		},
		[]string{"kind"},
	)

	unsaved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unsaved_changes",
			Help:      "1 when the working copy has unsaved changes.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncTotal, syncDuration, edits, unsaved)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSync records the outcome of one sync attempt.
func ObserveSync(operation, result string, d time.Duration) {
	syncTotal.WithLabelValues(operation, result).Inc()
	if result != ResultRejected {
		syncDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncEdit counts a local edit.
func IncEdit(kind string) {
	edits.WithLabelValues(kind).Inc()
}

// SetUnsaved mirrors the unsaved-changes flag.
func SetUnsaved(v bool) {
	if v {
		unsaved.Set(1)
		return
	}
	unsaved.Set(0)
}
