package cache

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultExpired = "expired"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storesync_cache_lookups_total",
			Help: "Reference table lookups by kind and result (hit, miss, expired)",
		},
		[]string{"kind", "result"},
	)

	entryBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storesync_cache_entry_bytes",
			Help: "Encoded size of the last reference table stored per kind",
		},
		[]string{"kind"},
	)

	entryAgeSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storesync_cache_entry_age_seconds",
			Help:    "Age of reference tables served from the cache",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 4 * 3600},
		},
		[]string{"kind"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storesync_cache_errors_total",
			Help: "Reference cache failures by operation (get, set, delete, decode, encode)",
		},
		[]string{"operation"},
	)
)

// kindLabel is the metric label of a key: its kind without the qualifier, so
// "attribute-options:manufacturer" counts as "attribute-options".
func kindLabel(k Key) string {
	kind, _, _ := strings.Cut(k.Kind, ":")
	if kind == "" {
		return "unknown"
	}
	return kind
}

func observeHit(k Key, e *Entry) {
	kind := kindLabel(k)
	lookupsTotal.WithLabelValues(kind, resultHit).Inc()
	if !e.CachedAt.IsZero() {
		entryAgeSeconds.WithLabelValues(kind).Observe(time.Since(e.CachedAt).Seconds())
	}
}
