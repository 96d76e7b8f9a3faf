// Package metrics provides the Prometheus registry and scrape handler of the
// sync engine. All metrics are defined in their respective packages (client,
// batch, pagination, enrich, cache, ratelimit, rest) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the sync engine.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the scrape endpoint for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Operation Metrics (pkg/client):
//   - storesync_operations_total{operation, status} (Counter): Public operations by outcome (success, error, partial)
//   - storesync_operation_duration_seconds{operation} (Histogram): Public operation duration
//
// Batch Metrics (pkg/batch):
//   - storesync_batch_items_total{batch, outcome} (Counter): Elements processed per call site
//   - storesync_batch_retries_total{batch} (Counter): Retry attempts per call site
//   - storesync_batch_retry_exhausted_total{batch} (Counter): Elements that exhausted their attempts
//   - storesync_batch_duration_seconds{batch} (Histogram): Wall time of a batch run
//
// Scan Metrics (pkg/pagination):
//   - storesync_pages_fetched_total{scan} (Counter): Pages fetched per scan
//   - storesync_scan_convergence_total{scan, reason} (Counter): How scans ended (repetition, short_first_page, empty_page)
//
// Enrichment Metrics (pkg/enrich):
//   - storesync_join_misses_total{pass} (Counter): Records passed through unchanged by a pass
//
// Cache Metrics (pkg/cache):
//   - storesync_cache_lookups_total{kind, result} (Counter): Reference table lookups (hit, miss, expired)
//   - storesync_cache_entry_bytes{kind} (Gauge): Encoded size of the last stored table
//   - storesync_cache_entry_age_seconds{kind} (Histogram): Age of tables served from the cache
//   - storesync_cache_errors_total{operation} (Counter): Cache failures
//
// Rate Limit Metrics (pkg/ratelimit):
//   - storesync_errors_remaining (Gauge): Failures still allowed in the error budget window
//   - storesync_ratelimit_blocks_total (Counter): Calls refused at critical budget
//   - storesync_ratelimit_throttles_total (Counter): Calls slowed at low budget
//   - storesync_ratelimit_wait_seconds (Histogram): Time spent waiting for a request slot
//
// Request Metrics (pkg/rest):
//   - storesync_rest_requests_total{endpoint, status} (Counter): Resource-protocol requests
//   - storesync_rest_request_duration_seconds{endpoint} (Histogram): Request duration
//   - storesync_rest_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Example Prometheus Queries:
//
//   # Partial failure rate per operation
//   sum by (operation) (rate(storesync_operations_total{status="partial"}[1h]))
//
//   # Retry pressure per call site
//   rate(storesync_batch_retries_total[5m])
//
//   # Error budget status
//   storesync_errors_remaining < 5
//
//   # Cache Hit Rate
//   sum(rate(storesync_cache_lookups_total{result="hit"}[5m])) /
//   sum(rate(storesync_cache_lookups_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(storesync_rest_request_duration_seconds_bucket[5m]))
