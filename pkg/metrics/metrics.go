// Package metrics documents the Prometheus metrics exposed by the bulk
// client. Metrics are defined in their owning packages (client, bulk,
// cache) to keep them next to the code that drives them; this package
// holds the registry reference and the catalog.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer used by the bulk client. All
// metrics register themselves via promauto in their owning packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Catalog
//
// Request metrics (pkg/client):
//   - sf_requests_total{method, status} (Counter): API requests by method and HTTP status
//   - sf_request_duration_seconds{method} (Histogram): request duration
//   - sf_errors_total{kind} (Counter): classified API errors
//   - sf_authentications_total (Counter): authenticate calls made
//
// Bulk job metrics (pkg/bulk):
//   - sf_bulk_jobs_submitted_total (Counter): query jobs submitted
//   - sf_bulk_job_polls_total{state} (Counter): status polls by observed state
//   - sf_bulk_poll_backoff_seconds (Histogram): backoff between polls
//   - sf_bulk_pages_fetched_total (Counter): result pages fetched
//   - sf_bulk_rows_decoded_total (Counter): result rows decoded
//   - sf_bulk_jobs_deleted_total (Counter): jobs deleted during teardown
//
// Describe cache metrics (pkg/cache):
//   - sf_describe_cache_hits_total (Counter)
//   - sf_describe_cache_misses_total (Counter)
//   - sf_describe_cache_errors_total{operation} (Counter)
//
// Example queries:
//
//	# Authentication churn (token refreshes per request)
//	rate(sf_authentications_total[5m]) / rate(sf_requests_total[5m])
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(sf_request_duration_seconds_bucket[5m]))
//
//	# Describe cache hit rate
//	rate(sf_describe_cache_hits_total[5m]) /
//	(rate(sf_describe_cache_hits_total[5m]) + rate(sf_describe_cache_misses_total[5m]))
