// Package observability owns the Prometheus collectors exported at
// /metrics. Collectors register lazily on first use.
package observability
