package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gridlink-core/internal/observability"
)

// metricsHandler serves the Prometheus collectors from the default
// registry.
func (s *Server) metricsHandler() http.Handler {
	observability.RegisterMetrics()
	return promhttp.Handler()
}
