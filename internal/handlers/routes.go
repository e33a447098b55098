package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes wires every handler plus the Prometheus endpoint onto one mux
func SetupRoutes(mux *http.ServeMux, alertHandler *AlertHandler, rcaHandler *RCAHandler,
	healthHandler *HealthHandler, registry *prometheus.Registry) {
	alertHandler.SetupRoutes(mux)
	rcaHandler.SetupRoutes(mux)
	healthHandler.SetupRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
