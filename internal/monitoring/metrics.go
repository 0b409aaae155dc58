// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler expose le registre Prometheus par défaut, les métriques
// elles-mêmes sont déclarées dans le package middleware
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
