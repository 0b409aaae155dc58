package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Métriques HTTP
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battle_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "battle_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "battle_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	// Métriques du domaine bataille
	battlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battle_battles_total",
			Help: "Total number of battles by lifecycle event",
		},
		[]string{"event"},
	)

	battleActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battle_actions_total",
			Help: "Total number of battle actions executed",
		},
		[]string{"result"},
	)

	scriptExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battle_script_executions_total",
			Help: "Total number of Lua script executions",
		},
		[]string{"result"},
	)

	attackGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battle_attack_generations_total",
			Help: "Total number of LLM attack generation requests",
		},
		[]string{"result"},
	)

	errorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battle_errors_total",
			Help: "Total number of HTTP errors",
		},
		[]string{"error_type", "endpoint"},
	)
)

// PrometheusMetrics middleware pour collecter les métriques Prometheus
func PrometheusMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		activeConnections.Inc()
		defer activeConnections.Dec()

		c.Next()

		duration := time.Since(start)

		endpoint := normalizeEndpoint(c.FullPath())
		method := c.Request.Method
		statusCode := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())

		if c.Writer.Status() >= 400 {
			errorCount.WithLabelValues(getErrorType(c.Writer.Status()), endpoint).Inc()
		}
	}
}

// RecordBattleEvent compte un événement de cycle de vie de bataille
func RecordBattleEvent(event string) {
	battlesTotal.WithLabelValues(event).Inc()
}

// RecordBattleAction compte une action de bataille exécutée
func RecordBattleAction(result string) {
	battleActionsTotal.WithLabelValues(result).Inc()
}

// RecordScriptExecution compte une exécution de script Lua
func RecordScriptExecution(result string) {
	scriptExecutionsTotal.WithLabelValues(result).Inc()
}

// RecordAttackGeneration compte une demande de génération d'attaques
func RecordAttackGeneration(result string) {
	attackGenerationsTotal.WithLabelValues(result).Inc()
}

// normalizeEndpoint évite la cardinalité élevée sur les routes paramétrées
func normalizeEndpoint(fullPath string) string {
	if fullPath == "" {
		return "unmatched"
	}
	return strings.ReplaceAll(fullPath, "//", "/")
}

func getErrorType(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status == 401 || status == 403:
		return "auth_error"
	case status == 429:
		return "rate_limited"
	default:
		return "client_error"
	}
}
