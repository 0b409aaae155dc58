// internal/monitoring/health.go
package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// HealthStatus représente l'état de santé du service
type HealthStatus struct {
	Status    string           `json:"status"`
	Service   string           `json:"service"`
	Version   string           `json:"version"`
	Timestamp int64            `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
}

// Check représente une vérification de santé
type Check struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
}

// HealthChecker gère les vérifications de santé
type HealthChecker struct {
	db      *sqlx.DB
	version string
}

// NewHealthChecker crée un nouveau checker de santé
func NewHealthChecker(db *sqlx.DB, version string) *HealthChecker {
	return &HealthChecker{db: db, version: version}
}

// HealthCheck endpoint de vérification de santé complète
func (h *HealthChecker) HealthCheck(c *gin.Context) {
	status := h.GetHealthStatus()

	httpStatus := http.StatusOK
	if status.Status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, status)
}

// LivenessCheck répond tant que le processus tourne
func (h *HealthChecker) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   "battle",
		"timestamp": time.Now().Unix(),
	})
}

// ReadinessCheck répond si le service peut traiter des requêtes
func (h *HealthChecker) ReadinessCheck(c *gin.Context) {
	dbCheck := h.checkDatabase()

	if dbCheck.Status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": dbCheck.Message,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}

// GetHealthStatus effectue toutes les vérifications de santé
func (h *HealthChecker) GetHealthStatus() HealthStatus {
	checks := make(map[string]Check)
	overallStatus := "healthy"

	dbCheck := h.checkDatabase()
	checks["database"] = dbCheck
	if dbCheck.Status != "healthy" {
		overallStatus = "unhealthy"
	}

	return HealthStatus{
		Status:    overallStatus,
		Service:   "battle-service",
		Version:   h.version,
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}
}

// checkDatabase vérifie la santé de la base de données
func (h *HealthChecker) checkDatabase() Check {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return Check{
			Status:  "unhealthy",
			Message: "Database connection failed: " + err.Error(),
			Latency: time.Since(start),
		}
	}

	return Check{
		Status:  "healthy",
		Message: "Database is responsive",
		Latency: time.Since(start),
	}
}
