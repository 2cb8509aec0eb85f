package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck checks one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler liveness and readiness endpoints
type HealthHandler struct {
	version string
	checks  map[string]HealthCheck
}

func NewHealthHandler(version string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

// Health reports every dependency; any failure turns the answer into a 503
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	services := make(map[string]interface{}, len(h.checks))
	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			services[name] = gin.H{"healthy": false, "error": err.Error()}
			continue
		}
		services[name] = gin.H{"healthy": true}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "error"
	}
	c.JSON(status, gin.H{
		"status":    overall,
		"version":   h.version,
		"timestamp": time.Now().Unix(),
		"services":  services,
	})
}

func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
	})
}
