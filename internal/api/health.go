// Package api provides the HTTP handlers of the dashport import service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// schemaVersionQuery reads the newest migration goose has applied.
const schemaVersionQuery = `SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied`

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db            DatabaseChecker
	log           *logrus.Logger
	version       string
	schemaVersion int64
	startTime     time.Time
}

// NewHealthHandler creates a HealthHandler. schemaVersion is the migration
// version the binary expects; db may be nil.
func NewHealthHandler(db DatabaseChecker, log *logrus.Logger, version string, schemaVersion int64) *HealthHandler {
	return &HealthHandler{
		db:            db,
		log:           log,
		version:       version,
		schemaVersion: schemaVersion,
		startTime:     time.Now(),
	}
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	SchemaVersion int64   `json:"schema_version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "connected",
		SchemaVersion: h.schemaVersion,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	// Best-effort database ping (non-fatal for liveness).
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}
	} else {
		resp.Database = "not_configured"
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready. It requires a reachable database whose
// schema is migrated to at least the expected version.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{
		"database": "ok",
		"schema":   "ok",
	}

	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, readinessResponse{
			Status: "not_ready",
			Checks: map[string]string{"database": "not_configured", "schema": "unknown"},
		})

		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		h.log.WithError(err).Error("readiness: database health check failed")
		checks["database"] = "error"
		checks["schema"] = "unknown"
	} else if err := h.checkSchema(ctx); err != nil {
		h.log.WithError(err).Error("readiness: schema check failed")
		checks["schema"] = "error"
	}

	status, code := "ready", http.StatusOK
	if checks["database"] != "ok" || checks["schema"] != "ok" {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	c.JSON(code, readinessResponse{Status: status, Checks: checks})
}

func (h *HealthHandler) checkSchema(ctx context.Context) error {
	var applied int64
	if err := h.db.QueryRow(ctx, schemaVersionQuery).Scan(&applied); err != nil {
		return fmt.Errorf("schema check: %w", err)
	}

	if applied < h.schemaVersion {
		return fmt.Errorf("schema at version %d, want %d", applied, h.schemaVersion)
	}

	return nil
}
