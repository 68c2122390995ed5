package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/domain"
	"github.com/persistorai/dashport/internal/middleware"
	"github.com/persistorai/dashport/internal/models"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log           *logrus.Logger
	DB            DatabaseChecker
	Imports       domain.ImportService
	Loader        BundleLoader
	MergeTargets  models.MergeTargets
	MaxBodyBytes  int64
	ImportTimeout time.Duration
	CORSOrigins   []string
	// APIKey protects the import endpoints; empty disables authentication.
	APIKey        string
	Version       string
	SchemaVersion int64
}

// Router-level limits.
const (
	defaultMaxBodySize = 50 << 20 // 50 MB
	rateLimit          = 5        // requests per second per IP
	rateBurst          = 20       // token bucket burst size

	// multipartMemory is the part of an upload kept in memory before spilling to disk.
	multipartMemory = 8 << 20
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}

	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.MaxMultipartMemory = multipartMemory
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBody))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET(middleware.MetricsPath, gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(api *gin.RouterGroup, deps *RouterDeps) {
	health := NewHealthHandler(deps.DB, deps.Log, deps.Version, deps.SchemaVersion)
	imports := NewImportHandler(deps.Imports, deps.Loader, deps.MergeTargets, deps.ImportTimeout, deps.Log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	if deps.APIKey != "" {
		api.Use(middleware.APIKeyAuth(deps.APIKey, deps.Log))
	}

	api.POST("/dashboards/import", imports.Import)
	api.POST("/dashboards/import/merge", imports.Merge)
	api.POST("/dashboards/import/plan", imports.Plan)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(r.Group("/api/v1"), deps)

	return r
}
