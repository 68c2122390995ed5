package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/bundle"
	"github.com/persistorai/dashport/internal/domain"
	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/resolver"
)

// bundleField is the multipart form field carrying the zipped bundle.
const bundleField = "bundle"

// ImportHandler serves the bundle import endpoints.
type ImportHandler struct {
	svc     domain.ImportService
	loader  BundleLoader
	targets models.MergeTargets
	timeout time.Duration
	log     *logrus.Logger
}

// NewImportHandler creates an ImportHandler. targets are the merge targets
// used when a request names none; timeout bounds each import.
func NewImportHandler(
	svc domain.ImportService,
	loader BundleLoader,
	targets models.MergeTargets,
	timeout time.Duration,
	log *logrus.Logger,
) *ImportHandler {
	return &ImportHandler{svc: svc, loader: loader, targets: targets, timeout: timeout, log: log}
}

// Import handles POST /api/v1/dashboards/import.
func (h *ImportHandler) Import(c *gin.Context) {
	opts, err := parseImportOptions(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	b, ok := h.loadBundle(c)
	if !ok {
		return
	}

	ctx, cancel := h.importContext(c)
	defer cancel()

	result, err := h.svc.ImportSelective(ctx, b.Archive, opts)
	if err != nil {
		respondImportError(c, h.log, err)

		return
	}

	h.logImport(c, result)
	c.JSON(http.StatusOK, result)
}

// Merge handles POST /api/v1/dashboards/import/merge.
func (h *ImportHandler) Merge(c *gin.Context) {
	opts, err := parseImportOptions(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	targets, err := h.parseTargets(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	b, ok := h.loadBundle(c)
	if !ok {
		return
	}

	ctx, cancel := h.importContext(c)
	defer cancel()

	result, err := h.svc.ImportMerge(ctx, b.Archive, targets, opts)
	if err != nil {
		respondImportError(c, h.log, err)

		return
	}

	h.logImport(c, result)
	c.JSON(http.StatusOK, result)
}

// Plan handles POST /api/v1/dashboards/import/plan. The optional form field
// "policy" selects "selective" (default) or "merge".
func (h *ImportHandler) Plan(c *gin.Context) {
	opts := resolver.Options{Policy: resolver.Selective}

	switch policy := c.PostForm("policy"); policy {
	case "", resolver.Selective.String():
	case resolver.Consolidate.String():
		targets, err := h.parseTargets(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

			return
		}

		opts = resolver.Options{Policy: resolver.Consolidate, Targets: targets}
	default:
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, fmt.Sprintf("unknown policy %q", policy))

		return
	}

	b, ok := h.loadBundle(c)
	if !ok {
		return
	}

	plan, err := h.svc.Plan(b.Archive, opts)
	if err != nil {
		respondImportError(c, h.log, err)

		return
	}

	c.JSON(http.StatusOK, plan.Report())
}

// loadBundle reads and decodes the uploaded bundle, responding on failure.
func (h *ImportHandler) loadBundle(c *gin.Context) (*bundle.Bundle, bool) {
	fh, err := c.FormFile(bundleField)
	if err != nil {
		if isBodyTooLarge(err) {
			respondImportError(c, h.log, err)

			return nil, false
		}

		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "multipart field \"bundle\" is required")

		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		h.log.WithError(err).Error("opening uploaded bundle")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondImportError(c, h.log, err)

		return nil, false
	}

	b, err := h.loader.LoadBytes(c.Request.Context(), data)
	if err != nil {
		respondImportError(c, h.log, err)

		return nil, false
	}

	h.log.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"filename":   fh.Filename,
		"documents":  len(b.Archive),
		"version":    b.Metadata.Version,
	}).Debug("bundle loaded")

	return b, true
}

func (h *ImportHandler) parseTargets(c *gin.Context) (models.MergeTargets, error) {
	targets := h.targets

	id, err := parseOptionalID(c.PostForm("default_database_id"))
	if err != nil {
		return targets, fmt.Errorf("default_database_id: %w", err)
	}

	if id != nil {
		targets.DefaultID = *id
	}

	id, err = parseOptionalID(c.PostForm("clickhouse_database_id"))
	if err != nil {
		return targets, fmt.Errorf("clickhouse_database_id: %w", err)
	}

	if id != nil {
		targets.ClickHouseID = *id
	}

	return targets, nil
}

// importContext detaches the import from client disconnects but bounds it
// by the configured timeout.
func (h *ImportHandler) importContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.Request.Context())
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, h.timeout)
}

func (h *ImportHandler) logImport(c *gin.Context, result *models.ImportResult) {
	h.log.WithFields(logrus.Fields{
		"action":     "bundle.import",
		"policy":     result.Policy,
		"request_id": c.GetString("request_id"),
		"dashboards": len(result.Dashboards),
	}).Info("audit")
}
