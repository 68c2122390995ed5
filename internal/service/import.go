// Package service implements the bundle import workflow.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/domain"
	"github.com/persistorai/dashport/internal/metrics"
	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/resolver"
)

// Compile-time check: *ImportService must satisfy domain.ImportService.
var _ domain.ImportService = (*ImportService)(nil)

// ImportService imports dashboard bundles in dependency order and rewrites
// every embedded reference to the target store's identifiers.
type ImportService struct {
	store    domain.Transactor
	migrator domain.DashboardMigrator
	log      *logrus.Logger
}

// NewImportService creates an ImportService. migrator may be nil, in which
// case imported dashboards are not migrated.
func NewImportService(store domain.Transactor, migrator domain.DashboardMigrator, log *logrus.Logger) *ImportService {
	return &ImportService{store: store, migrator: migrator, log: log}
}

// ImportSelective imports the bundle's dashboards together with exactly the
// charts, datasets and databases they transitively need. Existing databases,
// datasets and charts are never overwritten; opts.Overwrite applies to
// dashboards.
func (s *ImportService) ImportSelective(
	ctx context.Context,
	archive models.Archive,
	opts models.ImportOptions,
) (*models.ImportResult, error) {
	return s.run(ctx, archive, resolver.Options{Policy: resolver.Selective}, opts)
}

// ImportMerge imports the bundle's dashboards, routing every dataset onto one
// of the two target databases and overwriting datasets and charts.
func (s *ImportService) ImportMerge(
	ctx context.Context,
	archive models.Archive,
	targets models.MergeTargets,
	opts models.ImportOptions,
) (*models.ImportResult, error) {
	if targets.DefaultID <= 0 || targets.ClickHouseID <= 0 {
		return nil, &models.ConfigError{Reason: "merge mode requires both target database ids"}
	}

	return s.run(ctx, archive, resolver.Options{Policy: resolver.Consolidate, Targets: targets}, opts)
}

// Plan resolves the bundle without touching the store.
func (s *ImportService) Plan(archive models.Archive, opts resolver.Options) (*resolver.Plan, error) {
	return resolver.Resolve(archive, opts)
}

func (s *ImportService) run(
	ctx context.Context,
	archive models.Archive,
	ropts resolver.Options,
	opts models.ImportOptions,
) (*models.ImportResult, error) {
	policy := ropts.Policy.String()
	start := time.Now()

	defer func() {
		metrics.ImportDuration.WithLabelValues(policy).Observe(time.Since(start).Seconds())
	}()

	plan, err := resolver.Resolve(archive, ropts)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(policy, outcomeLabel(err)).Inc()

		return nil, err
	}

	log := s.log.WithField("policy", policy)
	log.WithFields(logrus.Fields{
		"databases":  len(plan.Databases),
		"datasets":   len(plan.Datasets),
		"charts":     len(plan.Charts),
		"dashboards": len(plan.Dashboards),
	}).Info("import plan resolved")

	result := &models.ImportResult{Policy: policy}

	err = s.store.InTx(ctx, func(ctx context.Context, es domain.EntityStore) error {
		r := newImportRun(es, s.migrator, plan, opts, result, log)

		return r.execute(ctx)
	})
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(policy, outcomeLabel(err)).Inc()
		log.WithError(err).Warn("import aborted")

		return nil, err
	}

	metrics.ImportsTotal.WithLabelValues(policy, "success").Inc()
	publishResult(result)
	log.WithFields(logrus.Fields{
		"dashboards":           len(result.Dashboards),
		"associations_created": result.AssociationsCreated,
		"charts_deleted":       result.ChartsDeleted,
		"dropped_references":   result.DroppedReferences,
	}).Info("bundle imported")

	return result, nil
}

// publishResult adds the counts of a committed import to the metrics.
func publishResult(result *models.ImportResult) {
	for _, kind := range []models.Kind{models.KindDatabase, models.KindDataset, models.KindChart, models.KindDashboard} {
		stats := result.Stats(kind)
		for action, n := range map[string]int{
			models.ActionCreated: stats.Created,
			models.ActionUpdated: stats.Updated,
			models.ActionSkipped: stats.Skipped,
		} {
			if n > 0 {
				metrics.EntitiesImported.WithLabelValues(string(kind), action).Add(float64(n))
			}
		}
	}

	for field, byOutcome := range result.References {
		for outcome, n := range byOutcome {
			metrics.References.WithLabelValues(field, outcome).Add(float64(n))
		}
	}

	metrics.AssociationsCreated.Add(float64(result.AssociationsCreated))
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return "config_error"
	case errors.Is(err, models.ErrStructuralRef):
		return "structural_error"
	case errors.Is(err, models.ErrMissingField), errors.Is(err, models.ErrMalformed):
		return "invalid_bundle"
	default:
		return "error"
	}
}
