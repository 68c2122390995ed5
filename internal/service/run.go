package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/domain"
	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/refs"
	"github.com/persistorai/dashport/internal/resolver"
	"github.com/persistorai/dashport/internal/rewrite"
)

// importRun holds the state of one import: the plan, the identifier maps
// filled tier by tier, and the entities persisted so far.
type importRun struct {
	es       domain.EntityStore
	migrator domain.DashboardMigrator
	plan     *resolver.Plan
	opts     models.ImportOptions
	result   *models.ImportResult
	log      *logrus.Entry

	maps       *models.IDMaps
	charts     []*models.Chart
	dashboards []*models.Dashboard
	// dashboardCharts lists the imported chart ids each dashboard's layout uses.
	dashboardCharts map[int64][]int64
}

func newImportRun(
	es domain.EntityStore,
	migrator domain.DashboardMigrator,
	plan *resolver.Plan,
	opts models.ImportOptions,
	result *models.ImportResult,
	log *logrus.Entry,
) *importRun {
	return &importRun{
		es:              es,
		migrator:        migrator,
		plan:            plan,
		opts:            opts,
		result:          result,
		log:             log,
		maps:            models.NewIDMaps(),
		dashboardCharts: map[int64][]int64{},
	}
}

func (r *importRun) consolidating() bool {
	return r.plan.Policy == resolver.Consolidate
}

// execute imports every tier in dependency order, links dashboards to their
// charts and runs post-processing.
func (r *importRun) execute(ctx context.Context) error {
	if err := r.importDatabases(ctx); err != nil {
		return err
	}

	if err := r.importDatasets(ctx); err != nil {
		return err
	}

	if err := r.importCharts(ctx); err != nil {
		return err
	}

	if err := r.importDashboards(ctx); err != nil {
		return err
	}

	if err := r.migrateDashboards(ctx); err != nil {
		return err
	}

	if err := r.deleteFilterBoxes(ctx); err != nil {
		return err
	}

	for _, dash := range r.dashboards {
		r.result.Dashboards = append(r.result.Dashboards, *dash)
	}

	return nil
}

func (r *importRun) importDatabases(ctx context.Context) error {
	if r.consolidating() {
		return r.useTargetDatabases(ctx)
	}

	for _, e := range r.plan.Databases {
		db, err := r.es.ImportDatabase(ctx, e.Doc, models.EntityImportOptions{})
		if err != nil {
			return fmt.Errorf("importing database %s: %w", e.Path, err)
		}

		r.record(models.KindDatabase, db.Action)
		r.maps.DatabaseIDs[e.UUID] = db.ID
	}

	return nil
}

// useTargetDatabases maps each planned database onto its consolidation
// target after checking that the target exists.
func (r *importRun) useTargetDatabases(ctx context.Context) error {
	verified := map[int64]bool{}

	for _, e := range r.plan.Databases {
		if !verified[e.TargetID] {
			if _, err := r.es.GetDatabase(ctx, e.TargetID); err != nil {
				if errors.Is(err, models.ErrNotFound) {
					return &models.ConfigError{Reason: fmt.Sprintf("target %s database %d does not exist", e.Family, e.TargetID)}
				}

				return fmt.Errorf("loading target database %d: %w", e.TargetID, err)
			}

			verified[e.TargetID] = true
		}

		r.maps.DatabaseIDs[e.UUID] = e.TargetID
		r.log.WithFields(logrus.Fields{
			"database_uuid": e.UUID,
			"family":        e.Family,
			"target_id":     e.TargetID,
		}).Debug("database routed to merge target")
	}

	return nil
}

func (r *importRun) importDatasets(ctx context.Context) error {
	opts := models.EntityImportOptions{Overwrite: r.consolidating()}

	for _, e := range r.plan.Datasets {
		e.Doc["database_id"] = r.maps.DatabaseIDs[e.Doc.String("database_uuid")]

		if oldID, ok := refs.ToInt64(e.Doc["id"]); ok {
			r.maps.DatasetOldIDs[oldID] = e.UUID
		}

		ds, err := r.es.ImportDataset(ctx, e.Doc, opts)
		if err != nil {
			return fmt.Errorf("importing dataset %s: %w", e.Path, err)
		}

		r.record(models.KindDataset, ds.Action)
		r.maps.DatasetInfo[e.UUID] = models.DatasetRef{
			ID:   ds.ID,
			Type: ds.DatasourceType,
			Name: ds.TableName,
			UUID: ds.UUID,
		}
	}

	return nil
}

func (r *importRun) importCharts(ctx context.Context) error {
	opts := models.EntityImportOptions{
		Overwrite:     r.consolidating(),
		MatchByParent: r.consolidating(),
		OwnerID:       r.opts.ActorID,
	}

	for _, e := range r.plan.Charts {
		prepareChart(e.Doc, r.maps.DatasetInfo[e.Doc.String("dataset_uuid")])

		chart, err := r.es.ImportChart(ctx, e.Doc, opts)
		if err != nil {
			return fmt.Errorf("importing chart %s: %w", e.Path, err)
		}

		r.record(models.KindChart, chart.Action)
		r.maps.ChartIDs[e.UUID] = chart.ID
		r.maps.ChartUUIDRemap[e.UUID] = chart.UUID
		r.charts = append(r.charts, chart)
	}

	return nil
}

// prepareChart points a chart document at its imported dataset. The stored
// query context references source ids and is cleared.
func prepareChart(doc models.Document, ds models.DatasetRef) {
	doc["datasource_id"] = ds.ID
	doc["datasource_type"] = ds.Type
	doc["datasource_name"] = ds.Name

	params := doc.Map("params")
	if params == nil {
		params = map[string]any{}
	}

	params["datasource"] = fmt.Sprintf("%d__%s", ds.ID, ds.Type)
	doc["params"] = params

	if _, ok := doc["query_context"]; ok {
		doc["query_context"] = nil
	}
}

func (r *importRun) importDashboards(ctx context.Context) error {
	var existing models.AssociationSet

	if !r.consolidating() {
		var err error

		existing, err = r.es.QueryAssociations(ctx, nil)
		if err != nil {
			return fmt.Errorf("loading dashboard links: %w", err)
		}
	}

	pending := models.AssociationSet{}

	var links []models.Association

	for _, e := range r.plan.Dashboards {
		chartIDs := r.layoutChartIDs(e.Doc)

		report, err := rewrite.Dashboard(e.Doc, r.maps, rewrite.Options{RemapUUIDs: r.consolidating()})
		r.recordReport(report)

		if err != nil {
			return fmt.Errorf("rewriting dashboard %s: %w", e.Path, err)
		}

		dash, err := r.es.ImportDashboard(ctx, e.Doc, models.EntityImportOptions{
			Overwrite: r.opts.Overwrite,
			OwnerID:   r.opts.ActorID,
		})
		if err != nil {
			return fmt.Errorf("importing dashboard %s: %w", e.Path, err)
		}

		r.record(models.KindDashboard, dash.Action)
		r.dashboards = append(r.dashboards, dash)
		r.dashboardCharts[dash.ID] = chartIDs

		current := existing
		if r.consolidating() {
			current, err = r.es.QueryAssociations(ctx, &dash.ID)
			if err != nil {
				return fmt.Errorf("loading links of dashboard %d: %w", dash.ID, err)
			}
		}

		for _, chartID := range chartIDs {
			link := models.Association{DashboardID: dash.ID, ChartID: chartID}
			if current.Has(link) || pending.Has(link) {
				continue
			}

			pending.Add(link)
			links = append(links, link)
		}
	}

	return r.link(ctx, links)
}

// layoutChartIDs returns the sorted target ids of the imported charts a
// dashboard's layout references. It must run before the layout is rewritten.
func (r *importRun) layoutChartIDs(doc models.Document) []int64 {
	var ids []int64

	for uuid := range refs.FindChartUUIDs(doc["position"]) {
		if id, ok := r.maps.ChartIDs[uuid]; ok {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// link inserts the missing dashboard↔chart rows. Existing rows are never removed.
func (r *importRun) link(ctx context.Context, links []models.Association) error {
	if len(links) == 0 {
		return nil
	}

	n, err := r.es.InsertAssociations(ctx, links)
	if err != nil {
		return fmt.Errorf("linking dashboards to charts: %w", err)
	}

	r.result.AssociationsCreated += n

	return nil
}

func (r *importRun) migrateDashboards(ctx context.Context) error {
	if r.migrator == nil {
		return nil
	}

	byID := make(map[int64]*models.Chart, len(r.charts))
	for _, c := range r.charts {
		byID[c.ID] = c
	}

	for _, dash := range r.dashboards {
		var charts []models.Chart

		for _, id := range r.dashboardCharts[dash.ID] {
			if c, ok := byID[id]; ok {
				charts = append(charts, *c)
			}
		}

		content, changed, err := r.migrator.MigrateDashboard(ctx, dash, charts)
		if err != nil {
			return fmt.Errorf("migrating dashboard %s: %w", dash.UUID, err)
		}

		if !changed {
			continue
		}

		if err := r.es.UpdateDashboard(ctx, dash.ID, content); err != nil {
			return fmt.Errorf("saving migrated dashboard %s: %w", dash.UUID, err)
		}

		dash.Position = content.Position
		dash.Metadata = content.Metadata
		r.result.DashboardsMigrated++
	}

	return nil
}

// deleteFilterBoxes removes the imported charts of the deprecated filter-box
// type once dashboards have been migrated off them.
func (r *importRun) deleteFilterBoxes(ctx context.Context) error {
	deleted := map[int64]bool{}

	for _, c := range r.charts {
		if c.VizType != models.VizTypeFilterBox || deleted[c.ID] {
			continue
		}

		if err := r.es.DeleteChart(ctx, c.ID); err != nil {
			return fmt.Errorf("deleting filter box chart %s: %w", c.UUID, err)
		}

		deleted[c.ID] = true
		r.result.ChartsDeleted++
	}

	return nil
}

func (r *importRun) record(kind models.Kind, action string) {
	r.result.Stats(kind).Record(action)
}

func (r *importRun) recordReport(report *rewrite.Report) {
	if report == nil {
		return
	}

	for field, byOutcome := range report.Counts {
		for outcome, n := range byOutcome {
			r.result.RecordReferences(field, outcome.String(), n)
		}
	}

	dropped := report.Total(rewrite.Dropped)
	r.result.DroppedReferences += dropped

	if dropped > 0 {
		r.log.WithFields(logrus.Fields{
			"dashboard_uuid": report.DashboardUUID,
			"dropped":        dropped,
		}).Debug("advisory references dropped")
	}
}
