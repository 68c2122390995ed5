package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/models"
)

// GetDatabase returns the database with the given id.
func (s *txStore) GetDatabase(ctx context.Context, id int64) (*models.Database, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	db, err := s.findDatabase(ctx, "id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("getting database %d: %w", id, err)
	}

	return db, nil
}

func (s *txStore) findDatabase(ctx context.Context, where string, args ...any) (*models.Database, error) {
	row := s.tx.QueryRow(ctx, "SELECT "+databaseColumns+" FROM databases WHERE "+where, args...)

	db, err := scanDatabase(row.Scan)

	return db, notFound(err)
}

// ImportDatabase persists a database document. An existing database is
// matched by uuid, then by name.
func (s *txStore) ImportDatabase(
	ctx context.Context,
	doc models.Document,
	opts models.EntityImportOptions,
) (*models.Database, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	id, err := docUUID(doc)
	if err != nil {
		return nil, err
	}

	name, err := requireString(doc, "database_name")
	if err != nil {
		return nil, err
	}

	body, err := payload(doc)
	if err != nil {
		return nil, err
	}

	uri := doc.String("sqlalchemy_uri")

	existing, err := s.findDatabase(ctx, "uuid = $1", id)
	if errors.Is(err, models.ErrNotFound) {
		existing, err = s.findDatabase(ctx, "database_name = $1", name)
	}

	switch {
	case err == nil && !opts.Overwrite:
		existing.Action = models.ActionSkipped

		return existing, nil
	case err == nil:
		row := s.tx.QueryRow(ctx, `UPDATE databases
			SET database_name = $2, sqlalchemy_uri = $3, payload = $4, updated_at = now()
			WHERE id = $1
			RETURNING `+databaseColumns, existing.ID, name, uri, body)

		return s.finishDatabase(row.Scan, models.ActionUpdated)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("looking up database %s: %w", id, err)
	}

	row := s.tx.QueryRow(ctx, `INSERT INTO databases (uuid, database_name, sqlalchemy_uri, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING `+databaseColumns, id, name, uri, body)

	return s.finishDatabase(row.Scan, models.ActionCreated)
}

func (s *txStore) finishDatabase(scan func(dest ...any) error, action string) (*models.Database, error) {
	db, err := scanDatabase(scan)
	if err != nil {
		return nil, duplicate(err, action+" database")
	}

	db.Action = action
	s.logAction(models.KindDatabase, db.UUID, db.ID, action)

	return db, nil
}

func (s *txStore) findDataset(ctx context.Context, where string, args ...any) (*models.Dataset, error) {
	row := s.tx.QueryRow(ctx, "SELECT "+datasetColumns+" FROM datasets WHERE "+where, args...)

	ds, err := scanDataset(row.Scan)

	return ds, notFound(err)
}

// ImportDataset persists a dataset document bound to doc["database_id"]. An
// existing dataset is matched by uuid, then by (database, schema, table).
func (s *txStore) ImportDataset(
	ctx context.Context,
	doc models.Document,
	opts models.EntityImportOptions,
) (*models.Dataset, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	id, err := docUUID(doc)
	if err != nil {
		return nil, err
	}

	databaseID, err := requireID(doc, "database_id")
	if err != nil {
		return nil, err
	}

	table, err := requireString(doc, "table_name")
	if err != nil {
		return nil, err
	}

	body, err := payload(doc)
	if err != nil {
		return nil, err
	}

	schema := doc.String("schema")

	existing, err := s.findDataset(ctx, "uuid = $1", id)
	if errors.Is(err, models.ErrNotFound) {
		existing, err = s.findDataset(ctx,
			"database_id = $1 AND schema = $2 AND table_name = $3", databaseID, schema, table)
	}

	switch {
	case err == nil && !opts.Overwrite:
		existing.Action = models.ActionSkipped

		return existing, nil
	case err == nil:
		row := s.tx.QueryRow(ctx, `UPDATE datasets
			SET database_id = $2, schema = $3, table_name = $4, payload = $5, updated_at = now()
			WHERE id = $1
			RETURNING `+datasetColumns, existing.ID, databaseID, schema, table, body)

		return s.finishDataset(row.Scan, models.ActionUpdated)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("looking up dataset %s: %w", id, err)
	}

	row := s.tx.QueryRow(ctx, `INSERT INTO datasets (uuid, database_id, schema, table_name, datasource_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+datasetColumns, id, databaseID, schema, table, models.DatasourceTypeTable, body)

	return s.finishDataset(row.Scan, models.ActionCreated)
}

func (s *txStore) finishDataset(scan func(dest ...any) error, action string) (*models.Dataset, error) {
	ds, err := scanDataset(scan)
	if err != nil {
		return nil, duplicate(err, action+" dataset")
	}

	ds.Action = action
	s.logAction(models.KindDataset, ds.UUID, ds.ID, action)

	return ds, nil
}

func (s *txStore) findChart(ctx context.Context, where string, args ...any) (*models.Chart, error) {
	row := s.tx.QueryRow(ctx, "SELECT "+chartColumns+" FROM charts WHERE "+where, args...)

	c, err := scanChart(row.Scan)

	return c, notFound(err)
}

// findChartByParent returns the oldest chart with the given name on a dataset.
func (s *txStore) findChartByParent(ctx context.Context, datasourceID int64, name string) (*models.Chart, error) {
	return s.findChart(ctx, "datasource_id = $1 AND slice_name = $2 ORDER BY id LIMIT 1", datasourceID, name)
}

// ImportChart persists a chart document bound to doc["datasource_id"].
// With MatchByParent a chart whose uuid is unknown, or is bound to another
// dataset, is matched by (dataset, name); a chart that still matches nothing
// is created, under a fresh uuid when the source uuid is already taken.
func (s *txStore) ImportChart(
	ctx context.Context,
	doc models.Document,
	opts models.EntityImportOptions,
) (*models.Chart, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	id, err := docUUID(doc)
	if err != nil {
		return nil, err
	}

	datasourceID, err := requireID(doc, "datasource_id")
	if err != nil {
		return nil, err
	}

	name, err := requireString(doc, "slice_name")
	if err != nil {
		return nil, err
	}

	params, err := jsonField(doc, "params")
	if err != nil {
		return nil, err
	}

	body, err := payload(doc)
	if err != nil {
		return nil, err
	}

	datasourceType := doc.String("datasource_type")
	if datasourceType == "" {
		datasourceType = models.DatasourceTypeTable
	}

	vizType := doc.String("viz_type")
	queryContext := optionalString(doc, "query_context")

	existing, err := s.findChart(ctx, "uuid = $1", id)

	switch {
	case err == nil && opts.MatchByParent && existing.DatasourceID != datasourceID:
		existing, err = s.findChartByParent(ctx, datasourceID, name)
		if errors.Is(err, models.ErrNotFound) {
			id = uuid.New()
		}
	case errors.Is(err, models.ErrNotFound) && opts.MatchByParent:
		existing, err = s.findChartByParent(ctx, datasourceID, name)
	}

	switch {
	case err == nil && !opts.Overwrite:
		existing.Action = models.ActionSkipped

		return existing, nil
	case err == nil:
		row := s.tx.QueryRow(ctx, `UPDATE charts
			SET slice_name = $2, viz_type = $3, datasource_id = $4, datasource_type = $5,
			    params = $6, query_context = $7, payload = $8, updated_at = now()
			WHERE id = $1
			RETURNING `+chartColumns,
			existing.ID, name, vizType, datasourceID, datasourceType, params, queryContext, body)

		return s.finishChart(row.Scan, models.ActionUpdated)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("looking up chart %s: %w", id, err)
	}

	row := s.tx.QueryRow(ctx, `INSERT INTO charts
		(uuid, slice_name, viz_type, datasource_id, datasource_type, params, query_context, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+chartColumns,
		id, name, vizType, datasourceID, datasourceType, params, queryContext, body)

	chart, err := s.finishChart(row.Scan, models.ActionCreated)
	if err != nil {
		return nil, err
	}

	if opts.OwnerID != nil {
		_, err := s.tx.Exec(ctx, `INSERT INTO chart_owners (chart_id, user_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, chart.ID, *opts.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("adding owner of chart %d: %w", chart.ID, err)
		}
	}

	return chart, nil
}

func (s *txStore) finishChart(scan func(dest ...any) error, action string) (*models.Chart, error) {
	c, err := scanChart(scan)
	if err != nil {
		return nil, duplicate(err, action+" chart")
	}

	c.Action = action
	s.logAction(models.KindChart, c.UUID, c.ID, action)

	return c, nil
}

func (s *txStore) findDashboard(ctx context.Context, where string, args ...any) (*models.Dashboard, error) {
	row := s.tx.QueryRow(ctx, "SELECT "+dashboardColumns+" FROM dashboards WHERE "+where, args...)

	d, err := scanDashboard(row.Scan)

	return d, notFound(err)
}

// ImportDashboard persists a rewritten dashboard document. An existing
// dashboard is matched by uuid, then by slug.
func (s *txStore) ImportDashboard(
	ctx context.Context,
	doc models.Document,
	opts models.EntityImportOptions,
) (*models.Dashboard, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	id, err := docUUID(doc)
	if err != nil {
		return nil, err
	}

	position, err := jsonField(doc, "position")
	if err != nil {
		return nil, err
	}

	metadata, err := jsonField(doc, "metadata")
	if err != nil {
		return nil, err
	}

	body, err := payload(doc)
	if err != nil {
		return nil, err
	}

	title := doc.String("dashboard_title")
	slug := optionalString(doc, "slug")

	existing, err := s.findDashboard(ctx, "uuid = $1", id)
	if errors.Is(err, models.ErrNotFound) && slug != nil {
		existing, err = s.findDashboard(ctx, "slug = $1", *slug)
	}

	switch {
	case err == nil && !opts.Overwrite:
		existing.Action = models.ActionSkipped

		return existing, nil
	case err == nil:
		row := s.tx.QueryRow(ctx, `UPDATE dashboards
			SET dashboard_title = $2, slug = $3, position_json = $4, json_metadata = $5,
			    payload = $6, updated_at = now()
			WHERE id = $1
			RETURNING `+dashboardColumns,
			existing.ID, title, slug, position, metadata, body)

		return s.finishDashboard(row.Scan, models.ActionUpdated)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("looking up dashboard %s: %w", id, err)
	}

	row := s.tx.QueryRow(ctx, `INSERT INTO dashboards
		(uuid, dashboard_title, slug, position_json, json_metadata, created_by_fk, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+dashboardColumns,
		id, title, slug, position, metadata, opts.OwnerID, body)

	return s.finishDashboard(row.Scan, models.ActionCreated)
}

func (s *txStore) finishDashboard(scan func(dest ...any) error, action string) (*models.Dashboard, error) {
	d, err := scanDashboard(scan)
	if err != nil {
		return nil, duplicate(err, action+" dashboard")
	}

	d.Action = action
	s.logAction(models.KindDashboard, d.UUID, d.ID, action)

	return d, nil
}

func (s *txStore) logAction(kind models.Kind, entityUUID string, id int64, action string) {
	s.log.WithFields(logrus.Fields{
		"kind":   kind,
		"uuid":   entityUUID,
		"id":     id,
		"action": action,
	}).Debug("entity persisted")
}
