package store

import (
	"context"
	"fmt"

	"github.com/persistorai/dashport/internal/models"
)

// QueryAssociations returns the dashboard↔chart links of one dashboard, or of
// every dashboard when dashboardID is nil.
func (s *txStore) QueryAssociations(ctx context.Context, dashboardID *int64) (models.AssociationSet, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.tx.Query(ctx, `SELECT dashboard_id, chart_id FROM dashboard_charts
		WHERE $1::bigint IS NULL OR dashboard_id = $1`, dashboardID)
	if err != nil {
		return nil, fmt.Errorf("querying dashboard links: %w", err)
	}
	defer rows.Close()

	set := models.AssociationSet{}

	for rows.Next() {
		var a models.Association
		if err := rows.Scan(&a.DashboardID, &a.ChartID); err != nil {
			return nil, fmt.Errorf("scanning dashboard link: %w", err)
		}

		set.Add(a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dashboard links: %w", err)
	}

	return set, nil
}

// InsertAssociations inserts links and returns how many were new. Links that
// already exist are left as they are.
func (s *txStore) InsertAssociations(ctx context.Context, links []models.Association) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	dashboards := make([]int64, len(links))
	charts := make([]int64, len(links))

	for i, l := range links {
		dashboards[i] = l.DashboardID
		charts[i] = l.ChartID
	}

	tag, err := s.tx.Exec(ctx, `INSERT INTO dashboard_charts (dashboard_id, chart_id)
		SELECT * FROM unnest($1::bigint[], $2::bigint[])
		ON CONFLICT DO NOTHING`, dashboards, charts)
	if err != nil {
		return 0, fmt.Errorf("inserting dashboard links: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// UpdateDashboard replaces a dashboard's layout and metadata.
func (s *txStore) UpdateDashboard(ctx context.Context, id int64, content models.DashboardContent) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	doc := models.Document{}
	if content.Position != nil {
		doc["position"] = content.Position
	}

	if content.Metadata != nil {
		doc["metadata"] = content.Metadata
	}

	position, err := jsonField(doc, "position")
	if err != nil {
		return err
	}

	metadata, err := jsonField(doc, "metadata")
	if err != nil {
		return err
	}

	tag, err := s.tx.Exec(ctx, `UPDATE dashboards SET position_json = $2, json_metadata = $3, updated_at = now()
		WHERE id = $1`, id, position, metadata)
	if err != nil {
		return fmt.Errorf("updating dashboard %d: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dashboard %d: %w", id, models.ErrNotFound)
	}

	return nil
}

// DeleteChart removes a chart together with its owners and dashboard links.
func (s *txStore) DeleteChart(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.tx.Exec(ctx, "DELETE FROM charts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting chart %d: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chart %d: %w", id, models.ErrNotFound)
	}

	return nil
}
