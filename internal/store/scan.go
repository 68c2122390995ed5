package store

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/persistorai/dashport/internal/models"
)

const databaseColumns = `id, uuid, database_name, sqlalchemy_uri, created_at, updated_at`

const datasetColumns = `id, uuid, database_id, schema, table_name, datasource_type,
	created_at, updated_at`

const chartColumns = `id, uuid, slice_name, viz_type, datasource_id, datasource_type,
	params, created_at, updated_at`

const dashboardColumns = `id, uuid, dashboard_title, slug, position_json, json_metadata,
	created_by_fk, created_at, updated_at`

func scanDatabase(scan func(dest ...any) error) (*models.Database, error) {
	var d models.Database
	var id uuid.UUID

	if err := scan(&d.ID, &id, &d.Name, &d.SQLAlchemyURI, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}

	d.UUID = id.String()

	return &d, nil
}

func scanDataset(scan func(dest ...any) error) (*models.Dataset, error) {
	var d models.Dataset
	var id uuid.UUID

	err := scan(
		&d.ID,
		&id,
		&d.DatabaseID,
		&d.Schema,
		&d.TableName,
		&d.DatasourceType,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.UUID = id.String()

	return &d, nil
}

func scanChart(scan func(dest ...any) error) (*models.Chart, error) {
	var c models.Chart
	var id uuid.UUID
	var params []byte

	err := scan(
		&c.ID,
		&id,
		&c.SliceName,
		&c.VizType,
		&c.DatasourceID,
		&c.DatasourceType,
		&params,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.UUID = id.String()

	if err := json.Unmarshal(params, &c.Params); err != nil {
		return nil, fmt.Errorf("decoding params of chart %d: %w", c.ID, err)
	}

	return &c, nil
}

func scanDashboard(scan func(dest ...any) error) (*models.Dashboard, error) {
	var d models.Dashboard
	var id uuid.UUID
	var position, metadata []byte

	err := scan(
		&d.ID,
		&id,
		&d.Title,
		&d.Slug,
		&position,
		&metadata,
		&d.CreatedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.UUID = id.String()

	if err := json.Unmarshal(position, &d.Position); err != nil {
		return nil, fmt.Errorf("decoding position of dashboard %d: %w", d.ID, err)
	}

	if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata of dashboard %d: %w", d.ID, err)
	}

	return &d, nil
}
