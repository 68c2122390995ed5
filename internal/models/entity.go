package models

import "time"

// Store actions reported for every imported entity.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
)

// VizTypeFilterBox is the deprecated chart type removed after import.
const VizTypeFilterBox = "filter_box"

// DatasourceTypeTable is the datasource type tag of physical and virtual datasets.
const DatasourceTypeTable = "table"

// Database is a persisted database connection.
type Database struct {
	ID            int64     `json:"id"`
	UUID          string    `json:"uuid"`
	Name          string    `json:"database_name"`
	SQLAlchemyURI string    `json:"sqlalchemy_uri"`
	Action        string    `json:"action,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Dataset is a persisted dataset (table) bound to a database.
type Dataset struct {
	ID             int64     `json:"id"`
	UUID           string    `json:"uuid"`
	DatabaseID     int64     `json:"database_id"`
	Schema         string    `json:"schema,omitempty"`
	TableName      string    `json:"table_name"`
	DatasourceType string    `json:"datasource_type"`
	Action         string    `json:"action,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Chart is a persisted chart (slice) bound to a dataset.
type Chart struct {
	ID             int64          `json:"id"`
	UUID           string         `json:"uuid"`
	SliceName      string         `json:"slice_name"`
	VizType        string         `json:"viz_type"`
	DatasourceID   int64          `json:"datasource_id"`
	DatasourceType string         `json:"datasource_type"`
	Params         map[string]any `json:"params,omitempty"`
	Action         string         `json:"action,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Dashboard is a persisted dashboard.
type Dashboard struct {
	ID        int64          `json:"id"`
	UUID      string         `json:"uuid"`
	Title     string         `json:"dashboard_title"`
	Slug      *string        `json:"slug,omitempty"`
	Position  map[string]any `json:"position,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedBy *int64         `json:"created_by_fk,omitempty"`
	Action    string         `json:"action,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DashboardContent is the editable part of a dashboard: its layout tree and
// its JSON metadata.
type DashboardContent struct {
	Position map[string]any
	Metadata map[string]any
}

// EntityImportOptions controls how the store persists a single document.
type EntityImportOptions struct {
	// Overwrite updates an existing entity in place; otherwise it is returned unchanged.
	Overwrite bool
	// MatchByParent makes chart imports match on (datasource, name) when the
	// UUID is unknown or is bound to a different datasource.
	MatchByParent bool
	// OwnerID is attached as owner of newly created charts and recorded as the
	// creator of dashboards.
	OwnerID *int64
}

// Association is one dashboard↔chart link row.
type Association struct {
	DashboardID int64 `json:"dashboard_id"`
	ChartID     int64 `json:"chart_id"`
}

// AssociationSet is a set of dashboard↔chart links.
type AssociationSet map[Association]struct{}

// Has reports whether the set contains the link.
func (s AssociationSet) Has(a Association) bool {
	_, ok := s[a]

	return ok
}

// Add inserts the link.
func (s AssociationSet) Add(a Association) {
	s[a] = struct{}{}
}
