// Package domain defines the canonical interfaces shared between the import
// service, the entity store and the API layers. Consumers should depend on
// these interfaces rather than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/resolver"
)

// EntityStore persists bundle documents and the dashboard↔chart links.
// All methods run inside the transaction handed out by Transactor.
type EntityStore interface {
	GetDatabase(ctx context.Context, id int64) (*models.Database, error)
	ImportDatabase(ctx context.Context, doc models.Document, opts models.EntityImportOptions) (*models.Database, error)
	ImportDataset(ctx context.Context, doc models.Document, opts models.EntityImportOptions) (*models.Dataset, error)
	ImportChart(ctx context.Context, doc models.Document, opts models.EntityImportOptions) (*models.Chart, error)
	ImportDashboard(ctx context.Context, doc models.Document, opts models.EntityImportOptions) (*models.Dashboard, error)

	// QueryAssociations returns the links of one dashboard, or of every
	// dashboard when dashboardID is nil.
	QueryAssociations(ctx context.Context, dashboardID *int64) (models.AssociationSet, error)
	InsertAssociations(ctx context.Context, links []models.Association) (int, error)
	UpdateDashboard(ctx context.Context, id int64, content models.DashboardContent) error
	DeleteChart(ctx context.Context, id int64) error
}

// Transactor runs fn inside one transaction: it commits when fn returns nil
// and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, es EntityStore) error) error
}

// DashboardMigrator upgrades legacy dashboards after import. It returns the
// new layout and metadata and whether anything changed.
type DashboardMigrator interface {
	MigrateDashboard(ctx context.Context, dash *models.Dashboard, charts []models.Chart) (models.DashboardContent, bool, error)
}

// ImportService defines the bundle import operations exposed to transports.
type ImportService interface {
	ImportSelective(ctx context.Context, archive models.Archive, opts models.ImportOptions) (*models.ImportResult, error)
	ImportMerge(ctx context.Context, archive models.Archive, targets models.MergeTargets, opts models.ImportOptions) (*models.ImportResult, error)
	Plan(archive models.Archive, opts resolver.Options) (*resolver.Plan, error)
}
