package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/persistorai/dashport/internal/domain"
	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/refs"
)

// memStore is an in-memory EntityStore. InTx snapshots its state and restores
// it when fn fails, so tests can observe rollback.
type memStore struct {
	mu    sync.Mutex
	calls []string

	nextID     int64
	databases  map[string]models.Database
	datasets   map[string]models.Dataset
	charts     map[string]models.Chart
	dashboards map[string]models.Dashboard
	links      models.AssociationSet
	owners     map[int64][]int64

	// fail makes the named method return the error.
	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		nextID:     100,
		databases:  map[string]models.Database{},
		datasets:   map[string]models.Dataset{},
		charts:     map[string]models.Chart{},
		dashboards: map[string]models.Dashboard{},
		links:      models.AssociationSet{},
		owners:     map[int64][]int64{},
		fail:       map[string]error{},
	}
}

type memSnapshot struct {
	nextID     int64
	databases  map[string]models.Database
	datasets   map[string]models.Dataset
	charts     map[string]models.Chart
	dashboards map[string]models.Dashboard
	links      models.AssociationSet
	owners     map[int64][]int64
}

func (m *memStore) snapshot() memSnapshot {
	return memSnapshot{
		nextID:     m.nextID,
		databases:  maps.Clone(m.databases),
		datasets:   maps.Clone(m.datasets),
		charts:     maps.Clone(m.charts),
		dashboards: maps.Clone(m.dashboards),
		links:      maps.Clone(m.links),
		owners:     maps.Clone(m.owners),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.nextID = s.nextID
	m.databases = s.databases
	m.datasets = s.datasets
	m.charts = s.charts
	m.dashboards = s.dashboards
	m.links = s.links
	m.owners = s.owners
}

func (m *memStore) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)

	return m.fail[name]
}

func (m *memStore) called(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}

	return n
}

func (m *memStore) id() int64 {
	m.nextID++

	return m.nextID
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, es domain.EntityStore) error) error {
	snap := m.snapshot()

	if err := fn(ctx, m); err != nil {
		m.restore(snap)

		return err
	}

	return nil
}

func (m *memStore) GetDatabase(_ context.Context, id int64) (*models.Database, error) {
	if err := m.record("GetDatabase"); err != nil {
		return nil, err
	}

	for _, db := range m.databases {
		if db.ID == id {
			return &db, nil
		}
	}

	return nil, models.ErrNotFound
}

func (m *memStore) ImportDatabase(_ context.Context, doc models.Document, opts models.EntityImportOptions) (*models.Database, error) {
	if err := m.record("ImportDatabase"); err != nil {
		return nil, err
	}

	uuid := doc.UUID()
	if uuid == "" {
		return nil, models.ErrMissingUUID
	}

	db, ok := m.databases[uuid]
	switch {
	case ok && !opts.Overwrite:
		db.Action = models.ActionSkipped

		return &db, nil
	case ok:
		db.Action = models.ActionUpdated
	default:
		db = models.Database{ID: m.id(), UUID: uuid, Action: models.ActionCreated}
	}

	db.Name = doc.String("database_name")
	db.SQLAlchemyURI = doc.String("sqlalchemy_uri")
	m.databases[uuid] = db

	return &db, nil
}

func (m *memStore) ImportDataset(_ context.Context, doc models.Document, opts models.EntityImportOptions) (*models.Dataset, error) {
	if err := m.record("ImportDataset"); err != nil {
		return nil, err
	}

	uuid := doc.UUID()
	if uuid == "" {
		return nil, models.ErrMissingUUID
	}

	ds, ok := m.datasets[uuid]
	switch {
	case ok && !opts.Overwrite:
		ds.Action = models.ActionSkipped

		return &ds, nil
	case ok:
		ds.Action = models.ActionUpdated
	default:
		ds = models.Dataset{ID: m.id(), UUID: uuid, DatasourceType: models.DatasourceTypeTable, Action: models.ActionCreated}
	}

	ds.DatabaseID, _ = refs.ToInt64(doc["database_id"])
	ds.TableName = doc.String("table_name")
	m.datasets[uuid] = ds

	return &ds, nil
}

func (m *memStore) ImportChart(_ context.Context, doc models.Document, opts models.EntityImportOptions) (*models.Chart, error) {
	if err := m.record("ImportChart"); err != nil {
		return nil, err
	}

	uuid := doc.UUID()
	if uuid == "" {
		return nil, models.ErrMissingUUID
	}

	dsID, _ := refs.ToInt64(doc["datasource_id"])
	name := doc.String("slice_name")

	chart, ok := m.charts[uuid]
	if opts.MatchByParent && (!ok || chart.DatasourceID != dsID) {
		ok = false

		for _, c := range m.charts {
			if c.DatasourceID == dsID && c.SliceName == name {
				chart, ok = c, true

				break
			}
		}
	}

	switch {
	case ok && !opts.Overwrite:
		chart.Action = models.ActionSkipped

		return &chart, nil
	case ok:
		chart.Action = models.ActionUpdated
	default:
		chart = models.Chart{ID: m.id(), UUID: uuid, Action: models.ActionCreated}
		if opts.OwnerID != nil {
			m.owners[chart.ID] = append(m.owners[chart.ID], *opts.OwnerID)
		}
	}

	chart.SliceName = name
	chart.VizType = doc.String("viz_type")
	chart.DatasourceID = dsID
	chart.DatasourceType = doc.String("datasource_type")
	chart.Params = doc.Map("params")
	m.charts[chart.UUID] = chart

	return &chart, nil
}

func (m *memStore) ImportDashboard(_ context.Context, doc models.Document, opts models.EntityImportOptions) (*models.Dashboard, error) {
	if err := m.record("ImportDashboard"); err != nil {
		return nil, err
	}

	uuid := doc.UUID()
	if uuid == "" {
		return nil, models.ErrMissingUUID
	}

	dash, ok := m.dashboards[uuid]
	switch {
	case ok && !opts.Overwrite:
		dash.Action = models.ActionSkipped

		return &dash, nil
	case ok:
		dash.Action = models.ActionUpdated
	default:
		dash = models.Dashboard{ID: m.id(), UUID: uuid, Action: models.ActionCreated, CreatedBy: opts.OwnerID}
	}

	dash.Title = doc.String("dashboard_title")
	dash.Position = doc.Map("position")
	dash.Metadata = doc.Map("metadata")
	m.dashboards[uuid] = dash

	return &dash, nil
}

func (m *memStore) QueryAssociations(_ context.Context, dashboardID *int64) (models.AssociationSet, error) {
	if err := m.record("QueryAssociations"); err != nil {
		return nil, err
	}

	out := models.AssociationSet{}

	for link := range m.links {
		if dashboardID == nil || link.DashboardID == *dashboardID {
			out.Add(link)
		}
	}

	return out, nil
}

func (m *memStore) InsertAssociations(_ context.Context, links []models.Association) (int, error) {
	if err := m.record("InsertAssociations"); err != nil {
		return 0, err
	}

	n := 0

	for _, link := range links {
		if m.links.Has(link) {
			return n, fmt.Errorf("link %v: %w", link, models.ErrDuplicateKey)
		}

		m.links.Add(link)
		n++
	}

	return n, nil
}

func (m *memStore) UpdateDashboard(_ context.Context, id int64, content models.DashboardContent) error {
	if err := m.record("UpdateDashboard"); err != nil {
		return err
	}

	for uuid, dash := range m.dashboards {
		if dash.ID == id {
			dash.Position = content.Position
			dash.Metadata = content.Metadata
			m.dashboards[uuid] = dash

			return nil
		}
	}

	return models.ErrNotFound
}

func (m *memStore) DeleteChart(_ context.Context, id int64) error {
	if err := m.record("DeleteChart"); err != nil {
		return err
	}

	for uuid, chart := range m.charts {
		if chart.ID != id {
			continue
		}

		delete(m.charts, uuid)

		for link := range m.links {
			if link.ChartID == id {
				delete(m.links, link)
			}
		}

		return nil
	}

	return models.ErrNotFound
}

func (m *memStore) chart(uuid string) models.Chart {
	return m.charts[uuid]
}

// mockMigrator returns configured responses and records the charts it saw.
type mockMigrator struct {
	migrate func(dash *models.Dashboard, charts []models.Chart) (models.DashboardContent, bool, error)
	seen    map[string][]models.Chart
}

func (m *mockMigrator) MigrateDashboard(_ context.Context, dash *models.Dashboard, charts []models.Chart) (models.DashboardContent, bool, error) {
	if m.seen == nil {
		m.seen = map[string][]models.Chart{}
	}

	m.seen[dash.UUID] = charts

	if m.migrate == nil {
		return models.DashboardContent{}, false, nil
	}

	return m.migrate(dash, charts)
}

var errStoreDown = errors.New("store down")
