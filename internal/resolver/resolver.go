// Package resolver selects and orders the bundle documents an import needs.
//
// The dependency graph is fixed: dashboards reference charts (layout) and
// datasets (native filters), charts reference one dataset, datasets reference
// one database. Resolve walks it top-down to discover what is needed, then
// emits the needed documents bottom-up so each tier can consume the
// identifiers produced by the tier before it.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/refs"
)

// Policy selects how databases are resolved.
type Policy int

const (
	// Selective imports exactly what the bundle's dashboards transitively need.
	Selective Policy = iota
	// Consolidate routes every dataset onto one of two pre-existing databases.
	Consolidate
)

func (p Policy) String() string {
	switch p {
	case Selective:
		return "selective"
	case Consolidate:
		return "merge"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Family is the engine family of a database in consolidate mode.
type Family string

// Engine families, matched by a substring of the connection string.
const (
	FamilyDefault    Family = "postgres"
	FamilyClickHouse Family = "clickhouse"
)

// maxConsolidatedDatabases is the number of target databases consolidate mode supports.
const maxConsolidatedDatabases = 2

// Options configures Resolve.
type Options struct {
	Policy  Policy
	Targets models.MergeTargets
}

// Entry is one planned document.
type Entry struct {
	Path string
	UUID string
	Doc  models.Document

	// Family and TargetID are set for databases in consolidate mode.
	Family   Family
	TargetID int64
}

// Plan lists the documents to import, one slice per tier, in import order.
type Plan struct {
	Policy     Policy
	Databases  []Entry
	Datasets   []Entry
	Charts     []Entry
	Dashboards []Entry

	// ChartUUIDs, DatasetUUIDs and DatabaseUUIDs are the discovered needs,
	// including UUIDs the bundle does not carry a document for.
	ChartUUIDs    map[string]struct{}
	DatasetUUIDs  map[string]struct{}
	DatabaseUUIDs map[string]struct{}
}

// Tier returns the planned entries of one kind.
func (p *Plan) Tier(kind models.Kind) []Entry {
	switch kind {
	case models.KindDatabase:
		return p.Databases
	case models.KindDataset:
		return p.Datasets
	case models.KindChart:
		return p.Charts
	default:
		return p.Dashboards
	}
}

// Summary counts planned documents per kind.
func (p *Plan) Summary() map[models.Kind]int {
	return map[models.Kind]int{
		models.KindDatabase:  len(p.Databases),
		models.KindDataset:   len(p.Datasets),
		models.KindChart:     len(p.Charts),
		models.KindDashboard: len(p.Dashboards),
	}
}

// Resolve discovers which documents the bundle's dashboards need and returns
// them in dependency order. Configuration errors are raised here, before any
// entity is persisted.
func Resolve(archive models.Archive, opts Options) (*Plan, error) {
	plan := &Plan{
		Policy:        opts.Policy,
		ChartUUIDs:    map[string]struct{}{},
		DatasetUUIDs:  map[string]struct{}{},
		DatabaseUUIDs: map[string]struct{}{},
	}

	if err := discover(archive, plan); err != nil {
		return nil, err
	}

	var err error

	switch opts.Policy {
	case Selective:
		plan.Databases = selectDatabases(archive, plan.DatabaseUUIDs)
	case Consolidate:
		plan.Databases, err = classifyDatabases(archive, plan.DatabaseUUIDs, opts.Targets)
	default:
		return nil, &models.ConfigError{Reason: fmt.Sprintf("unknown policy %s", opts.Policy)}
	}

	if err != nil {
		return nil, err
	}

	plannedDatabases := uuidSet(plan.Databases)

	for _, p := range archive.Paths(models.KindDataset) {
		doc := archive[p]
		if !has(plan.DatasetUUIDs, doc.UUID()) || !has(plannedDatabases, doc.String("database_uuid")) {
			continue
		}

		plan.Datasets = append(plan.Datasets, Entry{Path: p, UUID: doc.UUID(), Doc: doc})
	}

	plannedDatasets := uuidSet(plan.Datasets)

	for _, p := range archive.Paths(models.KindChart) {
		doc := archive[p]
		if !has(plan.ChartUUIDs, doc.UUID()) || !has(plannedDatasets, doc.String("dataset_uuid")) {
			continue
		}

		plan.Charts = append(plan.Charts, Entry{Path: p, UUID: doc.UUID(), Doc: doc})
	}

	for _, p := range archive.Paths(models.KindDashboard) {
		doc := archive[p]
		plan.Dashboards = append(plan.Dashboards, Entry{Path: p, UUID: doc.UUID(), Doc: doc})
	}

	return plan, nil
}

// discover fills the needed UUID sets, walking dashboards → charts → datasets.
func discover(archive models.Archive, plan *Plan) error {
	for _, p := range archive.Paths(models.KindDashboard) {
		doc := archive[p]

		for u := range refs.FindChartUUIDs(doc["position"]) {
			plan.ChartUUIDs[u] = struct{}{}
		}

		for u := range refs.FindNativeFilterDatasetUUIDs(doc.Map("metadata")) {
			plan.DatasetUUIDs[u] = struct{}{}
		}
	}

	for _, p := range archive.Paths(models.KindChart) {
		doc := archive[p]
		if !has(plan.ChartUUIDs, doc.UUID()) {
			continue
		}

		ds := doc.String("dataset_uuid")
		if ds == "" {
			return models.MissingFieldError(p, "dataset_uuid")
		}

		plan.DatasetUUIDs[ds] = struct{}{}
	}

	for _, p := range archive.Paths(models.KindDataset) {
		doc := archive[p]
		if !has(plan.DatasetUUIDs, doc.UUID()) {
			continue
		}

		db := doc.String("database_uuid")
		if db == "" {
			return models.MissingFieldError(p, "database_uuid")
		}

		plan.DatabaseUUIDs[db] = struct{}{}
	}

	return nil
}

func selectDatabases(archive models.Archive, needed map[string]struct{}) []Entry {
	var out []Entry

	for _, p := range archive.Paths(models.KindDatabase) {
		doc := archive[p]
		if has(needed, doc.UUID()) {
			out = append(out, Entry{Path: p, UUID: doc.UUID(), Doc: doc})
		}
	}

	return out
}

// classifyDatabases assigns every needed database document to one of the two
// consolidation targets by its connection string.
func classifyDatabases(archive models.Archive, needed map[string]struct{}, targets models.MergeTargets) ([]Entry, error) {
	var out []Entry

	for _, p := range archive.Paths(models.KindDatabase) {
		doc := archive[p]
		if !has(needed, doc.UUID()) {
			continue
		}

		family, err := Classify(doc.String("sqlalchemy_uri"))
		if err != nil {
			return nil, &models.ConfigError{Reason: fmt.Sprintf("%s: %v", p, err)}
		}

		target := targets.DefaultID
		if family == FamilyClickHouse {
			target = targets.ClickHouseID
		}

		out = append(out, Entry{Path: p, UUID: doc.UUID(), Doc: doc, Family: family, TargetID: target})
	}

	if len(out) > maxConsolidatedDatabases {
		uuids := make([]string, 0, len(out))
		for _, e := range out {
			uuids = append(uuids, e.UUID)
		}

		sort.Strings(uuids)

		return nil, &models.ConfigError{Reason: fmt.Sprintf(
			"bundle references %d databases (%s); merge mode supports at most %d",
			len(out), strings.Join(uuids, ", "), maxConsolidatedDatabases,
		)}
	}

	return out, nil
}

// Classify returns the engine family of a connection string.
func Classify(uri string) (Family, error) {
	lower := strings.ToLower(uri)

	switch {
	case strings.Contains(lower, string(FamilyClickHouse)):
		return FamilyClickHouse, nil
	case strings.Contains(lower, string(FamilyDefault)):
		return FamilyDefault, nil
	case uri == "":
		return "", fmt.Errorf("sqlalchemy_uri is empty")
	default:
		return "", fmt.Errorf("cannot classify connection string for engine %q", scheme(uri))
	}
}

// scheme returns the URI scheme without credentials, safe to log.
func scheme(uri string) string {
	if i := strings.Index(uri, "://"); i > 0 {
		return uri[:i]
	}

	return "unknown"
}

func uuidSet(entries []Entry) map[string]struct{} {
	s := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		s[e.UUID] = struct{}{}
	}

	return s
}

func has(set map[string]struct{}, key string) bool {
	_, ok := set[key]

	return ok
}
