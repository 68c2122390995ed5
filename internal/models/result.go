package models

// KindStats counts store actions for one entity kind.
type KindStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Record counts one store action.
func (s *KindStats) Record(action string) {
	switch action {
	case ActionCreated:
		s.Created++
	case ActionUpdated:
		s.Updated++
	case ActionSkipped:
		s.Skipped++
	}
}

// ImportResult summarises the outcome of a bundle import.
type ImportResult struct {
	Policy              string      `json:"policy"`
	Dashboards          []Dashboard `json:"dashboards"`
	Databases           KindStats   `json:"databases"`
	Datasets            KindStats   `json:"datasets"`
	Charts              KindStats   `json:"charts"`
	DashboardStats      KindStats   `json:"dashboard_stats"`
	AssociationsCreated int         `json:"associations_created"`
	ChartsDeleted       int         `json:"charts_deleted"`
	DashboardsMigrated  int         `json:"dashboards_migrated"`
	DroppedReferences   int         `json:"dropped_references"`

	// References counts rewritten dashboard references by field, then outcome.
	References map[string]map[string]int `json:"references,omitempty"`
}

// RecordReferences adds n references of one field and outcome.
func (r *ImportResult) RecordReferences(field, outcome string, n int) {
	if n == 0 {
		return
	}

	if r.References == nil {
		r.References = map[string]map[string]int{}
	}

	if r.References[field] == nil {
		r.References[field] = map[string]int{}
	}

	r.References[field][outcome] += n
}

// Stats returns the counters for a kind.
func (r *ImportResult) Stats(kind Kind) *KindStats {
	switch kind {
	case KindDatabase:
		return &r.Databases
	case KindDataset:
		return &r.Datasets
	case KindChart:
		return &r.Charts
	default:
		return &r.DashboardStats
	}
}

// ImportOptions controls a bundle import.
type ImportOptions struct {
	// Overwrite updates dashboards that already exist; otherwise they are skipped.
	Overwrite bool `json:"overwrite"`
	// ActorID is the acting user, recorded as chart owner and dashboard creator.
	ActorID *int64 `json:"actor_id,omitempty"`
}

// MergeTargets are the two pre-existing databases every dataset is routed to
// in merge mode.
type MergeTargets struct {
	DefaultID    int64 `json:"default_database_id"`
	ClickHouseID int64 `json:"clickhouse_database_id"`
}
