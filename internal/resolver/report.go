package resolver

import "sort"

// PlannedEntity is the printable form of an Entry.
type PlannedEntity struct {
	Path     string `json:"path" yaml:"path"`
	UUID     string `json:"uuid" yaml:"uuid"`
	Family   Family `json:"family,omitempty" yaml:"family,omitempty"`
	TargetID int64  `json:"target_id,omitempty" yaml:"target_id,omitempty"`
}

// Report describes a plan for operators: the documents each tier will import
// and the needed chart UUIDs the bundle carries no importable document for.
type Report struct {
	Policy        string          `json:"policy" yaml:"policy"`
	Databases     []PlannedEntity `json:"databases" yaml:"databases"`
	Datasets      []PlannedEntity `json:"datasets" yaml:"datasets"`
	Charts        []PlannedEntity `json:"charts" yaml:"charts"`
	Dashboards    []PlannedEntity `json:"dashboards" yaml:"dashboards"`
	MissingCharts []string        `json:"missing_charts,omitempty" yaml:"missing_charts,omitempty"`
}

// Report builds the printable view of p.
func (p *Plan) Report() Report {
	r := Report{
		Policy:     p.Policy.String(),
		Databases:  planned(p.Databases),
		Datasets:   planned(p.Datasets),
		Charts:     planned(p.Charts),
		Dashboards: planned(p.Dashboards),
	}

	imported := uuidSet(p.Charts)
	for uuid := range p.ChartUUIDs {
		if !has(imported, uuid) {
			r.MissingCharts = append(r.MissingCharts, uuid)
		}
	}

	sort.Strings(r.MissingCharts)

	return r
}

func planned(entries []Entry) []PlannedEntity {
	out := make([]PlannedEntity, 0, len(entries))
	for _, e := range entries {
		out = append(out, PlannedEntity{Path: e.Path, UUID: e.UUID, Family: e.Family, TargetID: e.TargetID})
	}

	return out
}
