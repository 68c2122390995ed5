package rewrite

// Outcome is the result of resolving one embedded reference.
type Outcome int

const (
	// Resolved means the reference was translated to a target-store identifier.
	Resolved Outcome = iota
	// Dropped means an advisory reference could not be resolved and was
	// omitted or left as it was.
	Dropped
	// StructuralError means a structural reference could not be resolved;
	// the import must abort.
	StructuralError
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Dropped:
		return "dropped"
	case StructuralError:
		return "structural_error"
	default:
		return "unknown"
	}
}

// Metadata and layout fields the rewriter touches.
const (
	FieldLayout             = "position"
	FieldTimedRefreshImmune = "timed_refresh_immune_slices"
	FieldExpandedSlices     = "expanded_slices"
	FieldFilterScopes       = "filter_scopes"
	FieldDefaultFilters     = "default_filters"
	FieldNativeFilterTarget = "native_filter_configuration.targets"
	FieldNativeFilterScope  = "native_filter_configuration.scope"
	FieldChartConfiguration = "chart_configuration"
	FieldGlobalChartConfig  = "global_chart_configuration"
)

// Report counts reference outcomes per field for one dashboard.
type Report struct {
	DashboardUUID string
	Counts        map[string]map[Outcome]int
}

func newReport(dashboardUUID string) *Report {
	return &Report{DashboardUUID: dashboardUUID, Counts: map[string]map[Outcome]int{}}
}

func (r *Report) record(field string, o Outcome) {
	byOutcome, ok := r.Counts[field]
	if !ok {
		byOutcome = map[Outcome]int{}
		r.Counts[field] = byOutcome
	}

	byOutcome[o]++
}

// Count returns how many references of a field ended with the given outcome.
func (r *Report) Count(field string, o Outcome) int {
	return r.Counts[field][o]
}

// Total returns how many references of any field ended with the given outcome.
func (r *Report) Total(o Outcome) int {
	n := 0
	for _, byOutcome := range r.Counts {
		n += byOutcome[o]
	}

	return n
}
