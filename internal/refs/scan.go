package refs

import (
	"github.com/ohler55/ojg/jp"
)

// nativeFilterDatasets selects every dataset UUID targeted by a native filter.
var nativeFilterDatasets = jp.MustParseString("$.native_filter_configuration[*].targets[*].datasetUuid")

// FindChartUUIDs returns the set of chart UUIDs referenced by a dashboard position.
func FindChartUUIDs(position any) map[string]struct{} {
	uuids := map[string]struct{}{}

	for _, n := range ParseLayout(position).Charts() {
		uuids[n.Chart.UUID] = struct{}{}
	}

	return uuids
}

// FindNativeFilterDatasetUUIDs returns the set of dataset UUIDs targeted by the
// native filters of a dashboard's metadata. Missing configuration yields an
// empty set.
func FindNativeFilterDatasetUUIDs(metadata map[string]any) map[string]struct{} {
	uuids := map[string]struct{}{}
	if metadata == nil {
		return uuids
	}

	for _, v := range nativeFilterDatasets.Get(metadata) {
		if s, ok := v.(string); ok && s != "" {
			uuids[s] = struct{}{}
		}
	}

	return uuids
}

// BuildUUIDToOldIDMap maps each chart UUID in a dashboard position to the
// legacy numeric chart id stored next to it. CHART nodes without an id are
// omitted.
func BuildUUIDToOldIDMap(position any) map[string]int64 {
	ids := map[string]int64{}

	for _, n := range ParseLayout(position).Charts() {
		if n.Chart.HasOldID {
			ids[n.Chart.UUID] = n.Chart.OldID
		}
	}

	return ids
}
