package models

// DatasetRef is what the chart and dashboard tiers need to know about an
// imported dataset.
type DatasetRef struct {
	ID   int64  `json:"datasource_id"`
	Type string `json:"datasource_type"`
	Name string `json:"datasource_name"`
	UUID string `json:"dataset_uuid"`
}

// IDMaps holds the source→target identifier maps built during one import run.
// Each map is filled by one tier and read by the tiers after it.
type IDMaps struct {
	// DatabaseIDs maps source database UUID to target surrogate id.
	DatabaseIDs map[string]int64
	// DatasetInfo maps source dataset UUID to the imported dataset.
	DatasetInfo map[string]DatasetRef
	// DatasetOldIDs maps legacy source dataset ids to dataset UUIDs.
	DatasetOldIDs map[int64]string
	// ChartIDs maps source chart UUID to target surrogate id.
	ChartIDs map[string]int64
	// ChartUUIDRemap maps source chart UUID to the UUID the store kept.
	ChartUUIDRemap map[string]string
}

// NewIDMaps returns empty identifier maps.
func NewIDMaps() *IDMaps {
	return &IDMaps{
		DatabaseIDs:    map[string]int64{},
		DatasetInfo:    map[string]DatasetRef{},
		DatasetOldIDs:  map[int64]string{},
		ChartIDs:       map[string]int64{},
		ChartUUIDRemap: map[string]string{},
	}
}
