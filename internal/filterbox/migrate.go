// Package filterbox converts legacy filter-box charts on an imported
// dashboard into native filters.
package filterbox

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/domain"
	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/refs"
)

// Compile-time check: *Migrator must satisfy domain.DashboardMigrator.
var _ domain.DashboardMigrator = (*Migrator)(nil)

const (
	nativeFilterPrefix = "NATIVE_FILTER-"
	filterTypeSelect   = "filter_select"
	rootID             = "ROOT_ID"
)

// Migrator rewrites a dashboard so that every filter-box chart's
// filter_configs become native select filters and the filter box leaves the
// layout.
type Migrator struct {
	log   *logrus.Logger
	newID func() string
}

// NewMigrator creates a Migrator.
func NewMigrator(log *logrus.Logger) *Migrator {
	return &Migrator{log: log, newID: uuid.NewString}
}

// target identifies the dataset column a native filter filters on.
type target struct {
	datasetID int64
	column    string
}

// MigrateDashboard returns the dashboard content with native filters added
// for the filter boxes among charts and their layout nodes removed, and
// whether anything changed. The dashboard itself is not modified.
func (m *Migrator) MigrateDashboard(
	_ context.Context,
	dash *models.Dashboard,
	charts []models.Chart,
) (models.DashboardContent, bool, error) {
	metadata := maps.Clone(dash.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	filters, _ := metadata["native_filter_configuration"].([]any) //nolint:errcheck // type assertion.
	filters = append([]any(nil), filters...)
	seen := existingTargets(filters)

	changed := false

	var boxes []models.Chart

	for _, chart := range charts {
		if chart.VizType != models.VizTypeFilterBox {
			continue
		}

		boxes = append(boxes, chart)

		added := 0

		for _, cfg := range filterConfigs(chart.Params) {
			t := target{datasetID: chart.DatasourceID, column: cfg.column}
			if seen[t] {
				continue
			}

			seen[t] = true
			filters = append(filters, m.nativeFilter(t, cfg))
			added++
		}

		removed, err := dropFilterBoxKeys(metadata, refs.FormatID(chart.ID))
		if err != nil {
			return models.DashboardContent{}, false, fmt.Errorf("dashboard %s: %w", dash.UUID, err)
		}

		if added > 0 || removed {
			changed = true
		}

		m.log.WithFields(logrus.Fields{
			"dashboard_uuid": dash.UUID,
			"chart_id":       chart.ID,
			"filters_added":  added,
		}).Debug("filter box migrated")
	}

	position, dropped := dropLayoutNodes(dash.Position, boxes)
	if dropped {
		changed = true
	}

	if !changed {
		return models.DashboardContent{Position: dash.Position, Metadata: dash.Metadata}, false, nil
	}

	metadata["native_filter_configuration"] = filters

	return models.DashboardContent{Position: position, Metadata: metadata}, true, nil
}

// dropLayoutNodes returns a copy of position without the CHART nodes of the
// given charts and without their entries in parent children lists.
func dropLayoutNodes(position map[string]any, charts []models.Chart) (map[string]any, bool) {
	ids := make(map[int64]bool, len(charts))
	uuids := make(map[string]bool, len(charts))

	for _, c := range charts {
		ids[c.ID] = true
		if c.UUID != "" {
			uuids[c.UUID] = true
		}
	}

	drop := map[string]bool{}

	for _, n := range refs.ParseLayout(position).Charts() {
		if (n.Chart.HasOldID && ids[n.Chart.OldID]) || uuids[n.Chart.UUID] {
			drop[n.Key] = true
		}
	}

	if len(drop) == 0 {
		return position, false
	}

	out := make(map[string]any, len(position))

	for key, raw := range position {
		if drop[key] {
			continue
		}

		node, ok := raw.(map[string]any)
		if !ok {
			out[key] = raw

			continue
		}

		children, _ := node["children"].([]any) //nolint:errcheck // type assertion.
		kept := make([]any, 0, len(children))

		for _, c := range children {
			if k, ok := c.(string); ok && drop[k] {
				continue
			}

			kept = append(kept, c)
		}

		if len(kept) != len(children) {
			node = maps.Clone(node)
			node["children"] = kept
		}

		out[key] = node
	}

	return out, true
}

// filterConfig is one entry of a filter box's params.filter_configs.
type filterConfig struct {
	column           string
	label            string
	multiple         bool
	searchAllOptions bool
	defaultValue     any
}

func filterConfigs(params map[string]any) []filterConfig {
	raw, _ := params["filter_configs"].([]any) //nolint:errcheck // type assertion.

	out := make([]filterConfig, 0, len(raw))

	for _, r := range raw {
		cfg, ok := r.(map[string]any)
		if !ok {
			continue
		}

		column, _ := cfg["column"].(string) //nolint:errcheck // type assertion.
		if column == "" {
			continue
		}

		label, _ := cfg["label"].(string)           //nolint:errcheck // type assertion.
		multiple, _ := cfg["multiple"].(bool)       //nolint:errcheck // type assertion.
		search, _ := cfg["searchAllOptions"].(bool) //nolint:errcheck // type assertion.

		out = append(out, filterConfig{
			column:           column,
			label:            label,
			multiple:         multiple,
			searchAllOptions: search,
			defaultValue:     cfg["defaultValue"],
		})
	}

	return out
}

func (m *Migrator) nativeFilter(t target, cfg filterConfig) map[string]any {
	name := cfg.label
	if name == "" {
		name = cfg.column
	}

	dataMask := map[string]any{"filterState": map[string]any{}}
	if value := defaultValues(cfg.defaultValue); value != nil {
		dataMask["filterState"] = map[string]any{"value": value}
	}

	return map[string]any{
		"id":         nativeFilterPrefix + m.newID(),
		"name":       name,
		"filterType": filterTypeSelect,
		"type":       "NATIVE_FILTER",
		"targets": []any{
			map[string]any{"datasetId": t.datasetID, "column": map[string]any{"name": t.column}},
		},
		"controlValues": map[string]any{
			"multiSelect":        cfg.multiple,
			"searchAllOptions":   cfg.searchAllOptions,
			"enableEmptyFilter":  false,
			"defaultToFirstItem": false,
			"inverseSelection":   false,
		},
		"defaultDataMask":  dataMask,
		"cascadeParentIds": []any{},
		"scope": map[string]any{
			"rootPath": []any{rootID},
			"excluded": []any{},
		},
		"description": "",
	}
}

// defaultValues normalises a filter box default into the list form native
// filters use. Multi-value defaults are stored as ';' separated strings.
func defaultValues(v any) []any {
	switch d := v.(type) {
	case nil:
		return nil
	case []any:
		if len(d) == 0 {
			return nil
		}

		return d
	case string:
		if d == "" {
			return nil
		}

		parts := strings.Split(d, ";")
		out := make([]any, 0, len(parts))

		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}

		return out
	default:
		return []any{d}
	}
}

func existingTargets(filters []any) map[target]bool {
	seen := map[target]bool{}

	for _, f := range filters {
		filter, ok := f.(map[string]any)
		if !ok {
			continue
		}

		targets, _ := filter["targets"].([]any) //nolint:errcheck // type assertion.
		for _, raw := range targets {
			t, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			id, ok := refs.ToInt64(t["datasetId"])
			if !ok {
				continue
			}

			column, _ := t["column"].(map[string]any) //nolint:errcheck // type assertion.
			name, _ := column["name"].(string)        //nolint:errcheck // type assertion.
			seen[target{datasetID: id, column: name}] = true
		}
	}

	return seen
}

// dropFilterBoxKeys removes the filter box's entries from filter_scopes and
// default_filters, both keyed by chart id.
func dropFilterBoxKeys(metadata map[string]any, key string) (bool, error) {
	removed := false

	if scopes, ok := metadata["filter_scopes"].(map[string]any); ok {
		if _, ok := scopes[key]; ok {
			scopes = maps.Clone(scopes)
			delete(scopes, key)
			metadata["filter_scopes"] = scopes
			removed = true
		}
	}

	switch defaults := metadata["default_filters"].(type) {
	case map[string]any:
		if _, ok := defaults[key]; ok {
			defaults = maps.Clone(defaults)
			delete(defaults, key)
			metadata["default_filters"] = defaults
			removed = true
		}
	case string:
		if defaults == "" {
			break
		}

		var decoded map[string]any
		if err := json.Unmarshal([]byte(defaults), &decoded); err != nil {
			return false, fmt.Errorf("default_filters: %w", models.ErrMalformed)
		}

		if _, ok := decoded[key]; ok {
			delete(decoded, key)

			data, err := json.Marshal(decoded)
			if err != nil {
				return false, fmt.Errorf("encoding default_filters: %w", err)
			}

			metadata["default_filters"] = string(data)
			removed = true
		}
	}

	return removed, nil
}
