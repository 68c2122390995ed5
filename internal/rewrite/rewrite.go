// Package rewrite translates the chart and dataset references embedded in a
// dashboard document from source-store identifiers to target-store ones.
//
// Structural references (timed refresh immunity, default filters, native
// filter datasets) must resolve or the import aborts. Advisory references
// (expanded slices, filter scopes, scope exclusions, layout nodes) degrade by
// omission or pass-through.
package rewrite

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/refs"
)

// Options configures a rewrite.
type Options struct {
	// RemapUUIDs replaces layout chart UUIDs with the UUIDs the store kept.
	RemapUUIDs bool
}

// BuildIDMap maps the legacy chart ids found in a dashboard position to the
// target surrogate ids of the charts that were imported. Charts that did not
// import are absent.
func BuildIDMap(position any, chartIDs map[string]int64) map[int64]int64 {
	idMap := map[int64]int64{}

	for uuid, oldID := range refs.BuildUUIDToOldIDMap(position) {
		if newID, ok := chartIDs[uuid]; ok {
			idMap[oldID] = newID
		}
	}

	return idMap
}

type rewriter struct {
	maps   *models.IDMaps
	opts   Options
	idMap  map[int64]int64
	report *Report
	errs   []error
}

// Dashboard rewrites dash in place. It returns a report of every reference
// outcome and, when structural references failed, an error joining one
// *models.StructuralRefError per failure.
func Dashboard(dash models.Document, maps *models.IDMaps, opts Options) (*Report, error) {
	rw := &rewriter{
		maps:   maps,
		opts:   opts,
		idMap:  BuildIDMap(dash["position"], maps.ChartIDs),
		report: newReport(dash.UUID()),
	}

	if metadata := dash.Map("metadata"); metadata != nil {
		rw.timedRefreshImmune(metadata)
		rw.expandedSlices(metadata)
		rw.filterScopes(metadata)
		rw.defaultFilters(metadata)
		rw.nativeFilters(metadata)
		rw.chartConfiguration(metadata)
	}

	rw.layout(dash["position"])

	return rw.report, errors.Join(rw.errs...)
}

func (rw *rewriter) fail(field, ref string, cause error) {
	rw.report.record(field, StructuralError)
	rw.errs = append(rw.errs, &models.StructuralRefError{
		DashboardUUID: rw.report.DashboardUUID,
		Field:         field,
		Ref:           ref,
		Err:           cause,
	})
}

// chart resolves a legacy chart id (number or numeric string).
func (rw *rewriter) chart(old any) (int64, bool) {
	id, ok := refs.ToInt64(old)
	if !ok {
		return 0, false
	}

	newID, ok := rw.idMap[id]

	return newID, ok
}

// advisoryList rewrites a list of legacy chart ids, dropping unresolved ones.
func (rw *rewriter) advisoryList(field string, list any) []any {
	items, _ := list.([]any) //nolint:errcheck // type assertion, other shapes yield an empty list.
	out := make([]any, 0, len(items))

	for _, old := range items {
		newID, ok := rw.chart(old)
		if !ok {
			rw.report.record(field, Dropped)

			continue
		}

		rw.report.record(field, Resolved)
		out = append(out, newID)
	}

	return out
}

// advisoryKeys rewrites the chart-id keys of a mapping, dropping unresolved entries.
func (rw *rewriter) advisoryKeys(field string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))

	for old, v := range m {
		newID, ok := rw.chart(old)
		if !ok {
			rw.report.record(field, Dropped)

			continue
		}

		rw.report.record(field, Resolved)
		out[refs.FormatID(newID)] = v
	}

	return out
}

func (rw *rewriter) timedRefreshImmune(metadata map[string]any) {
	raw, ok := metadata[FieldTimedRefreshImmune]
	if !ok || raw == nil {
		return
	}

	items, ok := raw.([]any)
	if !ok {
		rw.fail(FieldTimedRefreshImmune, fmt.Sprintf("%v", raw), models.ErrMalformed)

		return
	}

	out := make([]any, 0, len(items))

	for _, old := range items {
		newID, ok := rw.chart(old)
		if !ok {
			rw.fail(FieldTimedRefreshImmune, fmt.Sprintf("chart id %v", old), nil)

			continue
		}

		rw.report.record(FieldTimedRefreshImmune, Resolved)
		out = append(out, newID)
	}

	metadata[FieldTimedRefreshImmune] = out
}

func (rw *rewriter) expandedSlices(metadata map[string]any) {
	if m, ok := metadata[FieldExpandedSlices].(map[string]any); ok {
		metadata[FieldExpandedSlices] = rw.advisoryKeys(FieldExpandedSlices, m)
	}
}

func (rw *rewriter) filterScopes(metadata map[string]any) {
	scopes, ok := metadata[FieldFilterScopes].(map[string]any)
	if !ok {
		return
	}

	rewritten := rw.advisoryKeys(FieldFilterScopes, scopes)

	for _, columns := range rewritten {
		cols, ok := columns.(map[string]any)
		if !ok {
			continue
		}

		for _, attrs := range cols {
			a, ok := attrs.(map[string]any)
			if !ok {
				continue
			}

			if immune, ok := a["immune"]; ok {
				a["immune"] = rw.advisoryList(FieldFilterScopes, immune)
			}
		}
	}

	metadata[FieldFilterScopes] = rewritten
}

// defaultFilters rewrites the default_filters field, which is stored as a
// JSON-encoded string inside the metadata. The encoding is preserved.
func (rw *rewriter) defaultFilters(metadata map[string]any) {
	raw, ok := metadata[FieldDefaultFilters]
	if !ok || raw == nil {
		return
	}

	switch v := raw.(type) {
	case string:
		if v == "" {
			return
		}

		dec := json.NewDecoder(strings.NewReader(v))
		dec.UseNumber()

		var filters map[string]any
		if err := dec.Decode(&filters); err != nil {
			rw.fail(FieldDefaultFilters, "encoded value", fmt.Errorf("%w: %w", models.ErrMalformed, err))

			return
		}

		out, ok := rw.strictKeys(filters)
		if !ok {
			return
		}

		encoded, err := json.Marshal(out)
		if err != nil {
			rw.fail(FieldDefaultFilters, "encoded value", fmt.Errorf("%w: %w", models.ErrMalformed, err))

			return
		}

		metadata[FieldDefaultFilters] = string(encoded)
	case map[string]any:
		if out, ok := rw.strictKeys(v); ok {
			metadata[FieldDefaultFilters] = out
		}
	default:
		rw.fail(FieldDefaultFilters, fmt.Sprintf("%v", raw), models.ErrMalformed)
	}
}

func (rw *rewriter) strictKeys(filters map[string]any) (map[string]any, bool) {
	out := make(map[string]any, len(filters))
	ok := true

	for old, value := range filters {
		newID, found := rw.chart(old)
		if !found {
			rw.fail(FieldDefaultFilters, "chart id "+old, nil)
			ok = false

			continue
		}

		rw.report.record(FieldDefaultFilters, Resolved)
		out[refs.FormatID(newID)] = value
	}

	return out, ok
}

// layout points every CHART node at the imported chart. Nodes whose chart
// did not import keep their original reference so the layout survives.
func (rw *rewriter) layout(position any) {
	for _, node := range refs.ParseLayout(position).Charts() {
		uuid := node.Chart.UUID

		newID, ok := rw.maps.ChartIDs[uuid]
		if !ok {
			rw.report.record(FieldLayout, Dropped)

			continue
		}

		if remapped := rw.maps.ChartUUIDRemap[uuid]; rw.opts.RemapUUIDs && remapped != "" {
			uuid = remapped
		}

		node.SetChart(newID, uuid)
		rw.report.record(FieldLayout, Resolved)
	}
}

func (rw *rewriter) nativeFilters(metadata map[string]any) {
	filters, ok := metadata["native_filter_configuration"].([]any)
	if !ok {
		return
	}

	for _, f := range filters {
		filter, ok := f.(map[string]any)
		if !ok {
			continue
		}

		if targets, ok := filter["targets"].([]any); ok {
			for _, t := range targets {
				if target, ok := t.(map[string]any); ok {
					rw.nativeFilterTarget(target)
				}
			}
		}

		if scope, ok := filter["scope"].(map[string]any); ok {
			if excluded, ok := scope["excluded"]; ok {
				scope["excluded"] = rw.advisoryList(FieldNativeFilterScope, excluded)
			}
		}

		if inScope, ok := filter["chartsInScope"]; ok {
			filter["chartsInScope"] = rw.advisoryList(FieldNativeFilterScope, inScope)
		}
	}
}

// nativeFilterTarget points a filter target at the imported dataset. The
// target names its dataset by UUID or, in legacy payloads, by source id.
func (rw *rewriter) nativeFilterTarget(target map[string]any) {
	datasetUUID, _ := target["datasetUuid"].(string) //nolint:errcheck // type assertion.
	delete(target, "datasetUuid")

	if datasetUUID == "" {
		raw, ok := target["datasetId"]
		if !ok {
			return
		}

		delete(target, "datasetId")

		oldID, ok := refs.ToInt64(raw)
		if !ok {
			rw.fail(FieldNativeFilterTarget, fmt.Sprintf("datasetId %v", raw), models.ErrMalformed)

			return
		}

		datasetUUID, ok = rw.maps.DatasetOldIDs[oldID]
		if !ok {
			rw.fail(FieldNativeFilterTarget, fmt.Sprintf("datasetId %d", oldID), nil)

			return
		}
	}

	info, ok := rw.maps.DatasetInfo[datasetUUID]
	if !ok {
		rw.fail(FieldNativeFilterTarget, "dataset "+datasetUUID, nil)

		return
	}

	target["datasetId"] = info.ID
	rw.report.record(FieldNativeFilterTarget, Resolved)
}

// chartConfiguration rewrites cross-filter configuration, keyed by chart id.
func (rw *rewriter) chartConfiguration(metadata map[string]any) {
	if cfg, ok := metadata[FieldChartConfiguration].(map[string]any); ok {
		rewritten := rw.advisoryKeys(FieldChartConfiguration, cfg)

		for key, entry := range rewritten {
			e, ok := entry.(map[string]any)
			if !ok {
				continue
			}

			if _, ok := e["id"]; ok {
				newID, _ := refs.ToInt64(key) //nolint:errcheck // keys were produced by FormatID.
				e["id"] = newID
			}

			rw.crossFilters(FieldChartConfiguration, e["crossFilters"])
		}

		metadata[FieldChartConfiguration] = rewritten
	}

	if global, ok := metadata[FieldGlobalChartConfig].(map[string]any); ok {
		if scope, ok := global["scope"].(map[string]any); ok {
			if excluded, ok := scope["excluded"]; ok {
				scope["excluded"] = rw.advisoryList(FieldGlobalChartConfig, excluded)
			}
		}

		if inScope, ok := global["chartsInScope"]; ok {
			global["chartsInScope"] = rw.advisoryList(FieldGlobalChartConfig, inScope)
		}
	}
}

func (rw *rewriter) crossFilters(field string, raw any) {
	cf, ok := raw.(map[string]any)
	if !ok {
		return
	}

	if scope, ok := cf["scope"].(map[string]any); ok {
		if excluded, ok := scope["excluded"]; ok {
			scope["excluded"] = rw.advisoryList(field, excluded)
		}
	}

	if inScope, ok := cf["chartsInScope"]; ok {
		cf["chartsInScope"] = rw.advisoryList(field, inScope)
	}
}
