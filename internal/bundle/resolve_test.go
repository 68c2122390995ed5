package bundle_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/persistorai/dashport/internal/bundle"
	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/resolver"
	"github.com/persistorai/dashport/internal/rewrite"
)

const salesDashboardYAML = `dashboard_title: Sales
uuid: B1
position:
  DASHBOARD_VERSION_KEY: v2
  CHART-1:
    type: CHART
    meta:
      uuid: C1
      chartId: 42
  ROW-1:
    type: ROW
    children:
      - CHART-1
metadata:
  timed_refresh_immune_slices:
    - 42
  native_filter_configuration:
    - id: NATIVE_FILTER-1
      targets:
        - datasetUuid: T1
          column:
            name: region
`

// writeYAMLBundle lays out a database, dataset, chart and dashboard chain.
func writeYAMLBundle(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"metadata.yaml":           metadataYAML,
		"databases/pg.yaml":       "database_name: pg\nsqlalchemy_uri: postgresql://u@h/db\nuuid: D1\n",
		"datasets/pg/sales.yaml":  "table_name: sales\nschema: public\nuuid: T1\ndatabase_uuid: D1\n",
		"charts/Revenue_42.yaml":  "slice_name: Revenue\nviz_type: table\nuuid: C1\ndataset_uuid: T1\nparams:\n  row_limit: 10\n",
		"dashboards/Sales_1.yaml": salesDashboardYAML,
	}

	for rel, content := range files {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	return dir
}

func TestLoadDir_YAMLNestedMappingsArePlainMaps(t *testing.T) {
	b, err := bundle.Loader{}.LoadDir(context.Background(), writeYAMLBundle(t))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	dash := b.Archive["dashboards/Sales_1.yaml"]

	for _, key := range []string{"position", "metadata"} {
		if _, ok := dash[key].(map[string]any); !ok {
			t.Errorf("%s decoded as %T, want map[string]any", key, dash[key])
		}
	}

	node, ok := dash.Map("position")["CHART-1"].(map[string]any)
	if !ok {
		t.Fatalf("CHART-1 decoded as %T, want map[string]any", dash.Map("position")["CHART-1"])
	}

	if _, ok := node["meta"].(map[string]any); !ok {
		t.Errorf("CHART-1 meta decoded as %T, want map[string]any", node["meta"])
	}
}

func TestLoadDir_YAMLBundleResolvesAndRewrites(t *testing.T) {
	b, err := bundle.Loader{}.LoadDir(context.Background(), writeYAMLBundle(t))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	plan, err := resolver.Resolve(b.Archive, resolver.Options{Policy: resolver.Selective})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := map[models.Kind]int{
		models.KindDatabase:  1,
		models.KindDataset:   1,
		models.KindChart:     1,
		models.KindDashboard: 1,
	}
	if got := plan.Summary(); !reflect.DeepEqual(got, want) {
		t.Fatalf("summary = %v, want %v", got, want)
	}

	maps := models.NewIDMaps()
	maps.ChartIDs["C1"] = 100
	maps.DatasetInfo["T1"] = models.DatasetRef{ID: 7, Type: "table", Name: "sales", UUID: "T1"}

	dash := plan.Dashboards[0].Doc
	if _, err := rewrite.Dashboard(dash, maps, rewrite.Options{}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	immune := dash.Map("metadata")["timed_refresh_immune_slices"]
	if !reflect.DeepEqual(immune, []any{int64(100)}) {
		t.Errorf("timed_refresh_immune_slices = %#v, want [100]", immune)
	}

	meta := dash.Map("position")["CHART-1"].(map[string]any)["meta"].(map[string]any)
	if id, _ := meta["chartId"].(int64); id != 100 {
		t.Errorf("layout chartId = %#v, want 100", meta["chartId"])
	}
}
