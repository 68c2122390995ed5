package bundle_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/persistorai/dashport/internal/bundle"
	"github.com/persistorai/dashport/internal/models"
)

const metadataYAML = "version: 1.0.0\ntype: Dashboard\ntimestamp: '2024-01-01T00:00:00+00:00'\n"

const chartYAML = `slice_name: Revenue
viz_type: table
uuid: 11111111-1111-1111-1111-111111111111
dataset_uuid: 22222222-2222-2222-2222-222222222222
params:
  row_limit: 100
`

func zipBundle(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}

		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	return buf.Bytes()
}

func TestLoadBytes_StripsExportRoot(t *testing.T) {
	data := zipBundle(t, map[string]string{
		"dashboard_export_20240101T000000/metadata.yaml":       metadataYAML,
		"dashboard_export_20240101T000000/charts/Revenue.yaml": chartYAML,
		"dashboard_export_20240101T000000/README.txt":          "ignored",
	})

	b, err := bundle.Loader{}.LoadBytes(context.Background(), data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	if b.Metadata.Type != "Dashboard" || b.Metadata.Version != "1.0.0" {
		t.Errorf("metadata = %+v", b.Metadata)
	}

	doc, ok := b.Archive["charts/Revenue.yaml"]
	if !ok {
		t.Fatalf("archive paths = %v, want charts/Revenue.yaml", b.Archive.Paths(models.KindChart))
	}

	if doc.UUID() != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("uuid = %q", doc.UUID())
	}

	if doc.Map("params")["row_limit"] != 100 {
		t.Errorf("params = %v", doc.Map("params"))
	}

	if len(b.Archive) != 1 {
		t.Errorf("archive has %d documents, want 1", len(b.Archive))
	}
}

func TestLoadBytes_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr error
	}{
		{
			name:    "missing metadata",
			files:   map[string]string{"charts/a.yaml": chartYAML},
			wantErr: bundle.ErrMissingMetadata,
		},
		{
			name:    "wrong type",
			files:   map[string]string{"metadata.yaml": "type: Chart\n", "charts/a.yaml": chartYAML},
			wantErr: bundle.ErrWrongType,
		},
		{
			name:    "missing uuid",
			files:   map[string]string{"metadata.yaml": metadataYAML, "charts/a.yaml": "slice_name: x\n"},
			wantErr: models.ErrMissingUUID,
		},
		{
			name:    "malformed yaml",
			files:   map[string]string{"metadata.yaml": metadataYAML, "charts/a.yaml": "uuid: [\n"},
			wantErr: models.ErrMalformed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := bundle.Loader{}.LoadBytes(context.Background(), zipBundle(t, tc.files))
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadBytes_NotArchive(t *testing.T) {
	_, err := bundle.Loader{}.LoadBytes(context.Background(), []byte("not a zip"))
	if !errors.Is(err, bundle.ErrNotArchive) {
		t.Errorf("err = %v, want ErrNotArchive", err)
	}
}

func TestLoadBytes_FileTooLarge(t *testing.T) {
	data := zipBundle(t, map[string]string{"metadata.yaml": metadataYAML, "charts/a.yaml": chartYAML})

	_, err := bundle.Loader{MaxFileSize: 16}.LoadBytes(context.Background(), data)
	if !errors.Is(err, bundle.ErrFileTooLarge) {
		t.Errorf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()

	write := func(rel, content string) {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	write("metadata.yaml", metadataYAML)
	write("charts/a.yaml", chartYAML)
	write("dashboards/d.json", `{"uuid": "33333333-3333-3333-3333-333333333333", "metadata": {"refresh_frequency": 60}}`)

	b, err := bundle.Loader{}.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if b.Archive.Count(models.KindChart) != 1 || b.Archive.Count(models.KindDashboard) != 1 {
		t.Errorf("archive = %v", b.Archive)
	}

	if b.Archive["dashboards/d.json"].Map("metadata") == nil {
		t.Error("json dashboard metadata not decoded")
	}
}
