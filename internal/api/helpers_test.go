package api_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

const metadataYAML = "version: 1.0.0\ntype: Dashboard\n"

const dashboardYAML = `dashboard_title: Sales
uuid: dddddddd-0000-0000-0000-000000000001
position: {}
metadata: {}
`

// zipBundle builds an in-memory zipped bundle from path → content.
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

// validBundle is a minimal bundle with one dashboard.
func validBundle(t *testing.T) []byte {
	t.Helper()

	return zipBundle(t, map[string]string{
		"export/metadata.yaml":         metadataYAML,
		"export/dashboards/sales.yaml": dashboardYAML,
	})
}

// postBundle sends a multipart request with the bundle (when non-nil) and fields.
func postBundle(t *testing.T, r http.Handler, path string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer

	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}

	if data != nil {
		fw, err := mw.CreateFormFile("bundle", "bundle.zip")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}

		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write bundle: %v", err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func doRequest(r http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}

	return body
}
