// Package bundle loads dashboard export bundles from a directory or a zip
// archive into a models.Archive.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/dashport/internal/models"
)

// DefaultMaxFileSize bounds a single bundle file.
const DefaultMaxFileSize = 16 << 20

// decodeWorkers bounds concurrent document decoding.
const decodeWorkers = 8

const (
	metadataFile  = "metadata.yaml"
	dashboardType = "Dashboard"
)

// Sentinel errors for bundle loading.
var (
	ErrNotArchive      = errors.New("bundle is not a zip archive")
	ErrMissingMetadata = errors.New("bundle has no metadata.yaml")
	ErrWrongType       = errors.New("bundle is not a dashboard export")
	ErrFileTooLarge    = errors.New("bundle file exceeds size limit")
)

// Metadata is the content of a bundle's metadata.yaml.
type Metadata struct {
	Version   string `yaml:"version" json:"version"`
	Type      string `yaml:"type" json:"type"`
	Timestamp string `yaml:"timestamp" json:"timestamp"`
}

// Bundle is a decoded export bundle.
type Bundle struct {
	Metadata Metadata
	Archive  models.Archive
}

// Loader decodes bundles. The zero value uses DefaultMaxFileSize.
type Loader struct {
	MaxFileSize int64
}

type rawFile struct {
	path string
	data []byte
}

func (l Loader) maxFileSize() int64 {
	if l.MaxFileSize > 0 {
		return l.MaxFileSize
	}

	return DefaultMaxFileSize
}

// Load reads a bundle from a directory or a zip file.
func (l Loader) Load(ctx context.Context, name string) (*Bundle, error) {
	info, err := os.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}

	if info.IsDir() {
		return l.LoadDir(ctx, name)
	}

	f, err := os.Open(name) //nolint:gosec // path supplied by the operator.
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close()

	return l.LoadZip(ctx, f, info.Size())
}

// LoadDir reads an unpacked bundle directory.
func (l Loader) LoadDir(ctx context.Context, dir string) (*Bundle, error) {
	var files []rawFile

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !isDocument(p) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if info.Size() > l.maxFileSize() {
			return fmt.Errorf("%s: %w", p, ErrFileTooLarge)
		}

		data, err := os.ReadFile(p) //nolint:gosec // walking the operator's bundle directory.
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		files = append(files, rawFile{path: filepath.ToSlash(rel), data: data})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading bundle directory: %w", err)
	}

	return l.decode(ctx, files)
}

// LoadZip reads a zipped bundle.
func (l Loader) LoadZip(ctx context.Context, r io.ReaderAt, size int64) (*Bundle, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotArchive, err)
	}

	var files []rawFile

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isDocument(f.Name) {
			continue
		}

		data, err := l.readZipFile(f)
		if err != nil {
			return nil, err
		}

		files = append(files, rawFile{path: f.Name, data: data})
	}

	return l.decode(ctx, files)
}

// LoadBytes reads a zipped bundle held in memory.
func (l Loader) LoadBytes(ctx context.Context, data []byte) (*Bundle, error) {
	return l.LoadZip(ctx, bytes.NewReader(data), int64(len(data)))
}

func (l Loader) readZipFile(f *zip.File) ([]byte, error) {
	limit := l.maxFileSize()
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrFileTooLarge)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	// The header size can lie; never read past the limit.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrFileTooLarge)
	}

	return data, nil
}

// decode strips the export root directory, parses metadata.yaml and decodes
// every entity document concurrently.
func (l Loader) decode(ctx context.Context, files []rawFile) (*Bundle, error) {
	root := exportRoot(files)
	for i := range files {
		files[i].path = strings.TrimPrefix(files[i].path, root)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })

	b := &Bundle{Archive: models.Archive{}}

	var docs []rawFile

	foundMetadata := false

	for _, f := range files {
		if f.path == metadataFile {
			if err := yaml.Unmarshal(f.data, &b.Metadata); err != nil {
				return nil, fmt.Errorf("%s: %w", metadataFile, err)
			}

			foundMetadata = true

			continue
		}

		if _, ok := models.KindFromPath(f.path); ok {
			docs = append(docs, f)
		}
	}

	if !foundMetadata {
		return nil, ErrMissingMetadata
	}

	if b.Metadata.Type != dashboardType {
		return nil, fmt.Errorf("type %q: %w", b.Metadata.Type, ErrWrongType)
	}

	decoded := make([]models.Document, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(decodeWorkers)

	for i, f := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			doc, err := decodeDocument(f)
			if err != nil {
				return err
			}

			decoded[i] = doc

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, f := range docs {
		b.Archive[f.path] = decoded[i]
	}

	return b, nil
}

func decodeDocument(f rawFile) (models.Document, error) {
	// Decode into a plain map: yaml.v3 reuses the target map type for nested
	// mappings, and the rest of the import asserts map[string]any.
	var raw map[string]any

	if strings.HasSuffix(f.path, ".json") {
		dec := json.NewDecoder(bytes.NewReader(f.data))
		dec.UseNumber()

		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", f.path, models.ErrMalformed, err)
		}
	} else if err := yaml.Unmarshal(f.data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", f.path, models.ErrMalformed, err)
	}

	doc := models.Document(raw)
	if doc.UUID() == "" {
		return nil, fmt.Errorf("%s: %w", f.path, models.ErrMissingUUID)
	}

	return doc, nil
}

// exportRoot returns the directory prefix shared by every file, such as
// "dashboard_export_20240101T000000/", or "" when files sit at the top level.
func exportRoot(files []rawFile) string {
	if len(files) == 0 {
		return ""
	}

	first, _, ok := strings.Cut(files[0].path, "/")
	if !ok {
		return ""
	}

	prefix := first + "/"
	if _, isKind := models.KindFromPath(prefix); isKind {
		return ""
	}

	for _, f := range files[1:] {
		if !strings.HasPrefix(f.path, prefix) {
			return ""
		}
	}

	return prefix
}

func isDocument(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
