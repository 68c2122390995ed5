// Package models defines data types for dashboard bundle imports.
package models

import (
	"sort"
	"strings"
)

// Kind identifies one of the four entity types carried by a bundle.
type Kind string

// Entity kinds, in dependency order.
const (
	KindDatabase  Kind = "database"
	KindDataset   Kind = "dataset"
	KindChart     Kind = "chart"
	KindDashboard Kind = "dashboard"
)

// Kinds lists every kind in import order: a kind may only reference kinds
// that precede it.
var Kinds = []Kind{KindDatabase, KindDataset, KindChart, KindDashboard}

// Prefix returns the archive path prefix for documents of this kind.
func (k Kind) Prefix() string {
	switch k {
	case KindDatabase:
		return "databases/"
	case KindDataset:
		return "datasets/"
	case KindChart:
		return "charts/"
	case KindDashboard:
		return "dashboards/"
	default:
		return ""
	}
}

// KindFromPath derives the entity kind from an archive path prefix.
func KindFromPath(path string) (Kind, bool) {
	for _, k := range Kinds {
		if strings.HasPrefix(path, k.Prefix()) {
			return k, true
		}
	}

	return "", false
}

// Document is one decoded archive document. Nested values are the generic
// shapes produced by the YAML/JSON decoders (map[string]any, []any, scalars).
type Document map[string]any

// UUID returns the document's uuid field, or "" when absent.
func (d Document) UUID() string {
	return d.String("uuid")
}

// String returns a string field, or "" when the field is absent or not a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string) //nolint:errcheck // type assertion, absence yields "".

	return s
}

// Map returns a nested mapping field, or nil when absent or of another shape.
func (d Document) Map(key string) map[string]any {
	m, _ := d[key].(map[string]any) //nolint:errcheck // type assertion.

	return m
}

// Archive maps archive paths to decoded documents.
type Archive map[string]Document

// Paths returns the paths of all documents of the given kind in lexical order.
func (a Archive) Paths(kind Kind) []string {
	prefix := kind.Prefix()

	var paths []string

	for p := range a {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}

	sort.Strings(paths)

	return paths
}

// Count returns the number of documents of the given kind.
func (a Archive) Count(kind Kind) int {
	return len(a.Paths(kind))
}
