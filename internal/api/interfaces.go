package api

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/dashport/internal/bundle"
)

// BundleLoader decodes an uploaded bundle.
type BundleLoader interface {
	LoadBytes(ctx context.Context, data []byte) (*bundle.Bundle, error)
}

// DatabaseChecker is the subset of the connection pool used by HealthHandler.
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
