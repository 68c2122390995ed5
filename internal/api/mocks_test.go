package api_test

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/resolver"
)

type mockImportService struct {
	selectiveFn func(ctx context.Context, archive models.Archive, opts models.ImportOptions) (*models.ImportResult, error)
	mergeFn     func(ctx context.Context, archive models.Archive, targets models.MergeTargets, opts models.ImportOptions) (*models.ImportResult, error)
	planFn      func(archive models.Archive, opts resolver.Options) (*resolver.Plan, error)
}

func (m *mockImportService) ImportSelective(ctx context.Context, archive models.Archive, opts models.ImportOptions) (*models.ImportResult, error) {
	if m.selectiveFn != nil {
		return m.selectiveFn(ctx, archive, opts)
	}

	return &models.ImportResult{Policy: "selective"}, nil
}

func (m *mockImportService) ImportMerge(ctx context.Context, archive models.Archive, targets models.MergeTargets, opts models.ImportOptions) (*models.ImportResult, error) {
	if m.mergeFn != nil {
		return m.mergeFn(ctx, archive, targets, opts)
	}

	return &models.ImportResult{Policy: "merge"}, nil
}

func (m *mockImportService) Plan(archive models.Archive, opts resolver.Options) (*resolver.Plan, error) {
	if m.planFn != nil {
		return m.planFn(archive, opts)
	}

	return resolver.Resolve(archive, opts)
}

type mockDB struct {
	healthErr error
	version   int64
	queryErr  error
}

func (m *mockDB) HealthCheck(context.Context) error { return m.healthErr }

func (m *mockDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{version: m.version, err: m.queryErr}
}

type fakeRow struct {
	version int64
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	*(dest[0].(*int64)) = r.version

	return nil
}
