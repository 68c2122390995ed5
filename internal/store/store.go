// Package store persists imported bundle entities in PostgreSQL.
//
// ImportStore hands out one transaction per import through InTx; every
// EntityStore method runs on that transaction, so a failed import leaves the
// database untouched.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/dbpool"
	"github.com/persistorai/dashport/internal/domain"
	"github.com/persistorai/dashport/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// Compile-time checks.
var (
	_ domain.Transactor  = (*ImportStore)(nil)
	_ domain.EntityStore = (*txStore)(nil)
)

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// ImportStore runs bundle imports against PostgreSQL.
type ImportStore struct {
	Base
}

// NewImportStore creates an ImportStore.
func NewImportStore(base Base) *ImportStore {
	return &ImportStore{Base: base}
}

// InTx runs fn inside one transaction. It commits when fn returns nil and
// rolls back otherwise.
func (s *ImportStore) InTx(ctx context.Context, fn func(ctx context.Context, es domain.EntityStore) error) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning import transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if err := fn(ctx, &txStore{tx: tx, log: s.Log}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}

	return nil
}

// txStore implements domain.EntityStore on an open transaction.
type txStore struct {
	tx  pgx.Tx
	log *logrus.Logger
}

// notFound maps pgx.ErrNoRows to models.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	return err
}

// duplicate maps unique violations to models.ErrDuplicateKey.
func duplicate(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %s: %w", what, pgErr.ConstraintName, models.ErrDuplicateKey)
	}

	return fmt.Errorf("%s: %w", what, err)
}
