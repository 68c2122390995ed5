package store_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/db"
	"github.com/persistorai/dashport/internal/db/migrations"
	"github.com/persistorai/dashport/internal/dbpool"
	"github.com/persistorai/dashport/internal/domain"
	"github.com/persistorai/dashport/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var sharedEnv *testEnv

// errRollback ends a test transaction without persisting anything.
var errRollback = errors.New("rollback")

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if sharedEnv != nil {
		return sharedEnv
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := dbpool.NewPool(ctx, dbURL, dbpool.Options{})
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	if _, err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		t.Fatalf("migrating test DB: %v", err)
	}

	sharedEnv = &testEnv{
		pool: pool,
		log:  log,
	}

	return sharedEnv
}

func newTestStore(t *testing.T) *store.ImportStore {
	t.Helper()

	env := getTestEnv(t)

	return store.NewImportStore(store.Base{Pool: env.pool, Log: env.log})
}

// inRollbackTx runs fn in a transaction that is always rolled back.
func inRollbackTx(t *testing.T, s *store.ImportStore, fn func(ctx context.Context, es domain.EntityStore)) {
	t.Helper()

	err := s.InTx(context.Background(), func(ctx context.Context, es domain.EntityStore) error {
		fn(ctx, es)

		return errRollback
	})
	if !errors.Is(err, errRollback) {
		t.Fatalf("InTx = %v, want errRollback", err)
	}
}

func newUUID() string {
	return uuid.New().String()
}
