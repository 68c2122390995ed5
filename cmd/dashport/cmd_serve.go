package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/dashport/internal/api"
	"github.com/persistorai/dashport/internal/bundle"
	"github.com/persistorai/dashport/internal/config"
	"github.com/persistorai/dashport/internal/db"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and serve the import API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log := newLogger(cfg.LogLevel, true)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, log)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if _, err := migrate(ctx, pool, log); err != nil {
		return err
	}

	handler := api.NewRouter(ctx, &api.RouterDeps{
		Log:           log,
		DB:            pool,
		Imports:       newImportService(pool, log),
		Loader:        bundle.Loader{MaxFileSize: cfg.MaxFileBytes()},
		MergeTargets:  cfg.MergeTargets,
		MaxBodyBytes:  cfg.MaxBundleBytes(),
		ImportTimeout: cfg.ImportTimeout,
		CORSOrigins:   cfg.CORSOrigins,
		APIKey:        cfg.APIKey.Value(),
		Version:       config.Version,
		SchemaVersion: int64(db.SchemaVersion()),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      cfg.ImportTimeout + time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)

	go func() {
		log.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"version": config.Version,
		}).Info("dashport listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serving http: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return nil
}
