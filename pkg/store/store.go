// Package store opens the configured job store.
package store

import (
	"context"
	"fmt"

	"github.com/iddaa-lens/jobrunner/internal/config"
	"github.com/iddaa-lens/jobrunner/pkg/database/pool"
	"github.com/iddaa-lens/jobrunner/pkg/jobs"
	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/store/memory"
	"github.com/iddaa-lens/jobrunner/pkg/store/postgres"
	"github.com/iddaa-lens/jobrunner/pkg/store/sqlite"
)

// Opened is a ready job store plus the function that releases it
type Opened struct {
	Store jobs.JobStore
	Close func()
}

// Open builds the store selected by cfg.Store.Driver.
// For postgres the jobs table is created when ensureSchema is set.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger, ensureSchema bool) (*Opened, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverFile:
		return openFile(cfg, log)
	case config.StoreDriverSQLite:
		s, err := sqlite.Open(ctx, cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("action", "store_opened").
			Str("driver", config.StoreDriverSQLite).
			Str("path", cfg.Store.SQLitePath).
			Msg("Opened job store")
		return &Opened{Store: s, Close: func() { _ = s.Close() }}, nil
	case config.StoreDriverPostgres, "":
		return openPostgres(ctx, cfg, log, ensureSchema)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openFile(cfg *config.Config, log *logger.Logger) (*Opened, error) {
	s, err := memory.LoadYAML(cfg.Store.JobsFile)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("action", "store_opened").
		Str("driver", config.StoreDriverFile).
		Str("file", cfg.Store.JobsFile).
		Bool("watch", cfg.Store.WatchFile).
		Msg("Loaded job definitions from file")

	if !cfg.Store.WatchFile {
		return &Opened{Store: s, Close: func() {}}, nil
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Watch(watchCtx, cfg.Store.JobsFile, log); err != nil {
			log.Error().
				Err(err).
				Str("action", "jobs_watch_failed").
				Str("file", cfg.Store.JobsFile).
				Msg("Job file changes will not be picked up")
		}
	}()

	return &Opened{Store: s, Close: func() {
		cancel()
		<-done
	}}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger, ensureSchema bool) (*Opened, error) {
	db, err := pool.New(ctx, cfg.DatabaseURL(), pool.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := postgres.NewStore(db, cfg.Database.JobsTable, log)
	if ensureSchema {
		if err := s.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	stats := pool.GetStats(db)
	log.Info().
		Str("action", "store_opened").
		Str("driver", config.StoreDriverPostgres).
		Str("table", cfg.Database.JobsTable).
		Int32("max_conns", stats.MaxConns).
		Msg("Connected to job store")
	return &Opened{Store: s, Close: db.Close}, nil
}
