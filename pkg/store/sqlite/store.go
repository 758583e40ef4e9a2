// Package sqlite stores job definitions in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iddaa-lens/jobrunner/pkg/jobs"
	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/models"
)

const schema = `CREATE TABLE IF NOT EXISTS job_schedules (
	job_name       TEXT PRIMARY KEY,
	description    TEXT NOT NULL DEFAULT '',
	params         TEXT NOT NULL DEFAULT '{}',
	start_after    TEXT NOT NULL,
	days_of_week   TEXT NOT NULL CHECK (length(days_of_week) = 7),
	time_of_day    TEXT NOT NULL DEFAULT '00:00:00.000Z',
	last_run       INTEGER,
	repeat_minutes INTEGER CHECK (repeat_minutes IS NULL OR repeat_minutes >= 0)
)`

// Store keeps job definitions in a single SQLite file
type Store struct {
	db     *sql.DB
	path   string
	logger *logger.Logger
}

var _ jobs.JobStore = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, log *logger.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log == nil {
		log = logger.New("job-store")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db, path: path, logger: log}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces a definition, used to seed the database
func (s *Store) Put(ctx context.Context, def models.JobDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	params := string(def.Params)
	if params == "" {
		params = "{}"
	}
	var lastRun interface{}
	if def.LastRunAt != nil {
		lastRun = def.LastRunAt.Unix()
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO job_schedules
	(job_name, description, params, start_after, days_of_week, time_of_day, last_run, repeat_minutes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (job_name) DO UPDATE SET
	description = excluded.description,
	params = excluded.params,
	start_after = excluded.start_after,
	days_of_week = excluded.days_of_week,
	time_of_day = excluded.time_of_day,
	last_run = excluded.last_run,
	repeat_minutes = excluded.repeat_minutes`,
		def.Name,
		def.Description,
		params,
		def.ActiveAfter.UTC().Format(time.RFC3339Nano),
		def.Weekdays.String(),
		def.TimeOfDay.String(),
		lastRun,
		def.RepeatIntervalMinutes,
	)
	s.logger.LogDatabaseOperation("put", s.path, 1, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to store job %s: %w", def.Name, err)
	}
	return nil
}

// FetchAll returns every valid definition ordered by name; malformed rows are logged and skipped
func (s *Store) FetchAll(ctx context.Context) ([]models.JobDefinition, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT job_name, description, params, start_after,
	days_of_week, time_of_day, last_run, repeat_minutes
FROM job_schedules
ORDER BY job_name`)
	if err != nil {
		s.logger.LogDatabaseOperation("fetch_all", s.path, 0, time.Since(start), err)
		return nil, fmt.Errorf("failed to query job definitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]models.JobDefinition, 0)
	for rows.Next() {
		var (
			r             row
			lastRun       sql.NullInt64
			repeatMinutes sql.NullInt64
		)
		if err := rows.Scan(&r.name, &r.description, &r.params, &r.startAfter,
			&r.daysOfWeek, &r.timeOfDay, &lastRun, &repeatMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan job definition: %w", err)
		}
		if lastRun.Valid {
			r.lastRun = &lastRun.Int64
		}
		if repeatMinutes.Valid {
			r.repeatMinutes = int(repeatMinutes.Int64)
		}

		job, err := r.toModel()
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("action", "invalid_job_definition").
				Str("job_name", r.name).
				Msg("Skipping malformed job definition")
			continue
		}
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job definitions: %w", err)
	}

	s.logger.LogDatabaseOperation("fetch_all", s.path, len(result), time.Since(start), nil)
	return result, nil
}

// UpdateLastRun stores at in unix seconds unless a later run is already recorded
func (s *Store) UpdateLastRun(ctx context.Context, jobName string, at time.Time) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE job_schedules SET last_run = ?
WHERE job_name = ? AND (last_run IS NULL OR last_run <= ?)`, at.Unix(), jobName, at.Unix())
	if err != nil {
		s.logger.LogDatabaseOperation("update_last_run", s.path, 0, time.Since(start), err)
		return fmt.Errorf("failed to update last run for job %s: %w", jobName, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update last run for job %s: %w", jobName, err)
	}
	s.logger.LogDatabaseOperation("update_last_run", s.path, int(affected), time.Since(start), nil)
	if affected > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM job_schedules WHERE job_name = ?`, jobName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check job %s: %w", jobName, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobName)
	}
	return nil
}

type row struct {
	name          string
	description   string
	params        string
	startAfter    string
	daysOfWeek    string
	timeOfDay     string
	lastRun       *int64
	repeatMinutes int
}

func (r row) toModel() (models.JobDefinition, error) {
	startAfter, err := time.Parse(time.RFC3339Nano, r.startAfter)
	if err != nil {
		return models.JobDefinition{}, fmt.Errorf("%w: start_after: %v", models.ErrInvalidJobDefinition, err)
	}
	weekdays, err := models.ParseWeekdayMask(strings.Split(r.daysOfWeek, ""))
	if err != nil {
		return models.JobDefinition{}, err
	}
	tod, err := models.ParseTimeOfDay(r.timeOfDay)
	if err != nil {
		return models.JobDefinition{}, err
	}

	job := models.JobDefinition{
		Name:                  r.name,
		Description:           r.description,
		ActiveAfter:           startAfter.UTC(),
		Weekdays:              weekdays,
		TimeOfDay:             tod,
		RepeatIntervalMinutes: r.repeatMinutes,
	}
	if r.params != "" {
		job.Params = json.RawMessage(r.params)
	}
	job.LastRunAt = models.LastRunFromUnix(r.lastRun)
	return job, job.Validate()
}
