package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/iddaa-lens/jobrunner/pkg/database"
	"github.com/iddaa-lens/jobrunner/pkg/jobs"
	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/models"
)

// DefaultTable is the table job definitions are read from when none is configured
const DefaultTable = "job_schedules"

// Store reads job definitions from PostgreSQL and records successful runs
type Store struct {
	db     database.DBTX
	table  string // quoted identifier, safe to interpolate
	name   string
	logger *logger.Logger
}

var _ jobs.JobStore = (*Store)(nil)

// NewStore creates a store over db. table may be schema-qualified ("jobs.job_schedules").
func NewStore(db database.DBTX, table string, log *logger.Logger) *Store {
	if table == "" {
		table = DefaultTable
	}
	if log == nil {
		log = logger.New("job-store")
	}

	return &Store{
		db:     db,
		table:  quoteTable(table),
		name:   table,
		logger: log,
	}
}

// quoteTable quotes each dot-separated part of a table name
func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

// EnsureSchema creates the jobs table when it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	job_name       text PRIMARY KEY,
	description    text NOT NULL DEFAULT '',
	params         json NOT NULL DEFAULT '{}',
	start_after    timestamptz NOT NULL,
	days_of_week   text[] NOT NULL CHECK (cardinality(days_of_week) = 7),
	time_of_day    text NOT NULL DEFAULT '00:00:00.000Z',
	last_run       bigint,
	repeat_minutes integer CHECK (repeat_minutes IS NULL OR repeat_minutes >= 0)
)`, s.table)

	start := time.Now()
	_, err := s.db.Exec(ctx, query)
	s.logger.LogDatabaseOperation("ensure_schema", s.name, 0, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.name, err)
	}
	return nil
}

// FetchAll returns every valid job definition ordered by name.
// Rows that fail validation are logged and skipped.
func (s *Store) FetchAll(ctx context.Context) ([]models.JobDefinition, error) {
	query := fmt.Sprintf(`SELECT job_name, description, params, start_after, days_of_week,
	time_of_day, last_run, repeat_minutes
FROM %s
ORDER BY job_name`, s.table)

	start := time.Now()
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.logger.LogDatabaseOperation("fetch_all", s.name, 0, time.Since(start), err)
		return nil, fmt.Errorf("failed to query job definitions: %w", err)
	}
	defer rows.Close()

	result := make([]models.JobDefinition, 0)
	for rows.Next() {
		var r row
		if err := rows.Scan(
			&r.name,
			&r.description,
			&r.params,
			&r.startAfter,
			&r.daysOfWeek,
			&r.timeOfDay,
			&r.lastRun,
			&r.repeatMinutes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job definition: %w", err)
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
		s.logger.LogDatabaseOperation("fetch_all", s.name, len(result), time.Since(start), err)
		return nil, fmt.Errorf("failed to read job definitions: %w", err)
	}

	s.logger.LogDatabaseOperation("fetch_all", s.name, len(result), time.Since(start), nil)
	return result, nil
}

// UpdateLastRun stores at (in unix seconds) as the job's last run.
// The update is conditional so last_run never moves backwards; a stale
// write is ignored rather than reported.
func (s *Store) UpdateLastRun(ctx context.Context, jobName string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET last_run = $2
WHERE job_name = $1 AND (last_run IS NULL OR last_run <= $2)`, s.table)

	start := time.Now()
	tag, err := s.db.Exec(ctx, query, jobName, at.Unix())
	s.logger.LogDatabaseOperation("update_last_run", s.name, int(tag.RowsAffected()), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update last run for job %s: %w", jobName, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing updated: either the job is gone or a newer run is already stored
	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE job_name = $1)`, s.table)
	if err := s.db.QueryRow(ctx, existsQuery, jobName).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check job %s: %w", jobName, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobName)
	}

	s.logger.Warn().
		Str("action", "stale_last_run").
		Str("job_name", jobName).
		Time("last_run", at).
		Msg("Newer last run already stored, keeping it")
	return nil
}

// row mirrors one record of the jobs table
type row struct {
	name          string
	description   string
	params        []byte
	startAfter    time.Time
	daysOfWeek    []string
	timeOfDay     string
	lastRun       *int64
	repeatMinutes *int32
}

func (r row) toModel() (models.JobDefinition, error) {
	weekdays, err := models.ParseWeekdayMask(r.daysOfWeek)
	if err != nil {
		return models.JobDefinition{}, err
	}
	tod, err := models.ParseTimeOfDay(r.timeOfDay)
	if err != nil {
		return models.JobDefinition{}, err
	}

	job := models.JobDefinition{
		Name:        r.name,
		Description: r.description,
		ActiveAfter: r.startAfter.UTC(),
		Weekdays:    weekdays,
		TimeOfDay:   tod,
	}
	if len(r.params) > 0 {
		job.Params = json.RawMessage(append([]byte(nil), r.params...))
	}
	job.LastRunAt = models.LastRunFromUnix(r.lastRun)
	if r.repeatMinutes != nil {
		job.RepeatIntervalMinutes = int(*r.repeatMinutes)
	}

	if err := job.Validate(); err != nil {
		return models.JobDefinition{}, err
	}
	return job, nil
}
