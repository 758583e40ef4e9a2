package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iddaa-lens/jobrunner/pkg/models"
)

// Job represents a schedulable job that can be executed by the cron service
type Job interface {
	// Execute runs the job with the given context
	Execute(ctx context.Context) error

	// Name returns a human-readable name for the job
	Name() string

	// Schedule returns the cron schedule expression for this job
	// Format: "minute hour day month weekday" or "@every duration"
	// Examples: "0 */6 * * *" (every 6 hours), "@every 1m" (every minute)
	Schedule() string
}

// JobManager manages and schedules multiple jobs
type JobManager interface {
	// RegisterJob adds a job to the manager
	RegisterJob(job Job) error

	// Start begins executing all registered jobs according to their schedules
	Start()

	// Stop gracefully shuts down the job manager
	Stop()

	// GetJobs returns all registered jobs
	GetJobs() []Job
}

// JobStore persists recurring job definitions
type JobStore interface {
	// FetchAll returns every job definition in a stable order
	FetchAll(ctx context.Context) ([]models.JobDefinition, error)

	// UpdateLastRun records a successful run at second resolution
	UpdateLastRun(ctx context.Context, jobName string, at time.Time) error
}

// JobInvoker triggers the handler registered under a job name.
// Implementations enforce their own timeouts and should return *InvocationError.
type JobInvoker interface {
	Invoke(ctx context.Context, jobName string, params json.RawMessage) error
}
