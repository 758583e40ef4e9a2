package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/iddaa-lens/jobrunner/pkg/logger"
)

// ManagerConfig holds configuration for the cron job manager
type ManagerConfig struct {
	ExecutionTimeout time.Duration // Deadline for a single execution
	RunOnStart       bool          // Execute every job once when Start is called
}

// DefaultManagerConfig returns sensible defaults for the cron service
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		ExecutionTimeout: 30 * time.Minute,
		RunOnStart:       false,
	}
}

type cronJobManager struct {
	cron   *cron.Cron
	jobs   []Job
	runs   []cron.Job
	logger *logger.Logger
	config *ManagerConfig

	mu      sync.Mutex
	started sync.WaitGroup
}

// NewJobManager creates a new job manager. Overlapping executions of the
// same job are skipped, so at most one run of each job is active at a time.
func NewJobManager(log *logger.Logger, config *ManagerConfig) JobManager {
	if log == nil {
		log = logger.New("job-manager")
	}
	if config == nil {
		config = DefaultManagerConfig()
	}

	return &cronJobManager{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(log.CronLogger()),
		),
		jobs:   make([]Job, 0),
		logger: log,
		config: config,
	}
}

func (m *cronJobManager) RegisterJob(job Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	m.logger.Info().
		Str("action", "register_job").
		Str("job_name", job.Name()).
		Str("schedule", job.Schedule()).
		Msg("Registering job")

	// Startup and cron-triggered runs share the same skip guard
	run := cron.NewChain(
		cron.Recover(m.logger.CronLogger()),
		cron.SkipIfStillRunning(m.logger.CronLogger()),
	).
		Then(cron.FuncJob(func() {
			m.execute(job)
		}))

	if _, err := m.cron.AddJob(job.Schedule(), run); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.runs = append(m.runs, run)
	m.mu.Unlock()
	return nil
}

// execute runs one job with a request-scoped logger and a bounded context
func (m *cronJobManager) execute(job Job) {
	requestID := uuid.New().String()
	jobLogger := m.logger.WithRequestID(requestID).WithJob(job.Name())

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ExecutionTimeout)
	defer cancel()
	ctx = jobLogger.ToContext(ctx)

	jobLogger.LogJobStart(job.Name(), job.Schedule())
	start := time.Now()

	if err := job.Execute(ctx); err != nil {
		jobLogger.Error().
			Err(err).
			Str("action", "job_failed").
			Dur("duration", time.Since(start)).
			Msg("Job execution failed")
		return
	}

	jobLogger.LogJobComplete(job.Name(), time.Since(start), 0, 0)
}

func (m *cronJobManager) Start() {
	m.mu.Lock()
	jobs := append([]Job(nil), m.jobs...)
	runs := append([]cron.Job(nil), m.runs...)
	m.mu.Unlock()

	m.logger.Info().
		Str("action", "start").
		Int("job_count", len(jobs)).
		Bool("run_on_start", m.config.RunOnStart).
		Msg("Starting job manager")

	if m.config.RunOnStart {
		for _, run := range runs {
			m.started.Add(1)
			go func(run cron.Job) {
				defer m.started.Done()
				run.Run()
			}(run)
		}
	}

	m.cron.Start()
}

func (m *cronJobManager) Stop() {
	m.logger.Info().
		Str("action", "stop_initiated").
		Msg("Stopping job manager")

	// Stop scheduling new runs and wait for running ones
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.started.Wait()

	m.logger.Info().
		Str("action", "stopped").
		Msg("Job manager stopped")
}

func (m *cronJobManager) GetJobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Job(nil), m.jobs...)
}
