package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/models"
)

// Runner invokes an eligible job and records the run on success
type Runner struct {
	store   JobStore
	invoker JobInvoker
	logger  *logger.Logger
}

// NewRunner creates a runner over the given collaborators
func NewRunner(store JobStore, invoker JobInvoker, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.New("job-runner")
	}
	return &Runner{
		store:   store,
		invoker: invoker,
		logger:  log,
	}
}

// Run invokes the job and, only if the invocation succeeded, stores now
// (truncated to seconds) as its last run. Failures are returned as *RunError.
func (r *Runner) Run(ctx context.Context, job models.JobDefinition, now time.Time) error {
	log := r.logger.WithJob(job.Name)
	start := time.Now()

	err := r.invoker.Invoke(ctx, job.Name, job.Params)
	log.LogInvocation(job.Name, time.Since(start), err)
	if err != nil {
		var invErr *InvocationError
		if !errors.As(err, &invErr) {
			invErr = NewInvocationError(job.Name, KindHandlerFailed, err)
		}
		return &RunError{Job: job.Name, Stage: StageInvoke, Err: invErr}
	}

	lastRun := now.Truncate(time.Second)
	if err := r.store.UpdateLastRun(ctx, job.Name, lastRun); err != nil {
		log.WithError(err).Error().
			Str("action", "last_run_update_failed").
			Time("last_run", lastRun).
			Msg("Job ran but its last run could not be recorded")

		var storeErr *StoreError
		if !errors.As(err, &storeErr) {
			storeErr = &StoreError{Op: OpUpdateLastRun, Job: job.Name, Err: err}
		}
		return &RunError{Job: job.Name, Stage: StagePersist, Err: storeErr}
	}

	return nil
}
