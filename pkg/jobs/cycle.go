package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/models"
	"github.com/iddaa-lens/jobrunner/pkg/schedule"
)

// OutcomeState is the terminal state of one job within a cycle
type OutcomeState string

const (
	StatePending   OutcomeState = "pending"
	StateSkipped   OutcomeState = "skipped"
	StateSucceeded OutcomeState = "succeeded"
	StateFailed    OutcomeState = "failed"
)

// JobOutcome records what happened to one job during a cycle
type JobOutcome struct {
	Name       string             `json:"name"`
	State      OutcomeState       `json:"state"`
	RejectedBy schedule.Predicate `json:"rejected_by,omitempty"`
	Err        error              `json:"-"`
	Duration   time.Duration      `json:"duration"`
}

// CycleReport aggregates the outcomes of one evaluation pass
type CycleReport struct {
	ID          string        `json:"id"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Outcomes    []JobOutcome  `json:"outcomes"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
}

// Errors returns the per-job failures in store order
func (r *CycleReport) Errors() []error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// Outcome returns the outcome for a job name
func (r *CycleReport) Outcome(name string) (JobOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return JobOutcome{}, false
}

// CycleConfig tunes a Cycle
type CycleConfig struct {
	// Concurrency bounds parallel invocations; zero or less means unbounded
	Concurrency int
}

// DefaultCycleConfig returns the defaults used by the cron service
func DefaultCycleConfig() *CycleConfig {
	return &CycleConfig{
		Concurrency: 8,
	}
}

// Cycle runs one fetch/evaluate/invoke pass over every stored job
type Cycle struct {
	store       JobStore
	runner      *Runner
	logger      *logger.Logger
	concurrency int
}

// NewCycle creates a cycle over the given collaborators
func NewCycle(store JobStore, invoker JobInvoker, log *logger.Logger, config *CycleConfig) *Cycle {
	if config == nil {
		config = DefaultCycleConfig()
	}
	if log == nil {
		log = logger.New("schedule-cycle")
	}

	return &Cycle{
		store:       store,
		runner:      NewRunner(store, invoker, log),
		logger:      log,
		concurrency: config.Concurrency,
	}
}

// RunCycle evaluates every job at now and runs the eligible ones concurrently.
// Only a failure to fetch the job list is returned as an error; per-job
// failures are recorded in the report. Once started, every eligible job is
// attempted; ctx is only forwarded to the store and invoker.
func (c *Cycle) RunCycle(ctx context.Context, now time.Time) (*CycleReport, error) {
	report := &CycleReport{
		ID:          uuid.New().String(),
		EvaluatedAt: now,
		StartedAt:   time.Now(),
	}
	log := c.logger.WithCycle(report.ID, now)

	all, err := c.store.FetchAll(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Str("action", "fetch_failed").
			Msg("Failed to fetch job definitions")
		return nil, &StoreError{Op: OpFetchAll, Err: err}
	}

	log.LogCycleStart(len(all))

	report.Outcomes = make([]JobOutcome, len(all))
	var eligible []int
	for i, job := range all {
		report.Outcomes[i] = JobOutcome{Name: job.Name, State: StatePending}

		decision := schedule.Evaluate(job, now)
		if !decision.Eligible {
			report.Outcomes[i].State = StateSkipped
			report.Outcomes[i].RejectedBy = decision.RejectedBy
			log.LogJobSkipped(job.Name, string(decision.RejectedBy))
			continue
		}
		eligible = append(eligible, i)
	}

	c.runEligible(ctx, all, eligible, report.Outcomes, now)

	for _, o := range report.Outcomes {
		switch o.State {
		case StateSucceeded:
			report.Succeeded++
		case StateFailed:
			report.Failed++
		case StateSkipped:
			report.Skipped++
		}
	}
	report.Duration = time.Since(report.StartedAt)

	log.LogCycleComplete(report.Duration, report.Succeeded, report.Failed, report.Skipped)
	return report, nil
}

// runEligible fans out the runner; each goroutine writes only its own outcome slot
func (c *Cycle) runEligible(ctx context.Context, jobs []models.JobDefinition, eligible []int, outcomes []JobOutcome, now time.Time) {
	var g errgroup.Group
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}

	for _, idx := range eligible {
		job := jobs[idx]
		out := &outcomes[idx]

		g.Go(func() error {
			start := time.Now()
			err := c.runner.Run(ctx, job, now)
			out.Duration = time.Since(start)
			if err != nil {
				out.State = StateFailed
				out.Err = err
			} else {
				out.State = StateSucceeded
			}
			// Failures never cancel siblings
			return nil
		})
	}

	_ = g.Wait()
}

// Evaluate reports the decision for every stored job at now without invoking anything
func (c *Cycle) Evaluate(ctx context.Context, now time.Time) ([]models.JobDefinition, []schedule.Decision, error) {
	all, err := c.store.FetchAll(ctx)
	if err != nil {
		return nil, nil, &StoreError{Op: OpFetchAll, Err: err}
	}

	decisions := make([]schedule.Decision, len(all))
	for i, job := range all {
		decisions[i] = schedule.Evaluate(job, now)
	}
	return all, decisions, nil
}
