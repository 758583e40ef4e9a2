package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/iddaa-lens/jobrunner/pkg/logger"
)

// CycleJob runs a schedule cycle every time the cron trigger fires
type CycleJob struct {
	cycle    *Cycle
	schedule string
	clock    func() time.Time

	// OnReport, when set, receives every completed cycle report
	OnReport func(*CycleReport)
}

// NewCycleJob wraps cycle as a cron job firing on the given schedule
func NewCycleJob(cycle *Cycle, schedule string) *CycleJob {
	return &CycleJob{
		cycle:    cycle,
		schedule: schedule,
		clock:    time.Now,
	}
}

// Execute samples the evaluation instant once and runs a full cycle with it
func (j *CycleJob) Execute(ctx context.Context) error {
	log := logger.WithContext(ctx, "schedule-cycle")
	now := j.clock().UTC()

	report, err := j.cycle.RunCycle(ctx, now)
	if err != nil {
		return fmt.Errorf("schedule cycle at %s: %w", now.Format(time.RFC3339), err)
	}

	log.Debug().
		Str("action", "cycle_report").
		Str("cycle_id", report.ID).
		Int("job_count", len(report.Outcomes)).
		Msg("Cycle report ready")

	if j.OnReport != nil {
		j.OnReport(report)
	}
	return nil
}

func (j *CycleJob) Name() string {
	return "schedule_cycle"
}

func (j *CycleJob) Schedule() string {
	return j.schedule
}
