// Package schedule decides whether a recurring job may run at an evaluation instant.
//
// Each predicate looks at one dimension of a job definition and is a pure
// function of the definition and the instant. The evaluator combines them.
package schedule

import (
	"time"

	"github.com/iddaa-lens/jobrunner/pkg/models"
)

// Predicate identifies one eligibility dimension
type Predicate string

const (
	PredicateNone       Predicate = ""
	PredicateWeekday    Predicate = "weekday"
	PredicateActivation Predicate = "active_after"
	PredicateTimeOfDay  Predicate = "time_of_day"
	PredicateCooldown   Predicate = "cooldown"
)

// PredicateFunc answers whether a job is eligible along a single dimension
type PredicateFunc func(job models.JobDefinition, now time.Time) bool

// WeekdayEligible reports whether the job's mask enables the UTC weekday of now
func WeekdayEligible(job models.JobDefinition, now time.Time) bool {
	return job.Weekdays.Allows(now.UTC().Weekday())
}

// ActivationEligible reports whether now is strictly after the job's activation instant
func ActivationEligible(job models.JobDefinition, now time.Time) bool {
	return job.ActiveAfter.Before(now)
}

// TimeOfDayEligible reports whether the UTC clock time of now has reached the job's threshold.
// Only the offset from midnight is compared; the date is ignored.
func TimeOfDayEligible(job models.JobDefinition, now time.Time) bool {
	return models.TimeOfDayOf(now) >= job.TimeOfDay
}

// CooldownEligible reports whether enough time has passed since the job's last successful run.
// A job that never ran is always eligible; a non-repeating job that ran once never is again.
func CooldownEligible(job models.JobDefinition, now time.Time) bool {
	if !job.HasRun() {
		return true
	}
	if !job.Repeats() {
		return false
	}

	// Whole-second comparison; Unix() floors sub-second parts
	nextRun := job.LastRunAt.Unix() + int64(job.RepeatIntervalMinutes)*60
	return nextRun <= now.Unix()
}
