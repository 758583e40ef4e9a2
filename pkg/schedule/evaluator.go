package schedule

import (
	"time"

	"github.com/iddaa-lens/jobrunner/pkg/models"
)

type namedPredicate struct {
	name Predicate
	fn   PredicateFunc
}

// Evaluation order only affects which predicate short-circuits first
var predicates = [...]namedPredicate{
	{PredicateWeekday, WeekdayEligible},
	{PredicateActivation, ActivationEligible},
	{PredicateTimeOfDay, TimeOfDayEligible},
	{PredicateCooldown, CooldownEligible},
}

// Decision is the admission outcome for one job at one instant
type Decision struct {
	Eligible bool
	// RejectedBy names the first predicate that failed; empty when eligible
	RejectedBy Predicate
}

// Evaluate runs the predicates in order and stops at the first rejection
func Evaluate(job models.JobDefinition, now time.Time) Decision {
	for _, p := range predicates {
		if !p.fn(job, now) {
			return Decision{Eligible: false, RejectedBy: p.name}
		}
	}
	return Decision{Eligible: true}
}

// IsEligible reports whether every predicate admits the job at now
func IsEligible(job models.JobDefinition, now time.Time) bool {
	return WeekdayEligible(job, now) &&
		ActivationEligible(job, now) &&
		TimeOfDayEligible(job, now) &&
		CooldownEligible(job, now)
}

// FilterEligible returns the jobs eligible at now, preserving input order
func FilterEligible(jobs []models.JobDefinition, now time.Time) []models.JobDefinition {
	eligible := make([]models.JobDefinition, 0, len(jobs))
	for _, job := range jobs {
		if IsEligible(job, now) {
			eligible = append(eligible, job)
		}
	}
	return eligible
}

// NextCooldownEnd returns when a repeating job that already ran leaves its cooldown.
// The boolean is false for jobs that never ran or never repeat.
func NextCooldownEnd(job models.JobDefinition) (time.Time, bool) {
	if job.LastRunAt == nil || !job.Repeats() {
		return time.Time{}, false
	}
	return job.LastRunAt.Truncate(time.Second).Add(time.Duration(job.RepeatIntervalMinutes) * time.Minute), true
}
