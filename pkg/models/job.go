package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidJobDefinition is returned when a definition fails validation at ingestion
var ErrInvalidJobDefinition = errors.New("invalid job definition")

// JobDefinition represents one recurring job as persisted by the job store
type JobDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Params      json.RawMessage `json:"params,omitempty"`

	// ActiveAfter is the instant after which the job may run (exclusive)
	ActiveAfter time.Time   `json:"active_after"`
	Weekdays    WeekdayMask `json:"weekdays"`
	TimeOfDay   TimeOfDay   `json:"time_of_day"`

	// LastRunAt is nil when the job has never completed a successful run
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// RepeatIntervalMinutes of zero makes the job run at most once
	RepeatIntervalMinutes int `json:"repeat_interval_minutes,omitempty"`
}

// Repeats reports whether the job has a repeat interval configured
func (j JobDefinition) Repeats() bool {
	return j.RepeatIntervalMinutes > 0
}

// HasRun reports whether the job has a recorded successful run
func (j JobDefinition) HasRun() bool {
	return j.LastRunAt != nil
}

// Validate checks the fields the eligibility engine relies on
func (j JobDefinition) Validate() error {
	if strings.TrimSpace(j.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidJobDefinition)
	}
	if j.RepeatIntervalMinutes < 0 {
		return fmt.Errorf("%w: job %s: negative repeat interval %d", ErrInvalidJobDefinition, j.Name, j.RepeatIntervalMinutes)
	}
	if !j.TimeOfDay.Valid() {
		return fmt.Errorf("%w: job %s: time of day out of range", ErrInvalidJobDefinition, j.Name)
	}
	if len(j.Params) > 0 && !json.Valid(j.Params) {
		return fmt.Errorf("%w: job %s: params are not valid JSON", ErrInvalidJobDefinition, j.Name)
	}
	return nil
}

// LastRunFromUnix maps a stored last-run value to LastRunAt.
// Null and 0 both mean the job never ran.
func LastRunFromUnix(sec *int64) *time.Time {
	if sec == nil || *sec == 0 {
		return nil
	}
	lastRun := UnixSeconds(*sec)
	return &lastRun
}

// UnixSeconds converts a stored last-run value to an instant at second resolution
func UnixSeconds(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
