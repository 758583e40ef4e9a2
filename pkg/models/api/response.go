package api

import (
	"encoding/json"
	"time"

	"github.com/iddaa-lens/jobrunner/pkg/models"
	"github.com/iddaa-lens/jobrunner/pkg/schedule"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Store     string    `json:"store,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// JobResponse represents a job definition with its decision at the evaluation instant
type JobResponse struct {
	Name                  string             `json:"name"`
	Description           string             `json:"description,omitempty"`
	Params                json.RawMessage    `json:"params,omitempty"`
	ActiveAfter           time.Time          `json:"active_after"`
	Weekdays              models.WeekdayMask `json:"weekdays"`
	TimeOfDay             models.TimeOfDay   `json:"time_of_day"`
	LastRunAt             *time.Time         `json:"last_run_at,omitempty"`
	RepeatIntervalMinutes int                `json:"repeat_interval_minutes"`
	Eligible              bool               `json:"eligible"`
	RejectedBy            string             `json:"rejected_by,omitempty"`
	CooldownEndsAt        *time.Time         `json:"cooldown_ends_at,omitempty"`
}

// EvaluationMeta describes the instant and counts behind a jobs listing
type EvaluationMeta struct {
	EvaluatedAt time.Time `json:"evaluated_at"`
	Total       int       `json:"total"`
	Eligible    int       `json:"eligible"`
}

// Response represents a general API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
}

// NewJobResponse combines a definition with its decision
func NewJobResponse(def models.JobDefinition, decision schedule.Decision) JobResponse {
	resp := JobResponse{
		Name:                  def.Name,
		Description:           def.Description,
		Params:                def.Params,
		ActiveAfter:           def.ActiveAfter,
		Weekdays:              def.Weekdays,
		TimeOfDay:             def.TimeOfDay,
		LastRunAt:             def.LastRunAt,
		RepeatIntervalMinutes: def.RepeatIntervalMinutes,
		Eligible:              decision.Eligible,
		RejectedBy:            string(decision.RejectedBy),
	}
	if end, ok := schedule.NextCooldownEnd(def); ok {
		resp.CooldownEndsAt = &end
	}
	return resp
}
