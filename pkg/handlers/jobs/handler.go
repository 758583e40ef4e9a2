package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/models"
	"github.com/iddaa-lens/jobrunner/pkg/models/api"
	"github.com/iddaa-lens/jobrunner/pkg/schedule"
)

// Evaluator returns every stored job and its decision at now
type Evaluator interface {
	Evaluate(ctx context.Context, now time.Time) ([]models.JobDefinition, []schedule.Decision, error)
}

type Handler struct {
	evaluator Evaluator
	logger    *logger.Logger
	clock     func() time.Time
}

func NewHandler(evaluator Evaluator, logger *logger.Logger) *Handler {
	return &Handler{
		evaluator: evaluator,
		logger:    logger,
		clock:     time.Now,
	}
}

// List handles GET /api/jobs
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

// Eligible handles GET /api/jobs/eligible
func (h *Handler) Eligible(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, onlyEligible bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now, err := h.instant(r)
	if err != nil {
		http.Error(w, "Invalid 'at' parameter, expected RFC3339", http.StatusBadRequest)
		return
	}

	defs, decisions, err := h.evaluator.Evaluate(r.Context(), now)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "evaluate_failed").
			Str("endpoint", r.URL.Path).
			Msg("Failed to evaluate jobs")
		http.Error(w, "Failed to fetch jobs", http.StatusInternalServerError)
		return
	}

	response := make([]api.JobResponse, 0, len(defs))
	eligible := 0
	for i, def := range defs {
		decision := decisions[i]
		if decision.Eligible {
			eligible++
		} else if onlyEligible {
			continue
		}
		response = append(response, api.NewJobResponse(def, decision))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(api.Response{
		Success: true,
		Data:    response,
		Meta: api.EvaluationMeta{
			EvaluatedAt: now,
			Total:       len(defs),
			Eligible:    eligible,
		},
	}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode jobs response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// instant reads the optional ?at= override, defaulting to the current time
func (h *Handler) instant(r *http.Request) (time.Time, error) {
	at := r.URL.Query().Get("at")
	if at == "" {
		return h.clock().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return time.Time{}, errors.New("invalid at")
	}
	return t.UTC(), nil
}
