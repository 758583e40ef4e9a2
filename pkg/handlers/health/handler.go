package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/models/api"
)

// CheckFunc reports whether the job store is reachable
type CheckFunc func(ctx context.Context) error

// Handler handles health check requests
type Handler struct {
	logger  *logger.Logger
	check   CheckFunc
	timeout time.Duration
}

// NewHandler creates a new health handler; check may be nil
func NewHandler(log *logger.Logger, check CheckFunc) *Handler {
	return &Handler{
		logger:  log,
		check:   check,
		timeout: 5 * time.Second,
	}
}

// HealthCheck handles the /health endpoint
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	response := api.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	}
	statusCode := http.StatusOK

	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := h.check(ctx)
		cancel()
		if err != nil {
			response.Status = "degraded"
			response.Store = "unreachable"
			response.Error = err.Error()
			statusCode = http.StatusServiceUnavailable
		} else {
			response.Store = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "health_check_failed").
			Str("endpoint", "/health").
			Msg("Failed to encode health response")
		return
	}

	h.logger.Debug().
		Str("action", "health_check").
		Str("endpoint", "/health").
		Str("method", r.Method).
		Str("remote_addr", r.RemoteAddr).
		Int("status_code", statusCode).
		Dur("duration", time.Since(start)).
		Msg("Health check completed")
}
