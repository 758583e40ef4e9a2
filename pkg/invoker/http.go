// Package invoker triggers job handlers by name.
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/iddaa-lens/jobrunner/internal/config"
	"github.com/iddaa-lens/jobrunner/pkg/jobs"
	"github.com/iddaa-lens/jobrunner/pkg/logger"
)

const maxErrorBody = 64 << 10

// HTTPConfig configures an HTTPInvoker
type HTTPConfig struct {
	BaseURL   string
	AppID     string
	MasterKey string
	Timeout   time.Duration

	// RateLimit is requests per second; zero or less disables limiting
	RateLimit float64

	// BreakerFailures consecutive transport or 5xx failures open the breaker
	BreakerFailures int
	BreakerCooldown time.Duration
}

// HTTPConfigFrom maps the service configuration onto an HTTPConfig
func HTTPConfigFrom(cfg *config.Config) HTTPConfig {
	return HTTPConfig{
		BaseURL:         cfg.Invoker.ServerURL,
		AppID:           cfg.Invoker.AppID,
		MasterKey:       cfg.Invoker.MasterKey,
		Timeout:         cfg.InvokerTimeout(),
		RateLimit:       cfg.Invoker.RateLimit,
		BreakerFailures: cfg.Invoker.BreakerFailures,
		BreakerCooldown: cfg.Invoker.BreakerCooldown,
	}
}

// HTTPInvoker runs jobs by POSTing to {BaseURL}/jobs/{name}
type HTTPInvoker struct {
	baseURL   string
	appID     string
	masterKey string
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	logger    *logger.Logger
}

var _ jobs.JobInvoker = (*HTTPInvoker)(nil)

// NewHTTPInvoker creates an invoker; client may be nil
func NewHTTPInvoker(cfg HTTPConfig, client *http.Client, log *logger.Logger) *HTTPInvoker {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.New("job-invoker")
	}

	inv := &HTTPInvoker{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		appID:     cfg.AppID,
		masterKey: cfg.MasterKey,
		client:    client,
		logger:    log,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		inv.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = 5
	}
	inv.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "job-invoker",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("action", "breaker_state_change").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker changed state")
		},
	})

	return inv
}

// breakerSuccess counts only unreachable or erroring servers against the breaker.
// A handler that ran and failed, or an unknown job, says nothing about server health.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var invErr *jobs.InvocationError
	if !errors.As(err, &invErr) {
		return false
	}
	if invErr.Kind == jobs.KindTransport {
		return false
	}
	return invErr.Status < http.StatusInternalServerError
}

// Invoke triggers the named job with params as the JSON body
func (i *HTTPInvoker) Invoke(ctx context.Context, jobName string, params json.RawMessage) error {
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return jobs.NewInvocationError(jobName, jobs.KindTransport, fmt.Errorf("rate limiter: %w", err))
		}
	}

	_, err := i.breaker.Execute(func() (interface{}, error) {
		return nil, i.post(ctx, jobName, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return jobs.NewInvocationError(jobName, jobs.KindTransport, err)
	}
	return err
}

// BreakerState reports the current circuit breaker state
func (i *HTTPInvoker) BreakerState() gobreaker.State {
	return i.breaker.State()
}

func (i *HTTPInvoker) post(ctx context.Context, jobName string, params json.RawMessage) error {
	body := []byte(params)
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	endpoint := fmt.Sprintf("%s/jobs/%s", i.baseURL, url.PathEscape(jobName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return jobs.NewInvocationError(jobName, jobs.KindTransport, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if i.appID != "" {
		req.Header.Set("X-Parse-Application-Id", i.appID)
	}
	if i.masterKey != "" {
		req.Header.Set("X-Parse-Master-Key", i.masterKey)
	}

	start := time.Now()
	resp, err := i.client.Do(req)
	if err != nil {
		i.logger.LogAPICall(http.MethodPost, endpoint, 0, time.Since(start), err)
		return jobs.NewInvocationError(jobName, jobs.KindTransport, fmt.Errorf("failed to make request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()
	i.logger.LogAPICall(http.MethodPost, endpoint, resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}

	errBody, msg := readErrorResponse(resp.Body)
	kind := jobs.KindHandlerFailed
	if errBody.unknownJob() || resp.StatusCode == http.StatusNotFound {
		kind = jobs.KindUnknownJob
	}
	return &jobs.InvocationError{
		Job:    jobName,
		Kind:   kind,
		Status: resp.StatusCode,
		Err:    errors.New(msg),
	}
}

// Parse Server answers an unregistered job with 400 and this code/message
const (
	codeScriptFailed  = 141
	invalidJobMessage = "Invalid job."
)

// errorResponse is the error body returned by the jobs server
type errorResponse struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func (e errorResponse) unknownJob() bool {
	return e.Code == codeScriptFailed && e.Error == invalidJobMessage
}

// readErrorResponse decodes the error body and renders a message for it
func readErrorResponse(r io.Reader) (errorResponse, string) {
	var parsed errorResponse
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return parsed, fmt.Sprintf("failed to read response: %v", err)
	}

	if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
		if parsed.Code != 0 {
			return parsed, fmt.Sprintf("%s (code %d)", parsed.Error, parsed.Code)
		}
		return parsed, parsed.Error
	}

	if msg := strings.TrimSpace(string(data)); msg != "" {
		return parsed, msg
	}
	return parsed, "empty response"
}
