package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/iddaa-lens/jobrunner/pkg/jobs"
)

// HandlerFunc runs a job in-process
type HandlerFunc func(ctx context.Context, params json.RawMessage) error

// Registry dispatches jobs to handlers registered by name
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

var _ jobs.JobInvoker = (*Registry)(nil)

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register adds a handler. Names must be non-empty and unique.
func (r *Registry) Register(name string, fn HandlerFunc) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("handler name is required")
	}
	if fn == nil {
		return fmt.Errorf("handler %s is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %s already registered", name)
	}
	r.handlers[name] = fn
	return nil
}

// Names returns the registered handler names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the handler registered under jobName
func (r *Registry) Invoke(ctx context.Context, jobName string, params json.RawMessage) (err error) {
	r.mu.RLock()
	fn, ok := r.handlers[jobName]
	r.mu.RUnlock()
	if !ok {
		return jobs.NewInvocationError(jobName, jobs.KindUnknownJob, nil)
	}

	defer func() {
		if p := recover(); p != nil {
			err = jobs.NewInvocationError(jobName, jobs.KindHandlerFailed, fmt.Errorf("panic: %v", p))
		}
	}()

	if err := fn(ctx, params); err != nil {
		var invErr *jobs.InvocationError
		if errors.As(err, &invErr) {
			return err
		}
		return jobs.NewInvocationError(jobName, jobs.KindHandlerFailed, err)
	}
	return nil
}
