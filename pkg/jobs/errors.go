package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownJob means no handler is registered under the job name
	ErrUnknownJob = errors.New("unknown job")
	// ErrHandlerFailed means the job handler ran and reported an error
	ErrHandlerFailed = errors.New("job handler failed")
	// ErrTransport means the invocation could not reach the handler
	ErrTransport = errors.New("job transport failed")
)

// StoreOp names the store operation that failed
type StoreOp string

const (
	OpFetchAll      StoreOp = "fetch_all"
	OpUpdateLastRun StoreOp = "update_last_run"
)

// StoreError wraps a persistence failure
type StoreError struct {
	Op  StoreOp
	Job string // empty for fetch_all
	Err error
}

func (e *StoreError) Error() string {
	if e.Job == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s for job %s: %v", e.Op, e.Job, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InvocationKind classifies invocation failures
type InvocationKind int

const (
	KindHandlerFailed InvocationKind = iota
	KindUnknownJob
	KindTransport
)

func (k InvocationKind) String() string {
	switch k {
	case KindUnknownJob:
		return "unknown_job"
	case KindTransport:
		return "transport"
	default:
		return "handler_failed"
	}
}

func (k InvocationKind) sentinel() error {
	switch k {
	case KindUnknownJob:
		return ErrUnknownJob
	case KindTransport:
		return ErrTransport
	default:
		return ErrHandlerFailed
	}
}

// InvocationError is returned by invokers when a job could not be run
type InvocationError struct {
	Job    string
	Kind   InvocationKind
	Status int // transport status code, when there is one
	Err    error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("invoke %s: %s", e.Job, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels
func (e *InvocationError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// NewInvocationError builds an InvocationError of the given kind
func NewInvocationError(job string, kind InvocationKind, err error) *InvocationError {
	return &InvocationError{Job: job, Kind: kind, Err: err}
}

// RunStage names the runner step that failed
type RunStage string

const (
	StageInvoke  RunStage = "invoke"
	StagePersist RunStage = "persist"
)

// RunError reports a per-job failure within a cycle
type RunError struct {
	Job   string
	Stage RunStage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("job %s failed at %s: %v", e.Job, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// ErrJobNotFound is returned by stores when updating a job that does not exist
var ErrJobNotFound = errors.New("job not found")
