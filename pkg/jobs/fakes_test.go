package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/iddaa-lens/jobrunner/pkg/models"
)

// fakeStore is an in-memory JobStore that records updates
type fakeStore struct {
	mu        sync.Mutex
	jobs      []models.JobDefinition
	fetchErr  error
	updateErr error
	updates   map[string][]time.Time
}

func newFakeStore(jobs ...models.JobDefinition) *fakeStore {
	return &fakeStore{
		jobs:    jobs,
		updates: make(map[string][]time.Time),
	}
}

func (s *fakeStore) FetchAll(ctx context.Context) ([]models.JobDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return append([]models.JobDefinition(nil), s.jobs...), nil
}

func (s *fakeStore) UpdateLastRun(ctx context.Context, jobName string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates[jobName] = append(s.updates[jobName], at)
	for i := range s.jobs {
		if s.jobs[i].Name == jobName {
			ts := at
			s.jobs[i].LastRunAt = &ts
		}
	}
	return nil
}

func (s *fakeStore) lastRun(name string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.Name == name {
			return job.LastRunAt
		}
	}
	return nil
}

func (s *fakeStore) updateCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates[name])
}

// fakeInvoker records calls and fails for configured names
type fakeInvoker struct {
	mu      sync.Mutex
	calls   []string
	params  map[string]json.RawMessage
	fail    map[string]error
	unknown map[string]bool
	delay   time.Duration

	inFlight    int
	maxInFlight int
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		params:  make(map[string]json.RawMessage),
		fail:    make(map[string]error),
		unknown: make(map[string]bool),
	}
}

func (f *fakeInvoker) Invoke(ctx context.Context, jobName string, params json.RawMessage) error {
	f.mu.Lock()
	f.calls = append(f.calls, jobName)
	f.params[jobName] = params
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	failErr := f.fail[jobName]
	isUnknown := f.unknown[jobName]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if isUnknown {
		return NewInvocationError(jobName, KindUnknownJob, errors.New("no handler registered"))
	}
	return failErr
}

func (f *fakeInvoker) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}
