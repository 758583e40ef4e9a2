// Package memory provides an in-process JobStore, optionally seeded from a YAML file.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/iddaa-lens/jobrunner/pkg/jobs"
	"github.com/iddaa-lens/jobrunner/pkg/models"
)

// Store keeps job definitions in insertion order
type Store struct {
	mu    sync.RWMutex
	order []string
	jobs  map[string]models.JobDefinition
}

var _ jobs.JobStore = (*Store)(nil)

// New creates a store holding the given definitions
func New(defs ...models.JobDefinition) (*Store, error) {
	s := &Store{jobs: make(map[string]models.JobDefinition)}
	for _, def := range defs {
		if err := s.Put(def); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put inserts or replaces a definition after validating it
func (s *Store) Put(def models.JobDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[def.Name]; !ok {
		s.order = append(s.order, def.Name)
	}
	s.jobs[def.Name] = clone(def)
	return nil
}

// Replace swaps in a new set of definitions, keeping any recorded run
// that is later than the incoming one
func (s *Store) Replace(defs []models.JobDefinition) error {
	order := make([]string, 0, len(defs))
	next := make(map[string]models.JobDefinition, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return err
		}
		if _, dup := next[def.Name]; !dup {
			order = append(order, def.Name)
		}
		next[def.Name] = clone(def)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, def := range next {
		old, ok := s.jobs[name]
		if !ok || old.LastRunAt == nil {
			continue
		}
		if def.LastRunAt == nil || old.LastRunAt.After(*def.LastRunAt) {
			lastRun := *old.LastRunAt
			def.LastRunAt = &lastRun
			next[name] = def
		}
	}
	s.order = order
	s.jobs = next
	return nil
}

// Get returns a copy of the named definition
func (s *Store) Get(name string) (models.JobDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.jobs[name]
	if !ok {
		return models.JobDefinition{}, false
	}
	return clone(def), true
}

// FetchAll returns copies of every definition in insertion order
func (s *Store) FetchAll(ctx context.Context) ([]models.JobDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.JobDefinition, 0, len(s.order))
	for _, name := range s.order {
		result = append(result, clone(s.jobs[name]))
	}
	return result, nil
}

// UpdateLastRun records at (truncated to seconds) unless a later run is already stored
func (s *Store) UpdateLastRun(ctx context.Context, jobName string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.jobs[jobName]
	if !ok {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobName)
	}

	lastRun := at.Truncate(time.Second).UTC()
	if def.LastRunAt != nil && def.LastRunAt.After(lastRun) {
		return nil
	}
	def.LastRunAt = &lastRun
	s.jobs[jobName] = def
	return nil
}

// clone copies the pointer and slice fields so callers cannot mutate stored state
func clone(def models.JobDefinition) models.JobDefinition {
	if def.LastRunAt != nil {
		lastRun := *def.LastRunAt
		def.LastRunAt = &lastRun
	}
	if def.Params != nil {
		def.Params = append(json.RawMessage(nil), def.Params...)
	}
	return def
}
