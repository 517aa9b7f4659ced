package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bharatbuild/buildfix/internal/events"
)

// MemoryStore is an in-process Store for tests and DSN-less deployments.
type MemoryStore struct {
	mu       sync.Mutex
	runs     map[string]*RunRecord
	events   map[string][]events.Event
	attempts []*FixAttemptRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[string]*RunRecord),
		events: make(map[string][]events.Event),
	}
}

func (s *MemoryStore) CreateRun(_ context.Context, run *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *run
	s.runs[run.WorkflowID] = &cp
	return nil
}

func (s *MemoryStore) FinishRun(_ context.Context, workflowID, finalState string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[workflowID]
	if !ok {
		return ErrRunNotFound
	}
	run.FinalState = finalState
	t := completedAt
	run.CompletedAt = &t
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, workflowID string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[workflowID]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, projectID string, limit int) ([]*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*RunRecord
	for _, run := range s.runs {
		if run.ProjectID == projectID {
			cp := *run
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) RecordEvent(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.WorkflowID] = append(s.events[event.WorkflowID], event)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, workflowID string) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evts := s.events[workflowID]
	out := make([]events.Event, len(evts))
	copy(out, evts)
	return out, nil
}

func (s *MemoryStore) RecordFixAttempt(_ context.Context, attempt *FixAttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *attempt
	s.attempts = append(s.attempts, &cp)
	return nil
}

// FixAttempts returns a copy of every recorded attempt, oldest first.
func (s *MemoryStore) FixAttempts() []*FixAttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*FixAttemptRecord, len(s.attempts))
	copy(out, s.attempts)
	return out
}

func (s *MemoryStore) Close() error { return nil }
