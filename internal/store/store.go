package store

import (
	"context"
	"errors"
	"sync"

	"github.com/awacs/annotate/internal/model"
)

// ErrNotFound is returned when no job exists under the given id.
var ErrNotFound = errors.New("job not found")

// JobStore persists job snapshots. The job service is the only writer;
// readers get copies and never observe partial updates.
type JobStore interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
}

// MemoryStore is the default in-process store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

func (s *MemoryStore) Save(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}
