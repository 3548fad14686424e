package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/vodbridge/backend/internal/models"
)

// ErrNotFound is returned when a job id is unknown or already evicted.
var ErrNotFound = errors.New("job not found")

// DefaultRetentionCap bounds how many jobs a store keeps before evicting
// the oldest ones.
const DefaultRetentionCap = 100

// Store keeps transfer jobs for polling. Implementations must return
// snapshots from Get so readers never observe in-place mutation.
type Store interface {
	Add(ctx context.Context, job *models.Job) error
	Update(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// MemoryStore is the default in-process Store. Jobs are retained after
// completion for polling and evicted oldest-first once the cap is exceeded.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[uuid.UUID]*models.Job
	order []uuid.UUID // insertion order == creation order
	cap   int
}

// NewMemoryStore creates a memory store with the given retention cap.
// A cap <= 0 falls back to DefaultRetentionCap.
func NewMemoryStore(retentionCap int) *MemoryStore {
	if retentionCap <= 0 {
		retentionCap = DefaultRetentionCap
	}
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*models.Job),
		cap:  retentionCap,
	}
}

// Add registers a new job and evicts the oldest entries past the cap.
func (s *MemoryStore) Add(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job.Clone()
	s.order = append(s.order, job.ID)
	for len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.jobs, oldest)
	}
	return nil
}

// Update replaces the stored state of an existing job. Updating an evicted
// job is a no-op: the orchestrator may still be running a transfer whose
// record has already aged out.
func (s *MemoryStore) Update(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return nil
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns a snapshot of the job, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// Len reports the number of retained jobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
