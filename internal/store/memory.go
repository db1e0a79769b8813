package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/jobflow/internal/domain"
)

// MemoryStore is an in-memory Store used by tests and the memory queue
// backend in development. It mirrors the Postgres semantics, including the
// single-record scope of each mutation.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*domain.Job),
	}
}

func (s *MemoryStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return domain.ErrJobExists
	}

	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	return copyJob(job), nil
}

func (s *MemoryStore) MarkProcessing(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return 0, domain.ErrJobNotFound
	}

	job.Status = domain.StatusProcessing
	job.Attempts++
	job.UpdatedAt = time.Now()

	return job.Attempts, nil
}

func (s *MemoryStore) MarkRetrying(_ context.Context, id, errMsg string) error {
	return s.setFailure(id, domain.StatusRetrying, errMsg)
}

func (s *MemoryStore) MarkFailed(_ context.Context, id, errMsg string) error {
	return s.setFailure(id, domain.StatusFailed, errMsg)
}

func (s *MemoryStore) setFailure(id string, status domain.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}

	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) Complete(_ context.Context, id string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}

	job.Status = domain.StatusCompleted
	job.Result = append(json.RawMessage(nil), result...)
	job.Error = ""
	job.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && string(job.Status) != filter.Status {
			continue
		}
		if filter.Cursor != nil && !beforeCursor(job, filter.Cursor) {
			continue
		}
		matched = append(matched, *copyJob(job))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.PageSize > 0 && len(matched) > filter.PageSize+1 {
		matched = matched[:filter.PageSize+1]
	}

	return matched, nil
}

// beforeCursor reports whether the job sorts strictly after the cursor
// position in (created_at DESC, job_id DESC) order.
func beforeCursor(job *domain.Job, cursor *Cursor) bool {
	if !job.CreatedAt.Equal(cursor.CreatedAt) {
		return job.CreatedAt.Before(cursor.CreatedAt)
	}
	return job.ID < cursor.JobID
}

func copyJob(job *domain.Job) *domain.Job {
	clone := *job
	clone.Payload = append(json.RawMessage(nil), job.Payload...)
	clone.Result = append(json.RawMessage(nil), job.Result...)
	return &clone
}
