package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/google/uuid"
)

// JobRepository is a process-local job registry. Reads share the lock; writes are serialized.
// Stored jobs are copied on the way in and out so callers never alias registry state.
type JobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entity.Job
}

func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[uuid.UUID]*entity.Job)}
}

func (r *JobRepository) Create(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("insert job: duplicate id %s", job.ID)
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *JobRepository) SetReady(_ context.Context, id uuid.UUID, frameCount int) error {
	return r.update(id, func(j *entity.Job) error { return j.MarkReady(frameCount) })
}

func (r *JobRepository) SetFailed(_ context.Context, id uuid.UUID, reason string) error {
	return r.update(id, func(j *entity.Job) error { return j.MarkFailed(reason) })
}

func (r *JobRepository) Get(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", entity.ErrNotFound, id)
	}
	return job.Clone(), nil
}

func (r *JobRepository) ListFinishedBefore(_ context.Context, cutoff time.Time) ([]*entity.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Job
	for _, job := range r.jobs {
		if job.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			out = append(out, job.Clone())
		}
	}
	return out, nil
}

func (r *JobRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

func (r *JobRepository) update(id uuid.UUID, fn func(*entity.Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: job %s", entity.ErrNotFound, id)
	}
	next := job.Clone()
	if err := fn(next); err != nil {
		return err
	}
	r.jobs[id] = next
	return nil
}
