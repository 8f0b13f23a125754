package port

import (
	"context"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/google/uuid"
)

// JobStore is the registry of jobs. Get returns entity.ErrNotFound for unknown ids;
// SetReady and SetFailed return entity.ErrInvalidTransition unless the job is extracting.
type JobStore interface {
	Create(ctx context.Context, job *entity.Job) error
	SetReady(ctx context.Context, id uuid.UUID, frameCount int) error
	SetFailed(ctx context.Context, id uuid.UUID, reason string) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)

	// ListFinishedBefore returns ready or failed jobs completed before cutoff.
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]*entity.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
