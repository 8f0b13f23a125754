package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/google/uuid"
)

type FramePage struct {
	Items      []entity.FrameRef
	Page       int
	TotalPages int
	Total      int
	PageSize   int
}

type FrameQueryConfig struct {
	// URLPrefix is the route under which frame files are served.
	URLPrefix   string
	MaxPageSize int
}

// FrameQueryUseCase serves read access to a job and its frames.
type FrameQueryUseCase struct {
	store       port.JobStore
	storage     port.FrameStorage
	urlPrefix   string
	maxPageSize int
}

func NewFrameQueryUseCase(store port.JobStore, storage port.FrameStorage, cfg FrameQueryConfig) *FrameQueryUseCase {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 500
	}
	return &FrameQueryUseCase{
		store:       store,
		storage:     storage,
		urlPrefix:   cfg.URLPrefix,
		maxPageSize: cfg.MaxPageSize,
	}
}

func (uc *FrameQueryUseCase) Job(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return uc.store.Get(ctx, id)
}

// Page returns one page of a ready job's frames. Pages past the end are clamped to the
// last page. Locators are derived from the recorded frame count, so the cost is
// proportional to size and the frame directory is never listed.
func (uc *FrameQueryUseCase) Page(ctx context.Context, id uuid.UUID, page, size int) (*FramePage, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", entity.ErrInvalidInput, page)
	}
	if size < 1 || size > uc.maxPageSize {
		return nil, fmt.Errorf("%w: limit must be within 1..%d, got %d", entity.ErrInvalidInput, uc.maxPageSize, size)
	}

	job, err := uc.readyJob(ctx, id)
	if err != nil {
		return nil, err
	}

	total := job.FrameCount
	totalPages := TotalPages(total, size)
	if page > totalPages {
		page = totalPages
	}

	first := (page-1)*size + 1
	last := min(first+size-1, total)

	items := make([]entity.FrameRef, 0, max(0, last-first+1))
	for ord := first; ord <= last; ord++ {
		name := entity.FrameFileName(ord)
		items = append(items, entity.FrameRef{
			Ordinal: ord,
			Name:    name,
			URL:     entity.FrameURL(uc.urlPrefix, job.ID, name),
		})
	}

	return &FramePage{
		Items:      items,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		PageSize:   size,
	}, nil
}

// OpenFrame opens a frame of a ready job by file name.
func (uc *FrameQueryUseCase) OpenFrame(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, error) {
	ord, ok := entity.ParseFrameOrdinal(name)
	if !ok || entity.FrameFileName(ord) != name {
		return nil, fmt.Errorf("%w: frame %q", entity.ErrNotFound, name)
	}

	job, err := uc.readyJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if ord > job.FrameCount {
		return nil, fmt.Errorf("%w: frame %q", entity.ErrNotFound, name)
	}
	return uc.storage.OpenFrame(ctx, id, ord)
}

func (uc *FrameQueryUseCase) readyJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != entity.JobStatusReady {
		return nil, fmt.Errorf("%w: job %s is %s", entity.ErrNotReady, id, job.Status)
	}
	return job, nil
}

// TotalPages is ceil(total/size), and never less than 1.
func TotalPages(total, size int) int {
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
