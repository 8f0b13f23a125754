package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ArchiveUseCase struct {
	store   port.JobStore
	storage port.FrameStorage
	zipper  port.Zipper
	logger  *zap.Logger
}

func NewArchiveUseCase(store port.JobStore, storage port.FrameStorage, zipper port.Zipper, logger *zap.Logger) *ArchiveUseCase {
	return &ArchiveUseCase{store: store, storage: storage, zipper: zipper, logger: logger}
}

// Prepare resolves the job to archive. It is split from Write so callers can report
// lookup errors before any archive bytes are sent.
func (uc *ArchiveUseCase) Prepare(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != entity.JobStatusReady {
		return nil, fmt.Errorf("%w: job %s is %s", entity.ErrNotReady, id, job.Status)
	}
	return job, nil
}

// Write streams every frame of job into w in ordinal order.
func (uc *ArchiveUseCase) Write(ctx context.Context, job *entity.Job, w io.Writer) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ArchiveUseCase.Write")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.Int("job.frame_count", job.FrameCount),
	)

	start := time.Now()
	err := uc.zipper.WriteZip(ctx, w, uc.entries(job))
	metrics.JobProcessingDuration.WithLabelValues("archive").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ArchivesServedTotal.WithLabelValues("error").Inc()
		uc.logger.Error("archive streaming failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		return err
	}

	metrics.ArchivesServedTotal.WithLabelValues("ok").Inc()
	return nil
}

func (uc *ArchiveUseCase) entries(job *entity.Job) []port.ZipEntry {
	modified := job.CreatedAt
	if job.CompletedAt != nil {
		modified = *job.CompletedAt
	}

	entries := make([]port.ZipEntry, 0, job.FrameCount)
	for ord := 1; ord <= job.FrameCount; ord++ {
		entries = append(entries, port.ZipEntry{
			Name:     entity.FrameFileName(ord),
			Modified: modified,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return uc.storage.OpenFrame(ctx, job.ID, ord)
			},
		})
	}
	return entries
}
