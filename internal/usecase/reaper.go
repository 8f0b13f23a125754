package usecase

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReaperConfig struct {
	TempDir   string
	Interval  time.Duration
	Retention time.Duration
}

// Reaper removes finished jobs past their retention and upload directories whose job is
// no longer extracting.
type Reaper struct {
	store     port.JobStore
	storage   port.FrameStorage
	logger    *zap.Logger
	tempDir   string
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewReaper(store port.JobStore, storage port.FrameStorage, logger *zap.Logger, cfg ReaperConfig) *Reaper {
	return &Reaper{
		store:     store,
		storage:   storage,
		logger:    logger,
		tempDir:   cfg.TempDir,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		now:       time.Now,
	}
}

// Run sweeps every interval until ctx is done. A zero interval disables the reaper.
func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("reaper disabled")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started",
		zap.Duration("interval", r.interval),
		zap.Duration("retention", r.retention),
	)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Warn("reaper sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep performs one pass and returns the number of jobs removed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.retention)
	jobs, err := r.store.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, job := range jobs {
		log := r.logger.With(zap.String("job_id", job.ID.String()))
		if err := r.storage.Remove(ctx, job.ID); err != nil {
			log.Warn("failed to remove frames of expired job", zap.Error(err))
			continue
		}
		if err := r.store.Delete(ctx, job.ID); err != nil && !errors.Is(err, entity.ErrNotFound) {
			log.Warn("failed to delete expired job", zap.Error(err))
			continue
		}
		removed++
		metrics.JobsReapedTotal.Inc()
		log.Info("expired job removed", zap.String("status", string(job.Status)))
	}

	r.removeOrphanUploads(ctx)
	return removed, nil
}

func (r *Reaper) removeOrphanUploads(ctx context.Context) {
	if r.tempDir == "" {
		return
	}
	entries, err := os.ReadDir(r.tempDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("failed to read temp dir", zap.Error(err))
		}
		return
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil {
			continue
		}
		job, err := r.store.Get(ctx, id)
		if err == nil && job.Status == entity.JobStatusExtracting {
			continue
		}
		if err != nil && !errors.Is(err, entity.ErrNotFound) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.tempDir, e.Name())); err != nil {
			r.logger.Warn("failed to remove orphaned upload", zap.String("dir", e.Name()), zap.Error(err))
			continue
		}
		r.logger.Info("orphaned upload removed", zap.String("dir", e.Name()))
	}
}
