package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Runner executes fn on a bounded set of workers and returns once fn has finished.
type Runner interface {
	Do(fn func()) error
}

type ExtractFramesInput struct {
	Video io.Reader
	// Filename is the client's name for the upload; only its extension is kept.
	Filename string
	// Mode defaults to scene when empty.
	Mode string
	// Threshold is optional; scene mode falls back to entity.DefaultSceneThreshold.
	Threshold *float64
}

type ExtractFramesConfig struct {
	TempDir string
	Timeout time.Duration
}

type ExtractFramesUseCase struct {
	store     port.JobStore
	storage   port.FrameStorage
	extractor port.FrameExtractor
	publisher port.StatusPublisher
	runner    Runner
	logger    *zap.Logger
	tempDir   string
	timeout   time.Duration
}

func NewExtractFramesUseCase(
	store port.JobStore,
	storage port.FrameStorage,
	extractor port.FrameExtractor,
	publisher port.StatusPublisher,
	runner Runner,
	logger *zap.Logger,
	cfg ExtractFramesConfig,
) *ExtractFramesUseCase {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &ExtractFramesUseCase{
		store:     store,
		storage:   storage,
		extractor: extractor,
		publisher: publisher,
		runner:    runner,
		logger:    logger,
		tempDir:   cfg.TempDir,
		timeout:   cfg.Timeout,
	}
}

// Execute validates the request, runs the extraction to completion and returns the job id.
// Invalid input is rejected before a job exists and yields uuid.Nil. Any later failure
// still returns the id of the job, which is left in the failed state with no frames.
func (uc *ExtractFramesUseCase) Execute(ctx context.Context, in ExtractFramesInput) (uuid.UUID, error) {
	mode, threshold, err := validateInput(in)
	if err != nil {
		return uuid.Nil, err
	}

	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExtractFramesUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	job := entity.NewJob(mode, threshold)
	if err := uc.store.Create(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("%w: create job: %v", entity.ErrStorage, err)
	}

	span.SetAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.mode", string(mode)),
		attribute.Float64("job.threshold", job.Threshold),
	)
	log := uc.logger.With(zap.String("job_id", job.ID.String()), zap.String("mode", string(mode)))
	log.Info("extraction started", zap.Float64("threshold", job.Threshold))
	uc.publishStatus(ctx, job, 0, log)

	// Nothing below may be aborted by the caller going away.
	workCtx := context.WithoutCancel(ctx)

	uploadDir := filepath.Join(uc.tempDir, job.ID.String())
	defer os.RemoveAll(uploadDir)

	persistStart := time.Now()
	videoPath, err := persistUpload(uploadDir, in)
	metrics.JobProcessingDuration.WithLabelValues("persist").Observe(time.Since(persistStart).Seconds())
	if err != nil {
		return job.ID, uc.fail(workCtx, job, err, log)
	}

	var (
		frameCount int
		duration   float64
		runErr     error
	)
	if err := uc.runner.Do(func() {
		frameCount, duration, runErr = uc.extract(workCtx, job, videoPath, log)
	}); err != nil {
		return job.ID, uc.fail(workCtx, job, fmt.Errorf("%w: %v", entity.ErrExternalTool, err), log)
	}
	if runErr != nil {
		return job.ID, uc.fail(workCtx, job, runErr, log)
	}

	if err := uc.store.SetReady(workCtx, job.ID, frameCount); err != nil {
		return job.ID, uc.fail(workCtx, job, fmt.Errorf("%w: mark ready: %v", entity.ErrStorage, err), log)
	}
	_ = job.MarkReady(frameCount)

	metrics.JobsProcessedTotal.WithLabelValues(string(mode), string(entity.JobStatusReady)).Inc()
	metrics.FramesExtractedTotal.WithLabelValues(string(mode)).Add(float64(frameCount))
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	uc.publishStatus(workCtx, job, duration, log)

	log.Info("extraction completed",
		zap.Int("frame_count", frameCount),
		zap.Float64("duration_secs", duration),
	)
	return job.ID, nil
}

// extract runs the tool under the configured timeout and commits its output.
func (uc *ExtractFramesUseCase) extract(ctx context.Context, job *entity.Job, videoPath string, log *zap.Logger) (int, float64, error) {
	tracer := otel.Tracer("usecase")

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	frameDir := uc.storage.FrameDir(job.ID)
	if err := os.MkdirAll(frameDir, 0755); err != nil {
		return 0, 0, fmt.Errorf("%w: create frame dir: %v", entity.ErrStorage, err)
	}

	exStart := time.Now()
	ctxEx, spanEx := tracer.Start(ctx, "extract_frames")
	result, err := uc.extractor.ExtractFrames(ctxEx, port.ExtractionRequest{
		VideoPath: videoPath,
		OutputDir: frameDir,
		Mode:      job.Mode,
		Threshold: job.Threshold,
	})
	spanEx.End()
	metrics.JobProcessingDuration.WithLabelValues("extract").Observe(time.Since(exStart).Seconds())
	if err != nil {
		return 0, 0, err
	}

	commitStart := time.Now()
	ctxCommit, spanCommit := tracer.Start(ctx, "commit_frames")
	count, err := uc.storage.Commit(ctxCommit, job.ID)
	spanCommit.End()
	metrics.JobProcessingDuration.WithLabelValues("commit").Observe(time.Since(commitStart).Seconds())
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return 0, 0, err
	}
	if count == 0 {
		log.Error("ffmpeg produced no frames", zap.String("ffmpeg_output", result.Output))
		return 0, 0, fmt.Errorf("%w: ffmpeg produced no frames", entity.ErrExternalTool)
	}

	return count, result.VideoDuration, nil
}

// fail moves the job to failed and drops whatever the tool wrote, so no partial output
// stays addressable. It returns cause.
func (uc *ExtractFramesUseCase) fail(ctx context.Context, job *entity.Job, cause error, log *zap.Logger) error {
	log.Error("extraction failed", zap.Error(cause))

	if err := uc.storage.Remove(ctx, job.ID); err != nil {
		log.Warn("failed to remove partial frames", zap.Error(err))
	}
	if err := uc.store.SetFailed(ctx, job.ID, cause.Error()); err != nil {
		log.Error("failed to mark job failed", zap.Error(err))
	}
	_ = job.MarkFailed(cause.Error())

	metrics.JobsProcessedTotal.WithLabelValues(string(job.Mode), string(entity.JobStatusFailed)).Inc()
	uc.publishStatus(ctx, job, 0, log)
	return cause
}

func (uc *ExtractFramesUseCase) publishStatus(ctx context.Context, job *entity.Job, duration float64, log *zap.Logger) {
	if uc.publisher == nil {
		return
	}
	data, _ := json.Marshal(entity.NewJobStatusMessage(job, duration))
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

func validateInput(in ExtractFramesInput) (entity.Mode, float64, error) {
	if in.Video == nil {
		return "", 0, fmt.Errorf("%w: no video uploaded", entity.ErrInvalidInput)
	}
	if in.Mode == "" {
		in.Mode = string(entity.ModeScene)
	}
	mode, err := entity.ParseMode(in.Mode)
	if err != nil {
		return "", 0, err
	}

	threshold := entity.DefaultSceneThreshold
	if in.Threshold != nil {
		threshold = *in.Threshold
	}
	if err := entity.ValidateThreshold(mode, threshold); err != nil {
		return "", 0, err
	}
	return mode, threshold, nil
}

func persistUpload(dir string, in ExtractFramesInput) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create upload dir: %v", entity.ErrStorage, err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(in.Filename)))
	if ext == "" || len(ext) > 8 {
		ext = ".bin"
	}
	videoPath := filepath.Join(dir, "input"+ext)

	f, err := os.Create(videoPath)
	if err != nil {
		return "", fmt.Errorf("%w: create upload file: %v", entity.ErrStorage, err)
	}
	if _, err := io.Copy(f, in.Video); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: write upload: %v", entity.ErrStorage, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close upload: %v", entity.ErrStorage, err)
	}
	return videoPath, nil
}
