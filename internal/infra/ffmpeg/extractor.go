package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"go.uber.org/zap"
)

const maxDiagnosticLen = 2000

type ExtractorConfig struct {
	FFmpegPath  string
	FFprobePath string
	// AllFPS resamples mode "all" to a fixed rate. Zero keeps every decoded frame.
	AllFPS int
	QScale int
}

type Extractor struct {
	cfg    ExtractorConfig
	logger *zap.Logger
}

func NewExtractor(cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.QScale <= 0 {
		cfg.QScale = 2
	}
	return &Extractor{cfg: cfg, logger: logger}
}

func (e *Extractor) ExtractFrames(ctx context.Context, req port.ExtractionRequest) (*port.FrameExtractionResult, error) {
	duration, err := e.getVideoDuration(ctx, req.VideoPath)
	if err != nil {
		e.logger.Warn("could not get video duration", zap.Error(err))
	}

	args, err := e.buildArgs(req)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cfg.FFmpegPath, args...)
	output, err := cmd.CombinedOutput()
	diag := truncate(string(output))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: ffmpeg did not finish: %v", entity.ErrExternalTool, ctxErr)
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("%w: ffmpeg unavailable: %v", entity.ErrExternalTool, err)
		}
		return nil, fmt.Errorf("%w: ffmpeg error: %v, output: %s", entity.ErrExternalTool, err, diag)
	}

	e.logger.Debug("ffmpeg finished",
		zap.String("mode", string(req.Mode)),
		zap.Float64("video_duration", duration),
	)

	return &port.FrameExtractionResult{
		VideoDuration: duration,
		Output:        diag,
	}, nil
}

// buildArgs pins the output naming so that ordinal order equals temporal order.
func (e *Extractor) buildArgs(req port.ExtractionRequest) ([]string, error) {
	args := []string{"-hide_banner", "-nostdin", "-i", req.VideoPath}

	switch req.Mode {
	case entity.ModeAll:
		if e.cfg.AllFPS > 0 {
			args = append(args, "-vf", fmt.Sprintf("fps=%d", e.cfg.AllFPS), "-vsync", "vfr")
		} else {
			args = append(args, "-vsync", "passthrough")
		}
	case entity.ModeScene:
		threshold := strconv.FormatFloat(req.Threshold, 'f', -1, 64)
		args = append(args,
			"-vf", fmt.Sprintf("select='gt(scene,%s)',showinfo", threshold),
			"-vsync", "vfr",
		)
	default:
		return nil, fmt.Errorf("%w: unsupported mode %q", entity.ErrInvalidInput, req.Mode)
	}

	args = append(args,
		"-qscale:v", strconv.Itoa(e.cfg.QScale),
		"-y",
		filepath.Join(req.OutputDir, entity.FramePattern()),
	)
	return args, nil
}

func (e *Extractor) getVideoDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func truncate(s string) string {
	if len(s) <= maxDiagnosticLen {
		return s
	}
	return "..." + s[len(s)-maxDiagnosticLen:]
}
