package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/google/uuid"
)

// Layout keeps one directory per job under Root, holding frame-NNNNNN.jpg files.
type Layout struct {
	Root string
}

func NewLayout(root string) *Layout {
	return &Layout{Root: root}
}

func (l *Layout) FrameDir(jobID uuid.UUID) string {
	return filepath.Join(l.Root, jobID.String())
}

// Commit verifies the frames written by the tool and returns their count.
func (l *Layout) Commit(_ context.Context, jobID uuid.UUID) (int, error) {
	frames, err := l.scan(jobID)
	if err != nil {
		return 0, err
	}
	return len(frames), nil
}

func (l *Layout) ListFrames(_ context.Context, jobID uuid.UUID) iter.Seq2[entity.Frame, error] {
	return func(yield func(entity.Frame, error) bool) {
		frames, err := l.scan(jobID)
		if err != nil {
			yield(entity.Frame{}, err)
			return
		}
		for _, f := range frames {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func (l *Layout) FramePath(_ context.Context, jobID uuid.UUID, ordinal int) (string, error) {
	if ordinal < 1 {
		return "", fmt.Errorf("%w: frame %d of job %s", entity.ErrNotFound, ordinal, jobID)
	}
	p := filepath.Join(l.FrameDir(jobID), entity.FrameFileName(ordinal))
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: frame %d of job %s", entity.ErrNotFound, ordinal, jobID)
		}
		return "", fmt.Errorf("%w: stat frame: %v", entity.ErrStorage, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: frame %d of job %s", entity.ErrNotFound, ordinal, jobID)
	}
	return p, nil
}

func (l *Layout) OpenFrame(ctx context.Context, jobID uuid.UUID, ordinal int) (io.ReadCloser, error) {
	p, err := l.FramePath(ctx, jobID, ordinal)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: open frame: %v", entity.ErrStorage, err)
	}
	return f, nil
}

func (l *Layout) Remove(_ context.Context, jobID uuid.UUID) error {
	if err := os.RemoveAll(l.FrameDir(jobID)); err != nil {
		return fmt.Errorf("%w: remove job dir: %v", entity.ErrStorage, err)
	}
	return nil
}

// scan orders the directory by parsed ordinal; readdir order is never trusted.
func (l *Layout) scan(jobID uuid.UUID) ([]entity.Frame, error) {
	entries, err := os.ReadDir(l.FrameDir(jobID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: frames of job %s", entity.ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("%w: read job dir: %v", entity.ErrStorage, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	frames, err := entity.SortFrames(names)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrExternalTool, err)
	}
	return frames, nil
}
