package port

import (
	"context"
	"io"
	"iter"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/google/uuid"
)

// FrameStorage owns where a job's frames live.
//
// Extraction writes into FrameDir, then Commit verifies the naming sequence and makes the
// frames readable. Reads go through ListFrames, FramePath and OpenFrame; all of them return
// entity.ErrNotFound for frames that do not exist.
type FrameStorage interface {
	FrameDir(jobID uuid.UUID) string
	Commit(ctx context.Context, jobID uuid.UUID) (int, error)
	ListFrames(ctx context.Context, jobID uuid.UUID) iter.Seq2[entity.Frame, error]
	FramePath(ctx context.Context, jobID uuid.UUID, ordinal int) (string, error)
	OpenFrame(ctx context.Context, jobID uuid.UUID, ordinal int) (io.ReadCloser, error)
	Remove(ctx context.Context, jobID uuid.UUID) error
}
