package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/localfs"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/memory"
	"github.com/fiapx/fiapx-frame-extractor/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeExtractor writes frames named like ffmpeg would and records what it was asked for.
type fakeExtractor struct {
	frames  int
	err     error
	partial bool

	mu       sync.Mutex
	requests []port.ExtractionRequest
}

func (f *fakeExtractor) ExtractFrames(_ context.Context, req port.ExtractionRequest) (*port.FrameExtractionResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	for i := 1; i <= f.frames; i++ {
		name := filepath.Join(req.OutputDir, entity.FrameFileName(i))
		if err := os.WriteFile(name, []byte(fmt.Sprintf("frame %d", i)), 0644); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &port.FrameExtractionResult{VideoDuration: 10}, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []entity.JobStatusMessage
}

func (p *recordingPublisher) PublishStatus(_ context.Context, msg []byte) error {
	var m entity.JobStatusMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return err
	}
	p.mu.Lock()
	p.messages = append(p.messages, m)
	p.mu.Unlock()
	return nil
}

type testEnv struct {
	store     *memory.JobRepository
	layout    *localfs.Layout
	extractor *fakeExtractor
	publisher *recordingPublisher
	tempDir   string
	extract   *ExtractFramesUseCase
	query     *FrameQueryUseCase
}

func newTestEnv(t *testing.T, frames int) *testEnv {
	t.Helper()

	root := t.TempDir()
	pool := worker.NewPool(2, zap.NewNop())
	t.Cleanup(pool.Close)

	env := &testEnv{
		store:     memory.NewJobRepository(),
		layout:    localfs.NewLayout(filepath.Join(root, "output")),
		extractor: &fakeExtractor{frames: frames},
		publisher: &recordingPublisher{},
		tempDir:   filepath.Join(root, "tmp"),
	}
	env.extract = NewExtractFramesUseCase(env.store, env.layout, env.extractor, env.publisher, pool, zap.NewNop(),
		ExtractFramesConfig{TempDir: env.tempDir})
	env.query = NewFrameQueryUseCase(env.store, env.layout, FrameQueryConfig{URLPrefix: "output", MaxPageSize: 500})
	return env
}

func (env *testEnv) upload(t *testing.T, mode string, threshold *float64) (entity.JobStatus, error) {
	t.Helper()
	id, err := env.extract.Execute(context.Background(), ExtractFramesInput{
		Video:     strings.NewReader("fake video bytes"),
		Filename:  "clip.MP4",
		Mode:      mode,
		Threshold: threshold,
	})
	if id == uuid.Nil {
		return "", err
	}
	job, gerr := env.store.Get(context.Background(), id)
	require.NoError(t, gerr)
	return job.Status, err
}

func ptr(f float64) *float64 { return &f }
