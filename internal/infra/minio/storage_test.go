package minio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

func TestStorageRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	endpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := NewStorage(StorageConfig{
		Endpoint:    endpoint,
		AccessKey:   "minioadmin",
		SecretKey:   "minioadmin",
		FrameBucket: "frames",
		StagingDir:  t.TempDir(),
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	id := uuid.New()
	dir := storage.FrameDir(id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range []int{2, 1, 3} {
		name := entity.FrameFileName(n)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	count, err := storage.Commit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "staging dir should be gone")

	var ordinals []int
	for f, err := range storage.ListFrames(ctx, id) {
		require.NoError(t, err)
		ordinals = append(ordinals, f.Ordinal)
	}
	assert.Equal(t, []int{1, 2, 3}, ordinals)

	key, err := storage.FramePath(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, id.String()+"/frame-000002.jpg", key)

	_, err = storage.FramePath(ctx, id, 4)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	rc, err := storage.OpenFrame(ctx, id, 3)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "frame-000003.jpg", string(body))

	require.NoError(t, storage.Remove(ctx, id))
	for _, err := range storage.ListFrames(ctx, id) {
		assert.ErrorIs(t, err, entity.ErrNotFound)
	}
}
