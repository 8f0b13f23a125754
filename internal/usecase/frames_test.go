package usecase

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyJob(t *testing.T, env *testEnv) uuid.UUID {
	t.Helper()
	id, err := env.extract.Execute(context.Background(), ExtractFramesInput{
		Video: strings.NewReader("fake"), Filename: "clip.mp4", Mode: "all",
	})
	require.NoError(t, err)
	return id
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 1, TotalPages(0, 50))
	assert.Equal(t, 1, TotalPages(1, 50))
	assert.Equal(t, 1, TotalPages(50, 50))
	assert.Equal(t, 2, TotalPages(51, 50))
	assert.Equal(t, 3, TotalPages(11, 5))
}

func TestPageUnionReconstructsListFrames(t *testing.T) {
	env := newTestEnv(t, 23)
	id := readyJob(t, env)

	var listed []string
	for f, err := range env.layout.ListFrames(context.Background(), id) {
		require.NoError(t, err)
		listed = append(listed, f.Name)
	}

	for _, size := range []int{1, 4, 5, 23, 50} {
		first, err := env.query.Page(context.Background(), id, 1, size)
		require.NoError(t, err)
		assert.Equal(t, TotalPages(23, size), first.TotalPages)

		var union []string
		for p := 1; p <= first.TotalPages; p++ {
			page, err := env.query.Page(context.Background(), id, p, size)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(page.Items), size)
			assert.Equal(t, p, page.Page)
			assert.Equal(t, 23, page.Total)
			for _, it := range page.Items {
				union = append(union, it.Name)
			}
		}
		assert.Equal(t, listed, union, "page size %d", size)
	}
}

func TestPageLocators(t *testing.T) {
	env := newTestEnv(t, 12)
	id := readyJob(t, env)

	page, err := env.query.Page(context.Background(), id, 1, 5)
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.Items[0].Ordinal)
	assert.Equal(t, "/output/"+id.String()+"/frame-000001.jpg", page.Items[0].URL)
	assert.Equal(t, "/output/"+id.String()+"/frame-000005.jpg", page.Items[4].URL)
}

func TestPageBeyondEndIsClamped(t *testing.T) {
	env := newTestEnv(t, 12)
	id := readyJob(t, env)

	page, err := env.query.Page(context.Background(), id, 99, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 11, page.Items[0].Ordinal)
	assert.Equal(t, 12, page.Items[1].Ordinal)
}

func TestPageZeroFrames(t *testing.T) {
	env := newTestEnv(t, 0)
	job := entity.NewJob(entity.ModeAll, 0)
	require.NoError(t, env.store.Create(context.Background(), job))
	require.NoError(t, env.store.SetReady(context.Background(), job.ID, 0))

	page, err := env.query.Page(context.Background(), job.ID, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 1, page.Page)
	assert.Empty(t, page.Items)
}

func TestPageErrors(t *testing.T) {
	env := newTestEnv(t, 3)
	id := readyJob(t, env)

	_, err := env.query.Page(context.Background(), id, 0, 10)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
	_, err = env.query.Page(context.Background(), id, 1, 0)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
	_, err = env.query.Page(context.Background(), id, 1, 501)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
	_, err = env.query.Page(context.Background(), uuid.New(), 1, 10)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	extracting := entity.NewJob(entity.ModeAll, 0)
	require.NoError(t, env.store.Create(context.Background(), extracting))
	_, err = env.query.Page(context.Background(), extracting.ID, 1, 10)
	assert.ErrorIs(t, err, entity.ErrNotReady)
}

func TestOpenFrame(t *testing.T) {
	env := newTestEnv(t, 3)
	id := readyJob(t, env)

	rc, err := env.query.OpenFrame(context.Background(), id, "frame-000002.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "frame 2", string(data))

	for _, name := range []string{"frame-000004.jpg", "frame-2.jpg", "../etc/passwd", "frame-0000002.jpg"} {
		_, err := env.query.OpenFrame(context.Background(), id, name)
		assert.ErrorIs(t, err, entity.ErrNotFound, name)
	}
}
