package usecase

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/ffmpeg"
	miniostorage "github.com/fiapx/fiapx-frame-extractor/internal/infra/minio"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/postgres"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-frame-extractor/internal/worker"
	"github.com/fiapx/fiapx-frame-extractor/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func TestExtractFramesWithBackingServices(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, postgres.RunMigrations(ctx, pool))

	tempDir := t.TempDir()
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    minioEndpoint,
		AccessKey:   "minioadmin",
		SecretKey:   "minioadmin",
		UseSSL:      false,
		FrameBucket: "frames",
		StagingDir:  tempDir,
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	pub, err := rabbitmq.NewPublisher(rmqURL, "frames.jobs")
	require.NoError(t, err)
	defer pub.Close()

	// Bind a status queue before publishing anything
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()
	statusCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()
	q, err := statusCh.QueueDeclare("frames.status.test", false, true, false, false, nil)
	require.NoError(t, err)
	require.NoError(t, statusCh.QueueBind(q.Name, rabbitmq.StatusRoutingKey, "frames.jobs", false, nil))
	statusMsgs, err := statusCh.Consume(q.Name, "", true, false, false, false, nil)
	require.NoError(t, err)

	log, _ := logger.New("debug")
	repo := postgres.NewJobRepository(pool)
	workers := worker.NewPool(1, log)
	defer workers.Close()
	extractor := &fakeExtractor{frames: 8}

	uc := NewExtractFramesUseCase(repo, storage, extractor, rabbitmq.NewStatusPublisher(pub), workers, log,
		ExtractFramesConfig{TempDir: tempDir, Timeout: time.Minute})

	jobID, err := uc.Execute(ctx, ExtractFramesInput{
		Video:    strings.NewReader("fake video"),
		Filename: "clip.mp4",
		Mode:     "all",
	})
	require.NoError(t, err)

	// Wait for the extracting and ready events
	var statuses []entity.JobStatusMessage
	for len(statuses) < 2 {
		select {
		case delivery := <-statusMsgs:
			var msg entity.JobStatusMessage
			require.NoError(t, json.Unmarshal(delivery.Body, &msg))
			statuses = append(statuses, msg)
		case <-time.After(time.Minute):
			t.Fatal("timeout waiting for status message")
		}
	}
	assert.Equal(t, jobID, statuses[1].JobID)
	assert.Equal(t, entity.JobStatusExtracting, statuses[0].Status)
	assert.Equal(t, entity.JobStatusReady, statuses[1].Status)
	assert.Equal(t, 8, statuses[1].FrameCount)

	// Verify job record in database
	var dbStatus string
	var dbFrameCount int
	err = pool.QueryRow(ctx,
		"SELECT status, frame_count FROM extraction_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbFrameCount)
	require.NoError(t, err)
	assert.Equal(t, "ready", dbStatus)
	assert.Equal(t, 8, dbFrameCount)

	// Pages and archive are served from the object store
	query := NewFrameQueryUseCase(repo, storage, FrameQueryConfig{URLPrefix: "output"})
	page, err := query.Page(ctx, jobID, 2, 5)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, 6, page.Items[0].Ordinal)

	archive := NewArchiveUseCase(repo, storage, ffmpeg.NewZipCreator(), log)
	job, err := archive.Prepare(ctx, jobID)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, archive.Write(ctx, job, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 8)
	for i, f := range zr.File {
		assert.Equal(t, entity.FrameFileName(i+1), f.Name)
	}

	// A failing run leaves nothing behind in the bucket
	extractor.err = fmt.Errorf("%w: exit status 1", entity.ErrExternalTool)
	failedID, err := uc.Execute(ctx, ExtractFramesInput{
		Video:    strings.NewReader("fake video"),
		Filename: "clip.mp4",
		Mode:     "all",
	})
	require.ErrorIs(t, err, entity.ErrExternalTool)

	failed, err := repo.Get(ctx, failedID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, failed.Status)
	for _, ferr := range storage.ListFrames(ctx, failedID) {
		assert.ErrorIs(t, ferr, entity.ErrNotFound)
	}
}
