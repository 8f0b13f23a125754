package minio

import (
	"context"
	"fmt"
	"io"
	"iter"
	"path"
	"path/filepath"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/localfs"
	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage keeps committed frames in an object bucket under "<job-id>/frame-NNNNNN.jpg".
// The external tool still needs a directory, so frames are staged locally until Commit.
type Storage struct {
	client  *miniogo.Client
	bucket  string
	staging *localfs.Layout
}

type StorageConfig struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	UseSSL      bool
	FrameBucket string
	StagingDir  string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:  client,
		bucket:  cfg.FrameBucket,
		staging: localfs.NewLayout(filepath.Join(cfg.StagingDir, "staging")),
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *Storage) FrameDir(jobID uuid.UUID) string {
	return s.staging.FrameDir(jobID)
}

// Commit uploads the staged frames in ordinal order and drops the staging directory.
func (s *Storage) Commit(ctx context.Context, jobID uuid.UUID) (int, error) {
	defer s.staging.Remove(ctx, jobID)

	count := 0
	for frame, err := range s.staging.ListFrames(ctx, jobID) {
		if err != nil {
			return 0, err
		}
		src := filepath.Join(s.staging.FrameDir(jobID), frame.Name)
		opts := miniogo.PutObjectOptions{ContentType: "image/jpeg"}
		if _, err := s.client.FPutObject(ctx, s.bucket, objectKey(jobID, frame.Name), src, opts); err != nil {
			return 0, fmt.Errorf("%w: upload %s: %v", entity.ErrStorage, frame.Name, err)
		}
		count++
	}
	return count, nil
}

func (s *Storage) ListFrames(ctx context.Context, jobID uuid.UUID) iter.Seq2[entity.Frame, error] {
	return func(yield func(entity.Frame, error) bool) {
		var names []string
		for obj := range s.client.ListObjects(ctx, s.bucket, miniogo.ListObjectsOptions{
			Prefix:    jobID.String() + "/",
			Recursive: true,
		}) {
			if obj.Err != nil {
				yield(entity.Frame{}, fmt.Errorf("%w: list frames: %v", entity.ErrStorage, obj.Err))
				return
			}
			names = append(names, path.Base(obj.Key))
		}
		if len(names) == 0 {
			yield(entity.Frame{}, fmt.Errorf("%w: frames of job %s", entity.ErrNotFound, jobID))
			return
		}

		frames, err := entity.SortFrames(names)
		if err != nil {
			yield(entity.Frame{}, fmt.Errorf("%w: %v", entity.ErrStorage, err))
			return
		}
		for _, f := range frames {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func (s *Storage) FramePath(ctx context.Context, jobID uuid.UUID, ordinal int) (string, error) {
	if ordinal < 1 {
		return "", fmt.Errorf("%w: frame %d of job %s", entity.ErrNotFound, ordinal, jobID)
	}
	key := objectKey(jobID, entity.FrameFileName(ordinal))
	if _, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{}); err != nil {
		return "", s.mapErr(err, key)
	}
	return key, nil
}

func (s *Storage) OpenFrame(ctx context.Context, jobID uuid.UUID, ordinal int) (io.ReadCloser, error) {
	key, err := s.FramePath(ctx, jobID, ordinal)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(err, key)
	}
	return obj, nil
}

func (s *Storage) Remove(ctx context.Context, jobID uuid.UUID) error {
	if err := s.staging.Remove(ctx, jobID); err != nil {
		return err
	}

	objects := s.client.ListObjects(ctx, s.bucket, miniogo.ListObjectsOptions{
		Prefix:    jobID.String() + "/",
		Recursive: true,
	})
	var firstErr error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, miniogo.RemoveObjectsOptions{}) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: remove %s: %v", entity.ErrStorage, rerr.ObjectName, rerr.Err)
		}
	}
	return firstErr
}

func (s *Storage) mapErr(err error, key string) error {
	if miniogo.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: object %s", entity.ErrNotFound, key)
	}
	return fmt.Errorf("%w: object %s: %v", entity.ErrStorage, key, err)
}

func objectKey(jobID uuid.UUID, name string) string {
	return jobID.String() + "/" + name
}
