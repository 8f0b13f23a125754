package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	redisv8 "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type Options struct {
	Addr     string
	Password string
}

const maxTxRetries = 8

// JobRepository stores each job as a JSON value under "job:<id>". Transitions use
// WATCH/MULTI so two writers can never both leave the extracting state.
type JobRepository struct {
	client *redisv8.Client
}

func New(ctx context.Context, opts Options) (*JobRepository, error) {
	c := redisv8.NewClient(&redisv8.Options{Addr: opts.Addr, Password: opts.Password})
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &JobRepository{client: c}, nil
}

func NewJobRepository(client *redisv8.Client) *JobRepository {
	return &JobRepository{client: client}
}

func (r *JobRepository) Close() error { return r.client.Close() }

func (r *JobRepository) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	b, err := json.Marshal(toRecord(job))
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	ok, err := r.client.SetNX(ctx, key(job.ID), b, 0).Result()
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	if !ok {
		return fmt.Errorf("insert job: duplicate id %s", job.ID)
	}
	return nil
}

func (r *JobRepository) SetReady(ctx context.Context, id uuid.UUID, frameCount int) error {
	return r.update(ctx, id, func(j *entity.Job) error { return j.MarkReady(frameCount) })
}

func (r *JobRepository) SetFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.update(ctx, id, func(j *entity.Job) error { return j.MarkFailed(reason) })
}

func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.get(ctx, r.client, id)
}

func (r *JobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]*entity.Job, error) {
	var out []*entity.Job
	iter := r.client.Scan(ctx, 0, "job:*", 200).Iterator()
	for iter.Next(ctx) {
		b, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redisv8.Nil) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", iter.Val(), err)
		}
		job, err := decode(b)
		if err != nil {
			return nil, err
		}
		if job.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			out = append(out, job)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	return out, nil
}

func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (r *JobRepository) update(ctx context.Context, id uuid.UUID, fn func(*entity.Job) error) error {
	k := key(id)
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, func(tx *redisv8.Tx) error {
			job, err := r.get(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := fn(job); err != nil {
				return err
			}
			b, err := json.Marshal(toRecord(job))
			if err != nil {
				return fmt.Errorf("encode job: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redisv8.Pipeliner) error {
				pipe.Set(ctx, k, b, 0)
				return nil
			})
			return err
		}, k)
		if errors.Is(err, redisv8.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update job %s: too much contention", id)
}

type getter interface {
	Get(ctx context.Context, key string) *redisv8.StringCmd
}

func (r *JobRepository) get(ctx context.Context, c getter, id uuid.UUID) (*entity.Job, error) {
	b, err := c.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redisv8.Nil) {
			return nil, fmt.Errorf("%w: job %s", entity.ErrNotFound, id)
		}
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	return decode(b)
}

type record struct {
	ID           uuid.UUID        `json:"id"`
	Mode         entity.Mode      `json:"mode"`
	Threshold    float64          `json:"threshold"`
	Status       entity.JobStatus `json:"status"`
	FrameCount   int              `json:"frame_count"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

func toRecord(j *entity.Job) record {
	return record{
		ID: j.ID, Mode: j.Mode, Threshold: j.Threshold, Status: j.Status,
		FrameCount: j.FrameCount, ErrorMessage: j.ErrorMessage,
		CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt, CompletedAt: j.CompletedAt,
	}
}

func decode(b []byte) (*entity.Job, error) {
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &entity.Job{
		ID: rec.ID, Mode: rec.Mode, Threshold: rec.Threshold, Status: rec.Status,
		FrameCount: rec.FrameCount, ErrorMessage: rec.ErrorMessage,
		CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt, CompletedAt: rec.CompletedAt,
	}, nil
}

func key(id uuid.UUID) string { return "job:" + id.String() }
