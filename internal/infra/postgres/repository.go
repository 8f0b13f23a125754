package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, mode, threshold, status, frame_count, error_message, created_at, updated_at, completed_at`

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `
		INSERT INTO extraction_jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Mode), job.Threshold, string(job.Status),
		job.FrameCount, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) SetReady(ctx context.Context, id uuid.UUID, frameCount int) error {
	query := `
		UPDATE extraction_jobs SET
			status=$2, frame_count=$3, updated_at=$4, completed_at=$4
		WHERE id=$1 AND status=$5`

	return r.transition(ctx, id, query, string(entity.JobStatusReady), frameCount, time.Now().UTC(), string(entity.JobStatusExtracting))
}

func (r *JobRepository) SetFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE extraction_jobs SET
			status=$2, error_message=$3, updated_at=$4, completed_at=$4
		WHERE id=$1 AND status=$5`

	return r.transition(ctx, id, query, string(entity.JobStatusFailed), reason, time.Now().UTC(), string(entity.JobStatusExtracting))
}

// transition runs a guarded UPDATE; zero affected rows means the job is missing or already terminal.
func (r *JobRepository) transition(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s", entity.ErrInvalidTransition, id, job.Status)
}

func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE id=$1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s", entity.ErrNotFound, id)
		}
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	return job, nil
}

func (r *JobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs
		WHERE status IN ($1, $2) AND completed_at < $3
		ORDER BY completed_at`

	rows, err := r.pool.Query(ctx, query, string(entity.JobStatusReady), string(entity.JobStatusFailed), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list finished jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM extraction_jobs WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	job := &entity.Job{}
	var mode, status string
	err := row.Scan(
		&job.ID, &mode, &job.Threshold, &status,
		&job.FrameCount, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Mode = entity.Mode(mode)
	job.Status = entity.JobStatus(status)
	return job, nil
}
