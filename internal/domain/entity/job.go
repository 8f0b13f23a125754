package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusExtracting JobStatus = "extracting"
	JobStatusReady      JobStatus = "ready"
	JobStatusFailed     JobStatus = "failed"
)

type Mode string

const (
	ModeScene Mode = "scene"
	ModeAll   Mode = "all"
)

// DefaultSceneThreshold is applied when a scene upload carries no threshold.
const DefaultSceneThreshold = 0.3

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeScene, ModeAll:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: mode must be 'scene' or 'all', got %q", ErrInvalidInput, s)
}

// ValidateThreshold checks the scene threshold range. It is not consulted for ModeAll.
func ValidateThreshold(mode Mode, threshold float64) error {
	if mode != ModeScene {
		return nil
	}
	if threshold < 0 || threshold > 1 || threshold != threshold {
		return fmt.Errorf("%w: threshold must be within [0,1], got %v", ErrInvalidInput, threshold)
	}
	return nil
}

type Job struct {
	ID           uuid.UUID
	Mode         Mode
	Threshold    float64
	Status       JobStatus
	FrameCount   int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func NewJob(mode Mode, threshold float64) *Job {
	now := time.Now().UTC()
	if mode != ModeScene {
		threshold = 0
	}
	return &Job{
		ID:        uuid.New(),
		Mode:      mode,
		Threshold: threshold,
		Status:    JobStatusExtracting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *Job) MarkReady(frameCount int) error {
	if j.Status != JobStatusExtracting {
		return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, j.ID, j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobStatusReady
	j.FrameCount = frameCount
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

func (j *Job) MarkFailed(errMsg string) error {
	if j.Status != JobStatusExtracting {
		return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, j.ID, j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusReady || j.Status == JobStatusFailed
}

// Clone returns a copy that shares no memory with j.
func (j *Job) Clone() *Job {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
