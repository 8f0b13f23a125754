package entity

import "github.com/google/uuid"

// JobStatusMessage is published on every lifecycle transition of a job.
type JobStatusMessage struct {
	JobID         uuid.UUID `json:"job_id"`
	Status        JobStatus `json:"status"`
	Mode          Mode      `json:"mode"`
	Threshold     float64   `json:"threshold,omitempty"`
	FrameCount    int       `json:"frame_count,omitempty"`
	VideoDuration float64   `json:"duration_seconds,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

func NewJobStatusMessage(job *Job, duration float64) JobStatusMessage {
	return JobStatusMessage{
		JobID:         job.ID,
		Status:        job.Status,
		Mode:          job.Mode,
		Threshold:     job.Threshold,
		FrameCount:    job.FrameCount,
		VideoDuration: duration,
		ErrorMessage:  job.ErrorMessage,
	}
}
