package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frame_extractor_jobs_processed_total",
		Help: "Total number of extraction jobs finished, by mode and status",
	}, []string{"mode", "status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "frame_extractor_job_processing_duration_seconds",
		Help:    "Duration of extraction pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frame_extractor_frames_extracted_total",
		Help: "Total number of frames extracted across all jobs",
	}, []string{"mode"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "frame_extractor_active_workers",
		Help: "Number of workers currently running an extraction",
	})

	QueuedExtractions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "frame_extractor_queued_extractions",
		Help: "Number of extractions waiting for a free worker",
	})

	ArchivesServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frame_extractor_archives_served_total",
		Help: "Total number of archive downloads, by result",
	}, []string{"result"})

	JobsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frame_extractor_jobs_reaped_total",
		Help: "Total number of expired jobs removed by the reaper",
	})
)
