// Package metrics provides Prometheus metrics for backup runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes recorded by RecordRun.
const (
	OutcomeUploaded       = "uploaded"
	OutcomeAlreadyPresent = "already_present"
	OutcomeFailed         = "failed"
)

// Recorder holds the metrics of a single process on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	deletions      prometheus.Counter
	freedBytes     prometheus.Counter
	chunks         prometheus.Counter
	uploadedBytes  prometheus.Counter
	uploadDuration prometheus.Histogram
	freeBytes      prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gdrive_backup_runs_total",
			Help: "Total number of backup runs by outcome",
		}, []string{"outcome"}),
		deletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "gdrive_backup_reclaim_deletions_total",
			Help: "Remote objects deleted to reclaim space",
		}),
		freedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "gdrive_backup_reclaim_freed_bytes_total",
			Help: "Listed size of remote objects deleted to reclaim space",
		}),
		chunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "gdrive_backup_upload_chunks_total",
			Help: "Upload chunks submitted",
		}),
		uploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "gdrive_backup_upload_bytes_total",
			Help: "Bytes submitted in upload chunks",
		}),
		uploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gdrive_backup_upload_duration_seconds",
			Help:    "Duration of chunked uploads in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		}),
		freeBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gdrive_backup_remote_free_bytes",
			Help: "Remote free space as last reported by the service",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gdrive_backup_last_success_timestamp",
			Help: "Unix timestamp of the last successful run",
		}),
	}
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordRun records a finished run with its outcome.
func (r *Recorder) RecordRun(outcome string) {
	r.runs.WithLabelValues(outcome).Inc()
}

// RecordDeletion records one reclaimed object.
func (r *Recorder) RecordDeletion(size int64) {
	r.deletions.Inc()
	if size > 0 {
		r.freedBytes.Add(float64(size))
	}
}

// RecordChunk records one submitted chunk of n bytes.
func (r *Recorder) RecordChunk(n int) {
	r.chunks.Inc()
	r.uploadedBytes.Add(float64(n))
}

// ObserveUpload records the duration of a finished upload.
func (r *Recorder) ObserveUpload(d time.Duration) {
	r.uploadDuration.Observe(d.Seconds())
}

// SetFreeBytes records the latest reported remote free space.
func (r *Recorder) SetFreeBytes(b int64) {
	r.freeBytes.Set(float64(b))
}

// MarkSuccess records the time of a successful run.
func (r *Recorder) MarkSuccess(t time.Time) {
	r.lastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile writes all metrics in the text exposition format for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
