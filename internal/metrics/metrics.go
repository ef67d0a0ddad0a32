// Package metrics holds the pipeline's Prometheus collectors: frame
// throughput, inference latency, telemetry write latency, and scheduler
// queue depth. All metrics are low-cardinality (camera_id only, no
// per-track or per-event labels).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesProcessedTotal counts frames that completed one scheduler
	// iteration (chain + sink fan-out), by camera.
	FramesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_frames_processed_total",
			Help: "Total frames processed by camera",
		},
		[]string{"camera_id"},
	)

	// FrameProcessingLatency tracks one scheduler iteration's wall time
	// (decode wait excluded; this is chain.Process + sink fan-out).
	FrameProcessingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_frame_processing_latency_ms",
			Help:    "Per-frame chain+sink processing latency in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"camera_id"},
	)

	// InferenceLatency tracks one inference.Client.Infer call's latency,
	// by model ID.
	InferenceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_inference_latency_ms",
			Help:    "Inference request latency in milliseconds by model",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2000},
		},
		[]string{"model_id"},
	)

	// InferenceErrorsTotal counts failed inference.Client.Infer calls.
	InferenceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_inference_errors_total",
			Help: "Total inference request failures by model",
		},
		[]string{"model_id"},
	)

	// TelemetryWriteLatency tracks telemetry.Store.ProcessTelemetry's
	// latency.
	TelemetryWriteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_telemetry_write_latency_ms",
			Help:    "Telemetry sink write latency in milliseconds by camera",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"camera_id"},
	)

	// CamerasRunning is a gauge of cameras with an active scheduler.
	CamerasRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_cameras_running",
			Help: "Number of cameras with an active scheduler",
		},
	)
)

// RecordFrameProcessed increments FramesProcessedTotal and observes
// FrameProcessingLatency for one camera's completed iteration.
func RecordFrameProcessed(cameraID string, latencyMs float64) {
	FramesProcessedTotal.WithLabelValues(cameraID).Inc()
	FrameProcessingLatency.WithLabelValues(cameraID).Observe(latencyMs)
}

// RecordInference observes one Infer call's outcome.
func RecordInference(modelID string, latencyMs float64, err error) {
	if err != nil {
		InferenceErrorsTotal.WithLabelValues(modelID).Inc()
		return
	}
	InferenceLatency.WithLabelValues(modelID).Observe(latencyMs)
}

// RecordTelemetryWrite observes one telemetry sink write's latency.
func RecordTelemetryWrite(cameraID string, latencyMs float64) {
	TelemetryWriteLatency.WithLabelValues(cameraID).Observe(latencyMs)
}
