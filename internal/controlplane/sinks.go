// Package controlplane implements the thin HTTP control plane (spec §6):
// a CameraManager exposing the semantic operations the spec's operation
// table names, and a chi router translating HTTP requests into calls
// against it.
package controlplane

import (
	"context"
	"time"

	"github.com/technosupport/cvpipeline/internal/frame"
	"github.com/technosupport/cvpipeline/internal/metrics"
	"github.com/technosupport/cvpipeline/internal/telemetry"
	"github.com/technosupport/cvpipeline/internal/videowriter"
)

// TelemetrySink adapts a *telemetry.Store to scheduler.Sink. Factories
// construct it via NewTelemetrySink so the registry's "telemetry" sink
// type tag produces something buildSinks can recognize and unwrap.
type TelemetrySink struct {
	store *telemetry.Store
}

func NewTelemetrySink(store *telemetry.Store) *TelemetrySink {
	return &TelemetrySink{store: store}
}

func (s *TelemetrySink) Consume(ctx context.Context, cameraID string, raw, annotated *frame.Frame, events []frame.Event) error {
	start := time.Now()
	err := s.store.ProcessTelemetry(ctx, raw, events, nil)
	metrics.RecordTelemetryWrite(cameraID, float64(time.Since(start).Milliseconds()))
	return err
}

// FileSink adapts a *videowriter.Writer to scheduler.Sink. Factories
// construct it via NewFileSink for the registry's "file" sink type tag.
type FileSink struct {
	writer *videowriter.Writer
}

func NewFileSink(writer *videowriter.Writer) *FileSink {
	return &FileSink{writer: writer}
}

func (s *FileSink) Consume(_ context.Context, _ string, raw, annotated *frame.Frame, _ []frame.Event) error {
	return s.writer.WriteFrame(raw, annotated)
}
