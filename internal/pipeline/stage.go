// Package pipeline implements the Processor Chain component (C3): a
// statically ordered sequence of optional stages — Detector → Tracker →
// LineZones → PolygonZones → Classification → AgeGender. Per REDESIGN
// FLAGS, each category gets its own narrow interface rather than a single
// virtual-dispatch base class; the chain wires them by category, not by a
// shared Process(Frame) signature.
package pipeline

import (
	"context"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// Result carries the (possibly further annotated) frame forward plus the
// events a stage produced this iteration.
type Result struct {
	Annotated *frame.Frame
	Events    []frame.Event
}

// DetectorStage turns a raw frame into detections, optionally drawing
// boxes/labels on an annotated copy.
type DetectorStage interface {
	Detect(ctx context.Context, raw *frame.Frame, cameraID string) ([]frame.Detection, *frame.Frame, error)
}

// TrackerStage assigns persistent identity to per-frame detections.
type TrackerStage interface {
	Track(ctx context.Context, dets []frame.Detection, annotated *frame.Frame, cameraID string) ([]*frame.Track, *frame.Frame, []frame.Event)
}

// ZoneStage evaluates line or polygon zones against the current track
// set, emitting crossing/entry/exit events.
type ZoneStage interface {
	Evaluate(tracks []*frame.Track, annotated *frame.Frame, cameraID string) (*frame.Frame, []frame.Event)
}

// ClassifierStage runs a secondary model (classification, age/gender)
// per track and emits one event per result above threshold.
type ClassifierStage interface {
	Classify(ctx context.Context, tracks []*frame.Track, raw *frame.Frame, cameraID string) []frame.Event
}

// A stage that fails for one frame emits an empty result and a nil/false
// error is swallowed by the chain; no single-frame failure aborts
// processing (spec §4.3 chain invariants). Stages log their own failures;
// the chain only needs to know whether to keep going, which it always
// does.
