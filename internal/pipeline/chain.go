package pipeline

import (
	"context"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// Chain is the statically typed processor pipeline: Detector → Tracker →
// LineZones → PolygonZones → Classification → AgeGender. Every stage is
// optional; the Component Registry enforces dependency ordering at
// construction time (Tracker requires Detector, zone managers require
// Tracker), so Chain itself just skips whatever is nil.
type Chain struct {
	Detector    DetectorStage
	Tracker     TrackerStage
	LineZones   ZoneStage
	PolyZones   ZoneStage
	Classifier  ClassifierStage
	AgeGender   ClassifierStage
}

// Process runs one frame through every configured stage in order. Each
// stage receives the annotated frame from the previous stage and returns
// a (possibly further annotated) frame plus its event output; a stage
// that fails for this frame contributes no events and does not abort the
// remaining stages (spec §4.3 chain invariants).
func (c *Chain) Process(ctx context.Context, raw *frame.Frame, cameraID string) (*frame.Frame, []frame.Event) {
	annotated := raw
	var events []frame.Event
	var tracks []*frame.Track

	if c.Detector != nil {
		dets, a, err := c.Detector.Detect(ctx, raw, cameraID)
		if err == nil {
			annotated = a
			if len(dets) > 0 {
				events = append(events, detectionEvents(dets, cameraID)...)
			}

			if c.Tracker != nil {
				var trackEvents []frame.Event
				tracks, annotated, trackEvents = c.Tracker.Track(ctx, dets, annotated, cameraID)
				events = append(events, trackEvents...)
			}
		}
	}

	if c.LineZones != nil && tracks != nil {
		var zoneEvents []frame.Event
		annotated, zoneEvents = c.LineZones.Evaluate(tracks, annotated, cameraID)
		events = append(events, zoneEvents...)
	}

	if c.PolyZones != nil && tracks != nil {
		var zoneEvents []frame.Event
		annotated, zoneEvents = c.PolyZones.Evaluate(tracks, annotated, cameraID)
		events = append(events, zoneEvents...)
	}

	if c.Classifier != nil && tracks != nil {
		events = append(events, c.Classifier.Classify(ctx, tracks, raw, cameraID)...)
	}

	if c.AgeGender != nil && tracks != nil {
		events = append(events, c.AgeGender.Classify(ctx, tracks, raw, cameraID)...)
	}

	return annotated, events
}

func detectionEvents(dets []frame.Detection, cameraID string) []frame.Event {
	events := make([]frame.Event, 0, len(dets))
	for _, d := range dets {
		events = append(events, frame.Event{
			Type:        frame.EventDetection,
			CameraID:    cameraID,
			TimestampMS: frame.NowMS(),
			Properties: map[string]any{
				"class_name": d.ClassName,
				"confidence": d.Confidence,
				"bbox":       d.BBox,
			},
		})
	}
	return events
}
