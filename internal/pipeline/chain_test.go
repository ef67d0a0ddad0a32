package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/cvpipeline/internal/frame"
)

type fakeDetector struct {
	dets []frame.Detection
	err  error
}

func (f *fakeDetector) Detect(context.Context, *frame.Frame, string) ([]frame.Detection, *frame.Frame, error) {
	return f.dets, nil, f.err
}

type fakeTracker struct {
	tracks []*frame.Track
}

func (f *fakeTracker) Track(context.Context, []frame.Detection, *frame.Frame, string) ([]*frame.Track, *frame.Frame, []frame.Event) {
	return f.tracks, nil, []frame.Event{{Type: frame.EventTracking}}
}

type fakeZone struct {
	calls *int
}

func (f *fakeZone) Evaluate([]*frame.Track, *frame.Frame, string) (*frame.Frame, []frame.Event) {
	*f.calls++
	return nil, []frame.Event{{Type: frame.EventCrossing}}
}

func TestChainRunsStagesInOrderAndCollectsEvents(t *testing.T) {
	lineCalls, polyCalls := 0, 0
	c := &Chain{
		Detector:  &fakeDetector{dets: []frame.Detection{{ClassName: "car", Confidence: 0.9}}},
		Tracker:   &fakeTracker{tracks: []*frame.Track{{TrackID: 1}}},
		LineZones: &fakeZone{calls: &lineCalls},
		PolyZones: &fakeZone{calls: &polyCalls},
	}

	_, events := c.Process(context.Background(), &frame.Frame{Width: 10, Height: 10}, "cam1")

	assert.Equal(t, 1, lineCalls)
	assert.Equal(t, 1, polyCalls)

	var types []frame.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, frame.EventDetection)
	assert.Contains(t, types, frame.EventTracking)
	assert.Contains(t, types, frame.EventCrossing)
}

func TestChainContinuesWhenDetectorFails(t *testing.T) {
	lineCalls := 0
	c := &Chain{
		Detector:  &fakeDetector{err: errors.New("unavailable")},
		Tracker:   &fakeTracker{tracks: []*frame.Track{{TrackID: 1}}},
		LineZones: &fakeZone{calls: &lineCalls},
	}

	_, events := c.Process(context.Background(), &frame.Frame{Width: 10, Height: 10}, "cam1")
	require.Empty(t, events)
	assert.Equal(t, 0, lineCalls) // tracker never ran because detector didn't produce dets
}

func TestChainSkipsZonesWithoutTracker(t *testing.T) {
	lineCalls := 0
	c := &Chain{
		Detector:  &fakeDetector{dets: []frame.Detection{{ClassName: "car"}}},
		LineZones: &fakeZone{calls: &lineCalls},
	}

	_, events := c.Process(context.Background(), &frame.Frame{Width: 10, Height: 10}, "cam1")
	assert.Equal(t, 0, lineCalls)
	assert.Len(t, events, 1) // only the detection event
}
