package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/cvpipeline/internal/frame"
)

func TestTrackerAssignsStableIDAcrossFrames(t *testing.T) {
	tr := NewTracker(DefaultTrackerConfig())
	f := &frame.Frame{Width: 640, Height: 480}

	det := frame.Detection{ClassName: "person", Confidence: 0.9, BBox: frame.BBox{X: 10, Y: 10, W: 20, H: 40}}

	tracks1, _, events1 := tr.Track(context.Background(), []frame.Detection{det}, f, "cam1")
	require.Len(t, tracks1, 1)
	require.Len(t, events1, 1)
	id := tracks1[0].TrackID

	tracks2, _, events2 := tr.Track(context.Background(), []frame.Detection{det}, f, "cam1")
	require.Len(t, tracks2, 1)
	require.Len(t, events2, 1)
	assert.Equal(t, id, tracks2[0].TrackID)
}

func TestTrackerNeverOverwritesClassNameAfterFirstAssociation(t *testing.T) {
	tr := NewTracker(DefaultTrackerConfig())
	f := &frame.Frame{Width: 640, Height: 480}

	box := frame.BBox{X: 10, Y: 10, W: 20, H: 40}
	tracks1, _, _ := tr.Track(context.Background(), []frame.Detection{{ClassName: "car", Confidence: 0.9, BBox: box}}, f, "cam1")
	require.Len(t, tracks1, 1)

	tracks2, _, _ := tr.Track(context.Background(), []frame.Detection{{ClassName: "truck", Confidence: 0.9, BBox: box}}, f, "cam1")
	require.Len(t, tracks2, 1)
	assert.Equal(t, "car", tracks2[0].ClassName)
}

func TestTrackerRetiresTrackAfterTrackBufferMissedFrames(t *testing.T) {
	cfg := DefaultTrackerConfig()
	cfg.TrackBuffer = 2
	tr := NewTracker(cfg)
	f := &frame.Frame{Width: 640, Height: 480}

	box := frame.BBox{X: 10, Y: 10, W: 20, H: 40}
	tr.Track(context.Background(), []frame.Detection{{ClassName: "car", Confidence: 0.9, BBox: box}}, f, "cam1")

	for i := 0; i < 4; i++ {
		tr.Track(context.Background(), nil, f, "cam1")
	}

	tracks, _, _ := tr.Track(context.Background(), nil, f, "cam1")
	assert.Len(t, tracks, 0)
}

func TestTrackerResetsTrajectoryOnDistanceJumpOnly(t *testing.T) {
	cfg := DefaultTrackerConfig()
	cfg.MaxAllowedDistanceRatio = 0.1 // 10% of 640 = 64px
	tr := NewTracker(cfg)
	f := &frame.Frame{Width: 640, Height: 480}

	box1 := frame.BBox{X: 10, Y: 10, W: 20, H: 40}
	tracks1, _, _ := tr.Track(context.Background(), []frame.Detection{{ClassName: "person", Confidence: 0.9, BBox: box1}}, f, "cam1")
	require.Len(t, tracks1, 1)

	// Small move: within threshold, keeps IoU overlap, same class — history grows.
	box2 := frame.BBox{X: 12, Y: 10, W: 20, H: 40}
	tracks2, _, _ := tr.Track(context.Background(), []frame.Detection{{ClassName: "person", Confidence: 0.9, BBox: box2}}, f, "cam1")
	require.Len(t, tracks2, 1)
	assert.Equal(t, 2, len(tracks2[0].Trajectory))
}

func TestTrackerCapsTrajectoryLength(t *testing.T) {
	cfg := DefaultTrackerConfig()
	cfg.TrajectoryMaxLength = 3
	tr := NewTracker(cfg)
	f := &frame.Frame{Width: 640, Height: 480}
	box := frame.BBox{X: 10, Y: 10, W: 20, H: 40}

	var tracks []*frame.Track
	for i := 0; i < 10; i++ {
		tracks, _, _ = tr.Track(context.Background(), []frame.Detection{{ClassName: "person", Confidence: 0.9, BBox: box}}, f, "cam1")
	}
	require.Len(t, tracks, 1)
	assert.LessOrEqual(t, len(tracks[0].Trajectory), 3)
}
