package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/cvpipeline/internal/frame"
)

func TestLineZoneEmitsCrossingOnSignChange(t *testing.T) {
	zone := &frame.LineZone{ID: "z1", StartNorm: frame.Point{X: 0.5, Y: 0}, EndNorm: frame.Point{X: 0.5, Y: 1}, AnchorKey: "center"}
	mgr := NewLineZoneManager([]*frame.LineZone{zone})
	f := &frame.Frame{Width: 100, Height: 100}

	right := &frame.Track{TrackID: 1, ClassName: "person", BBox: frame.BBox{X: 80, Y: 40, W: 10, H: 10}}
	_, events := mgr.Evaluate([]*frame.Track{right}, f, "cam1")
	assert.Empty(t, events) // first observation establishes side, no crossing yet

	left := &frame.Track{TrackID: 1, ClassName: "person", BBox: frame.BBox{X: 10, Y: 40, W: 10, H: 10}}
	_, events = mgr.Evaluate([]*frame.Track{left}, f, "cam1")
	require.Len(t, events, 1)
	assert.Equal(t, "in", events[0].Properties["direction"])
	assert.EqualValues(t, 1, zone.CountIn)
}

func TestPolygonZoneFiresEntryAndExit(t *testing.T) {
	zone := frame.NewPolygonZone("z1", []frame.Point{
		{X: 0.2, Y: 0.2}, {X: 0.8, Y: 0.2}, {X: 0.8, Y: 0.8}, {X: 0.2, Y: 0.8},
	})
	mgr := NewPolygonZoneManager([]*frame.PolygonZone{zone})
	f := &frame.Frame{Width: 100, Height: 100}

	outside := &frame.Track{TrackID: 1, ClassName: "car", BBox: frame.BBox{X: 0, Y: 0, W: 5, H: 5}}
	_, events := mgr.Evaluate([]*frame.Track{outside}, f, "cam1")
	assert.Empty(t, events)

	inside := &frame.Track{TrackID: 1, ClassName: "car", BBox: frame.BBox{X: 45, Y: 45, W: 5, H: 5}}
	_, events = mgr.Evaluate([]*frame.Track{inside}, f, "cam1")
	require.Len(t, events, 1)
	assert.Equal(t, "entry", events[0].Properties["transition"])
	assert.True(t, zone.Inside[1])

	_, events = mgr.Evaluate([]*frame.Track{outside}, f, "cam1")
	require.Len(t, events, 1)
	assert.Equal(t, "exit", events[0].Properties["transition"])
	assert.False(t, zone.Inside[1])
}

func TestPolygonZoneForgetsRetiredTracks(t *testing.T) {
	zone := frame.NewPolygonZone("z1", []frame.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	})
	mgr := NewPolygonZoneManager([]*frame.PolygonZone{zone})
	f := &frame.Frame{Width: 100, Height: 100}

	inside := &frame.Track{TrackID: 1, ClassName: "car", BBox: frame.BBox{X: 45, Y: 45, W: 5, H: 5}}
	mgr.Evaluate([]*frame.Track{inside}, f, "cam1")
	assert.True(t, zone.Inside[1])

	mgr.Evaluate(nil, f, "cam1")
	assert.False(t, zone.Inside[1])
}
