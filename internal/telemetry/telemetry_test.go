package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/technosupport/cvpipeline/internal/frame"
)

func openTestStore(t *testing.T, flags SinkFlags) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cam1.db")
	s, err := Open("cam1", path, flags)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func trackID(id uint32) *uint32 { return &id }

func TestProcessTelemetryFiltersByFlags(t *testing.T) {
	s := openTestStore(t, SinkFlags{StoreDetectionEvents: true, StoreTrackingEvents: false, StoreCountingEvents: true})
	ctx := context.Background()

	events := []frame.Event{
		{Type: frame.EventDetection, TimestampMS: 1000, Properties: map[string]any{"class_name": "person", "confidence": 0.9}},
		{Type: frame.EventTracking, TimestampMS: 1000, TrackID: trackID(1), Properties: map[string]any{"class_name": "person"}},
		{Type: frame.EventCrossing, TimestampMS: 1000, Properties: map[string]any{"zone_id": "z1", "direction": "in"}},
	}

	require.NoError(t, s.ProcessTelemetry(ctx, nil, events, nil))

	summary, err := s.GetAnalytics(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.EventTypeCounts["detection"])
	require.EqualValues(t, 1, summary.EventTypeCounts["crossing"])
	require.Zero(t, summary.EventTypeCounts["tracking"])
}

func TestProcessTelemetryBuildsClassDistributionAndDwellTimes(t *testing.T) {
	s := openTestStore(t, SinkFlags{StoreDetectionEvents: true, StoreTrackingEvents: true, StoreCountingEvents: true})
	ctx := context.Background()

	base := time.Now().UnixMilli()
	for i := int64(0); i < 3; i++ {
		ev := []frame.Event{{
			Type:        frame.EventTracking,
			TimestampMS: base + i*1000,
			TrackID:     trackID(42),
			Properties:  map[string]any{"class_name": "car", "confidence": 0.8},
		}}
		require.NoError(t, s.ProcessTelemetry(ctx, nil, ev, nil))
	}

	summary, err := s.GetAnalytics(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, summary.ClassCounts["car"])

	dwell, err := s.GetDwellTimes(ctx, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, dwell, 1)
	require.EqualValues(t, 42, dwell[0].TrackID)
	require.EqualValues(t, 3, dwell[0].DetectionCount)
	require.Equal(t, base+2000-base, dwell[0].DurationMS)

	dwell, err = s.GetDwellTimes(ctx, time.UnixMilli(base+500), time.UnixMilli(base+1500), 10)
	require.NoError(t, err)
	require.Len(t, dwell, 1, "track's window overlaps the requested range")

	dwell, err = s.GetDwellTimes(ctx, time.UnixMilli(base+5000), time.Time{}, 10)
	require.NoError(t, err)
	require.Empty(t, dwell, "track's window ends before start")
}

func TestProcessTelemetryPopulatesTimeSeriesBuckets(t *testing.T) {
	s := openTestStore(t, SinkFlags{StoreDetectionEvents: true, StoreTrackingEvents: true, StoreCountingEvents: true})
	ctx := context.Background()

	now := time.Now()
	ev := []frame.Event{{Type: frame.EventDetection, TimestampMS: now.UnixMilli(), Properties: map[string]any{"class_name": "person"}}}
	require.NoError(t, s.ProcessTelemetry(ctx, nil, ev, nil))

	points, err := s.GetTimeSeries(ctx, now.Add(-time.Hour), now.Add(time.Hour), "detection", "1m")
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.EqualValues(t, 1, points[0].Count)
}

func TestSanitizeUTF8ReplacesInvalidBytes(t *testing.T) {
	bad := "hello\xffworld"
	got := sanitizeUTF8(bad)
	require.True(t, len([]rune(got)) > 0)
	require.NotEqual(t, bad, got)
}

func TestMarshalPropertiesHandlesUnserializableValue(t *testing.T) {
	props := map[string]any{"fn": make(chan int)}
	out, err := marshalProperties(props)
	require.NoError(t, err)
	require.Contains(t, out, "_parse_error")
}

func TestDeleteDataForCameraIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cam2.db")
	s, err := Open("cam2", path, SinkFlags{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, DeleteDataForCamera(path))
	require.NoError(t, DeleteDataForCamera(path))
}

func TestApplyRetentionRemovesAgedRawEvents(t *testing.T) {
	s := openTestStore(t, SinkFlags{StoreDetectionEvents: true, StoreTrackingEvents: true, StoreCountingEvents: true})
	ctx := context.Background()

	old := time.Now().Add(-40 * 24 * time.Hour).UnixMilli()
	require.NoError(t, s.ProcessTelemetry(ctx, nil, []frame.Event{
		{Type: frame.EventDetection, TimestampMS: old, Properties: map[string]any{"class_name": "person"}},
	}, nil))

	require.NoError(t, s.ApplyRetention(ctx, DefaultRetentionPolicy()))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM telemetry_events WHERE camera_id = ?`, "cam1").Scan(&count))
	require.Zero(t, count)
}
