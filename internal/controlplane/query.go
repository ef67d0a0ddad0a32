package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/technosupport/cvpipeline/internal/jpegcodec"
	"github.com/technosupport/cvpipeline/internal/telemetry"
)

// ErrCameraNotRunning is returned by frame reads against a stopped camera.
var ErrCameraNotRunning = fmt.Errorf("controlplane: camera not running")

// ErrNoTelemetry is returned by analytics reads against a camera with no
// telemetry sink attached.
var ErrNoTelemetry = fmt.Errorf("controlplane: camera has no telemetry sink")

// GetFrame returns the latest annotated frame JPEG-encoded at the given
// quality (1-100).
func (m *CameraManager) GetFrame(ctx context.Context, cameraID string, quality int) ([]byte, error) {
	e, err := m.get(cameraID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	sched := e.sched
	e.mu.Unlock()
	if sched == nil {
		return nil, ErrCameraNotRunning
	}

	snap := sched.Snapshot()
	if snap.Annotated == nil {
		return nil, ErrCameraNotRunning
	}
	return jpegcodec.Encode(snap.Annotated, quality)
}

// GetRawFrame returns the latest undecorated source frame JPEG-encoded at
// the given quality (1-100).
func (m *CameraManager) GetRawFrame(ctx context.Context, cameraID string, quality int) ([]byte, error) {
	e, err := m.get(cameraID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	sched := e.sched
	e.mu.Unlock()
	if sched == nil {
		return nil, ErrCameraNotRunning
	}

	snap := sched.Snapshot()
	if snap.Raw == nil {
		return nil, ErrCameraNotRunning
	}
	return jpegcodec.Encode(snap.Raw, quality)
}

func (m *CameraManager) telemetryFor(cameraID string) (*telemetry.Store, error) {
	e, err := m.get(cameraID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	store := e.telemetryStore
	e.mu.Unlock()
	if store == nil {
		return nil, ErrNoTelemetry
	}
	return store, nil
}

// Analytics returns the pre-aggregated analytics summary for a camera.
func (m *CameraManager) Analytics(ctx context.Context, cameraID string) (telemetry.AnalyticsSummary, error) {
	store, err := m.telemetryFor(cameraID)
	if err != nil {
		return telemetry.AnalyticsSummary{}, err
	}
	return store.GetAnalytics(ctx)
}

// TimeSeries returns bucketed event counts for a camera over [from, to].
func (m *CameraManager) TimeSeries(ctx context.Context, cameraID string, from, to time.Time, eventType, bucketSize string) ([]telemetry.TimeSeriesPoint, error) {
	store, err := m.telemetryFor(cameraID)
	if err != nil {
		return nil, err
	}
	return store.GetTimeSeries(ctx, from, to, eventType, bucketSize)
}

// DwellTime returns per-track presence durations for a camera over
// [start, end], filtered and sorted by duration per spec §4.5. A zero
// start/end leaves that bound open.
func (m *CameraManager) DwellTime(ctx context.Context, cameraID string, start, end time.Time, limit int) ([]telemetry.DwellTime, error) {
	store, err := m.telemetryFor(cameraID)
	if err != nil {
		return nil, err
	}
	return store.GetDwellTimes(ctx, start, end, limit)
}
