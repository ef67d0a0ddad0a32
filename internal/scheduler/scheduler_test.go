package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/cvpipeline/internal/frame"
	"github.com/technosupport/cvpipeline/internal/source"
)

type fakeSource struct {
	n int32
}

func (f *fakeSource) Open(context.Context) error { return nil }

func (f *fakeSource) NextFrame(context.Context) (*frame.Frame, error) {
	atomic.AddInt32(&f.n, 1)
	return &frame.Frame{Width: 4, Height: 4, Channels: 3, Pix: make([]byte, 48)}, nil
}

func (f *fakeSource) Close() error { return nil }

type countingSink struct {
	n int32
}

func (s *countingSink) Consume(context.Context, string, *frame.Frame, *frame.Frame, []frame.Event) error {
	atomic.AddInt32(&s.n, 1)
	return nil
}

func TestSchedulerProcessesFramesAndPublishesSnapshot(t *testing.T) {
	fs := &fakeSource{}
	openSource = func(context.Context, source.Config) (source.Source, error) { return fs, nil }
	defer func() { openSource = source.Open }()

	sink := &countingSink{}
	sched := New(Config{CameraID: "cam1", Source: source.Config{URL: "/clip.mp4"}}, nil, []Sink{sink})

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&sink.n) > 0
	}, time.Second, time.Millisecond)

	snap := sched.Snapshot()
	assert.NotNil(t, snap.Raw)
	assert.True(t, sched.IsRunning())
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	fs := &fakeSource{}
	openSource = func(context.Context, source.Config) (source.Source, error) { return fs, nil }
	defer func() { openSource = source.Open }()

	sched := New(Config{CameraID: "cam1", Source: source.Config{URL: "/clip.mp4"}}, nil, nil)
	require.NoError(t, sched.Start(context.Background()))

	assert.NoError(t, sched.Stop())
	assert.NoError(t, sched.Stop())
	assert.False(t, sched.IsRunning())
}

func TestSchedulerStopBeforeStartIsSafe(t *testing.T) {
	sched := New(Config{CameraID: "cam1"}, nil, nil)
	assert.NoError(t, sched.Stop())
}
