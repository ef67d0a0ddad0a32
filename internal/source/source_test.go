package source

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/cvpipeline/internal/frame"
)

type fakeLiveDecoder struct {
	reads     int32
	failUntil int32
}

func (d *fakeLiveDecoder) Open(context.Context, Config) error { return nil }

func (d *fakeLiveDecoder) ReadFrame(context.Context) (*frame.Frame, error) {
	n := atomic.AddInt32(&d.reads, 1)
	if n <= d.failUntil {
		return nil, ErrTransient
	}
	return &frame.Frame{Width: 4, Height: 4, Channels: 3, Pix: make([]byte, 48), CapturedAtMS: int64(n)}, nil
}

func (d *fakeLiveDecoder) Close() error { return nil }

func TestLiveSourceProducesLatestFrame(t *testing.T) {
	DecoderFactory = func(Config, decoder) Decoder { return &fakeLiveDecoder{} }
	defer func() { DecoderFactory = func(Config, decoder) Decoder { return nil } }()

	cfg := Config{URL: "rtsp://camera/stream", Width: 4, Height: 4}
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	var f *frame.Frame
	require.Eventually(t, func() bool {
		var err error
		f, err = s.NextFrame(context.Background())
		return err == nil && f != nil
	}, time.Second, time.Millisecond)

	assert.Equal(t, 4, f.Width)
}

func TestLiveSourceSurfacesTransientAfterExhaustingReopens(t *testing.T) {
	DecoderFactory = func(Config, decoder) Decoder { return &fakeLiveDecoder{failUntil: 1000} }
	defer func() { DecoderFactory = func(Config, decoder) Decoder { return nil } }()

	cfg := Config{URL: "rtsp://camera/stream", Width: 4, Height: 4, MaxReopenAttempts: 2}
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	require.Eventually(t, func() bool {
		_, err := s.NextFrame(context.Background())
		return err != nil
	}, time.Second, time.Millisecond)
}

type fakeFileDecoder struct {
	frames  []*frame.Frame
	idx     int
	rewound int
}

func (d *fakeFileDecoder) Open(context.Context, Config) error { return nil }

func (d *fakeFileDecoder) ReadFrame(context.Context) (*frame.Frame, error) {
	if d.idx >= len(d.frames) {
		return nil, ErrEndOfStream
	}
	f := d.frames[d.idx]
	d.idx++
	return f, nil
}

func (d *fakeFileDecoder) Rewind(context.Context) error {
	d.idx = 0
	d.rewound++
	return nil
}

func (d *fakeFileDecoder) Close() error { return nil }

func TestFileSourceLoopsOnEOF(t *testing.T) {
	fd := &fakeFileDecoder{frames: []*frame.Frame{
		{Width: 2, Height: 2, Channels: 3, Pix: make([]byte, 12), CapturedAtMS: 1},
	}}
	FileDecoderFactory = func(Config, decoder) FileDecoder { return fd }
	defer func() { FileDecoderFactory = func(Config, decoder) FileDecoder { return nil } }()

	cfg := Config{URL: "/clips/demo.mp4", Width: 2, Height: 2}
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	f1, err := s.NextFrame(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f1)

	f2, err := s.NextFrame(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f2)
	assert.Equal(t, 1, fd.rewound)
}

func TestConfigProtocolAndIsLive(t *testing.T) {
	assert.True(t, Config{URL: "rtsp://cam/1"}.IsLive())
	assert.True(t, Config{URL: "http://cam/1.mjpeg"}.IsLive())
	assert.False(t, Config{URL: "/var/clips/a.mp4"}.IsLive())
	assert.Equal(t, "rtsp", Config{URL: "rtsp://cam/1"}.Protocol())
}

func TestProbeHWAccelFallsBackToSoftware(t *testing.T) {
	d := ProbeHWAccel(HWAccelAuto)
	assert.Equal(t, HWAccelNone, d.backend)

	RegisterAvailableBackend(HWAccelVAAPI)
	d = ProbeHWAccel(HWAccelAuto)
	assert.Equal(t, HWAccelVAAPI, d.backend)
	delete(availableBackends, HWAccelVAAPI)
}
