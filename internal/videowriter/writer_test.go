package videowriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/cvpipeline/internal/frame"
)

type fakeEncoder struct {
	opened     bool
	openPath   string
	frames     int
	closed     int
	failOpen   bool
}

func (e *fakeEncoder) Open(path string, width, height, fps int, fourCC string) error {
	if e.failOpen {
		return assert.AnError
	}
	e.opened = true
	e.openPath = path
	return nil
}

func (e *fakeEncoder) WriteFrame(pix []byte, width, height, channels int) error {
	e.frames++
	return nil
}

func (e *fakeEncoder) Close() error {
	e.closed++
	return nil
}

func makeFrame(w, h int) *frame.Frame {
	return &frame.Frame{Width: w, Height: h, Channels: 3, Pix: make([]byte, w*h*3)}
}

func TestWriterOpensLazilyOnFirstFrame(t *testing.T) {
	enc := &fakeEncoder{}
	w := New(Config{Path: "/tmp/out.mp4", FPS: 30}, func() Encoder { return enc })

	assert.False(t, enc.opened)
	require.NoError(t, w.WriteFrame(makeFrame(16, 16), nil))
	assert.True(t, enc.opened)
	assert.Equal(t, 1, enc.frames)
	assert.Equal(t, uint64(1), w.FrameCount())
}

func TestWriterUsesAnnotatedFrameUnlessRawConfigured(t *testing.T) {
	enc := &fakeEncoder{}
	w := New(Config{Path: "/tmp/out.mp4"}, func() Encoder { return enc })
	require.NoError(t, w.WriteFrame(makeFrame(8, 8), makeFrame(8, 8)))
	assert.Equal(t, 1, enc.frames)
}

func TestWriterCloseIsIdempotent(t *testing.T) {
	enc := &fakeEncoder{}
	w := New(Config{Path: "/tmp/out.mp4"}, func() Encoder { return enc })
	require.NoError(t, w.WriteFrame(makeFrame(8, 8), nil))

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, enc.closed)
}

func TestWriterCloseWithoutAnyFrameNeverOpensEncoder(t *testing.T) {
	enc := &fakeEncoder{}
	w := New(Config{Path: "/tmp/out.mp4"}, func() Encoder { return enc })
	require.NoError(t, w.Close())
	assert.False(t, enc.opened)
	assert.Equal(t, 0, enc.closed)
}

func TestWriterRejectsFramesAfterClose(t *testing.T) {
	enc := &fakeEncoder{}
	w := New(Config{Path: "/tmp/out.mp4"}, func() Encoder { return enc })
	require.NoError(t, w.Close())
	err := w.WriteFrame(makeFrame(8, 8), nil)
	assert.Error(t, err)
}

func TestDrawFrameNumberStaysWithinBounds(t *testing.T) {
	f := makeFrame(32, 32)
	assert.NotPanics(t, func() { drawFrameNumber(f, 12345) })
}
