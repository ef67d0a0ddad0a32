package videowriter

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// Writer is a scoped, per-camera file sink. It opens its Encoder lazily on
// the first frame (so a never-started camera never creates an empty file)
// and releases it exactly once regardless of how many times Close is
// called, mirroring the scheduler's idempotent-stop discipline.
type Writer struct {
	cfg        Config
	newEncoder NewEncoderFunc

	mu          sync.Mutex
	enc         Encoder
	opened      bool
	frameCount  uint64
	closed      atomic.Bool
}

// New constructs a Writer. newEncoder is called at most once, on the
// first WriteFrame, so construction itself never touches the filesystem.
func New(cfg Config, newEncoder NewEncoderFunc) *Writer {
	return &Writer{cfg: cfg, newEncoder: newEncoder}
}

// WriteFrame resizes-by-selection between raw and annotated per
// UseRawFrame, stamps the frame number in the bottom-right corner when
// configured, and appends it to the container.
func (w *Writer) WriteFrame(raw, annotated *frame.Frame) error {
	if w.closed.Load() {
		return fmt.Errorf("videowriter: write after close")
	}

	src := annotated
	if w.cfg.UseRawFrame || src == nil {
		src = raw
	}
	if src == nil {
		return fmt.Errorf("videowriter: no frame to write")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.opened {
		w.enc = w.newEncoder()
		width, height := w.cfg.Width, w.cfg.Height
		if width == 0 {
			width = src.Width
		}
		if height == 0 {
			height = src.Height
		}
		fourcc := w.cfg.FourCC
		if fourcc == "" {
			fourcc = "mp4v"
		}
		if err := w.enc.Open(w.cfg.Path, width, height, w.cfg.FPS, fourcc); err != nil {
			return fmt.Errorf("videowriter: open %s: %w", w.cfg.Path, err)
		}
		w.opened = true
	}

	out := src
	if w.cfg.OverlayFrameNumber {
		out = src.Clone()
		drawFrameNumber(out, w.frameCount)
	}

	if err := w.enc.WriteFrame(out.Pix, out.Width, out.Height, out.Channels); err != nil {
		return fmt.Errorf("videowriter: write frame: %w", err)
	}
	w.frameCount++
	return nil
}

// FrameCount returns the number of frames written so far.
func (w *Writer) FrameCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frameCount
}

// Close releases the encoder. Safe to call multiple times, and safe to
// call on a Writer that never received a frame.
func (w *Writer) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return nil
	}
	return w.enc.Close()
}
