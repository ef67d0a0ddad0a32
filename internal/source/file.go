package source

import (
	"context"
	"fmt"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// FileDecoder is the seam to a demuxer/decoder over a local media file: no
// producer thread runs behind it, every call does real (synchronous) work.
type FileDecoder interface {
	Open(ctx context.Context, cfg Config) error
	// ReadFrame returns the next decoded frame, or ErrEndOfStream when the
	// file is exhausted.
	ReadFrame(ctx context.Context) (*frame.Frame, error)
	// Rewind seeks back to the first frame for looping playback.
	Rewind(ctx context.Context) error
	Close() error
}

// FileDecoderFactory constructs a FileDecoder for a Config. Overridden in
// tests; production wiring registers the real demuxer at process init.
var FileDecoderFactory = func(Config, decoder) FileDecoder {
	return nil
}

// fileSource has no producer thread: next_frame reads synchronously, and
// on end of stream it rewinds and returns the first frame again so a
// recorded clip loops indefinitely.
type fileSource struct {
	cfg     Config
	decoder decoder
	dec     FileDecoder
}

func newFileSource(cfg Config, d decoder) *fileSource {
	return &fileSource{cfg: cfg, decoder: d}
}

func (s *fileSource) Open(ctx context.Context) error {
	dec := FileDecoderFactory(s.cfg, s.decoder)
	if dec == nil {
		return fmt.Errorf("file source: no decoder available for %q", s.cfg.URL)
	}
	if err := dec.Open(ctx, s.cfg); err != nil {
		return fmt.Errorf("file source open: %w", err)
	}
	s.dec = dec
	return nil
}

func (s *fileSource) NextFrame(ctx context.Context) (*frame.Frame, error) {
	f, err := s.dec.ReadFrame(ctx)
	if err != nil {
		if err != ErrEndOfStream {
			return nil, err
		}
		if rerr := s.dec.Rewind(ctx); rerr != nil {
			return nil, fmt.Errorf("%w: rewind failed: %v", ErrTransient, rerr)
		}
		f, err = s.dec.ReadFrame(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return resizeIfNeeded(f, s.cfg.Width, s.cfg.Height), nil
}

func (s *fileSource) Close() error {
	if s.dec != nil {
		return s.dec.Close()
	}
	return nil
}
