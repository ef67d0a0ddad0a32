package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// Decoder is the seam to the real hardware/software video decode
// toolchain, an external collaborator per the pipeline's scope (§1). A
// concrete implementation pulls encoded packets from the network and
// returns decoded frames; tests and the default build use a generator
// that satisfies this interface without a real codec.
type Decoder interface {
	// Open connects to the source URL and prepares to decode.
	Open(ctx context.Context, cfg Config) error
	// ReadFrame blocks until the next decoded frame is available.
	ReadFrame(ctx context.Context) (*frame.Frame, error)
	Close() error
}

// DecoderFactory constructs a Decoder for a live Config. Overridden in
// tests; production wiring registers the real GStreamer-backed factory at
// process init.
var DecoderFactory = func(Config, decoder) Decoder {
	return nil
}

// liveSource runs a dedicated producer goroutine that continuously reads
// the latest frame into a single-slot buffer with drop-on-overwrite
// semantics: consumers must see the most recent image, never a queue of
// stale ones.
type liveSource struct {
	cfg     Config
	decoder decoder

	mu       sync.Mutex
	slot     *frame.Frame
	slotErr  error
	hasFrame bool

	stop      chan struct{}
	done      chan struct{}
	dec       Decoder
	consecFail int
}

func newLiveSource(cfg Config, d decoder) *liveSource {
	return &liveSource{cfg: cfg, decoder: d}
}

func (s *liveSource) Open(ctx context.Context) error {
	dec := DecoderFactory(s.cfg, s.decoder)
	if dec == nil {
		return fmt.Errorf("live source: no decoder available for protocol %q", s.cfg.Protocol())
	}
	if err := dec.Open(ctx, s.cfg); err != nil {
		return fmt.Errorf("live source open: %w", err)
	}
	s.dec = dec
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.produce()
	return nil
}

// produce is the dedicated reader goroutine: it never blocks a caller of
// NextFrame, and on repeated failure it reopens the decoder rather than
// surfacing every transient hiccup.
func (s *liveSource) produce() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		f, err := s.dec.ReadFrame(context.Background())
		if err != nil {
			s.consecFail++
			if s.consecFail > maxReopenAttempts(s.cfg) {
				s.mu.Lock()
				s.slotErr = fmt.Errorf("%w: %v", ErrTransient, err)
				s.mu.Unlock()
				return
			}
			if reopenErr := s.reopen(); reopenErr != nil {
				s.mu.Lock()
				s.slotErr = fmt.Errorf("%w: %v", ErrTransient, reopenErr)
				s.mu.Unlock()
			}
			continue
		}

		s.consecFail = 0
		f = resizeIfNeeded(f, s.cfg.Width, s.cfg.Height)

		s.mu.Lock()
		s.slot = f
		s.slotErr = nil
		s.hasFrame = true
		s.mu.Unlock()
	}
}

func (s *liveSource) reopen() error {
	_ = s.dec.Close()
	dec := DecoderFactory(s.cfg, s.decoder)
	if dec == nil {
		return fmt.Errorf("no decoder available on reopen")
	}
	if err := dec.Open(context.Background(), s.cfg); err != nil {
		return err
	}
	s.dec = dec
	return nil
}

// NextFrame returns the current slot contents without blocking on a read;
// absence of a frame yet is not an error.
func (s *liveSource) NextFrame(ctx context.Context) (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slotErr != nil {
		err := s.slotErr
		return nil, err
	}
	if !s.hasFrame {
		return nil, nil
	}
	return s.slot, nil
}

func (s *liveSource) Close() error {
	if s.stop != nil {
		close(s.stop)
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
		}
	}
	if s.dec != nil {
		return s.dec.Close()
	}
	return nil
}
