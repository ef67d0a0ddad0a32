// Package scheduler implements the Pipeline Scheduler component (C4):
// one worker goroutine per camera running the cooperative loop from
// spec §4.4 — read a frame, run it through the chain, fan the result out
// to sinks, and publish a snapshot callers can read without blocking the
// worker.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/technosupport/cvpipeline/internal/frame"
	"github.com/technosupport/cvpipeline/internal/metrics"
	"github.com/technosupport/cvpipeline/internal/pipeline"
	"github.com/technosupport/cvpipeline/internal/source"
)

// Sink receives the raw frame, annotated frame, and events produced by
// one processing iteration. Implementations (file video writer, telemetry
// store) must not block the worker for long; C6/C5 each bound their own
// work.
type Sink interface {
	Consume(ctx context.Context, cameraID string, raw, annotated *frame.Frame, events []frame.Event) error
}

// Snapshot is the single-slot buffer contents callers can read via
// Scheduler.Snapshot without synchronizing with the worker beyond a
// mutex held just long enough to clone out.
type Snapshot struct {
	Raw       *frame.Frame
	Annotated *frame.Frame
	Events    []frame.Event
	UpdatedAt int64
}

// Config configures one camera's scheduler.
type Config struct {
	CameraID         string
	Source           source.Config
	InferenceTimeout time.Duration
}

// Scheduler owns exactly one camera worker. Start/Stop are idempotent:
// each is safe to call multiple times or out of order, because Stop must
// also run as startup-failure rollback (spec §4.4).
type Scheduler struct {
	cfg   Config
	chain *pipeline.Chain
	sinks []Sink

	mu       sync.Mutex
	running  bool
	snapshot Snapshot

	src  source.Source
	stop chan struct{}
	done chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

func New(cfg Config, chain *pipeline.Chain, sinks []Sink) *Scheduler {
	return &Scheduler{cfg: cfg, chain: chain, sinks: sinks}
}

// openSource is a seam over source.Open so tests can substitute a fake
// Source without exercising the real decode toolchain.
var openSource = source.Open

// Start acquires the source, calls initialize() semantics implicitly
// (stages are already constructed by the registry), and launches the
// worker. A stage whose upstream server is unreachable at start still
// starts — the retry loop inside infer handles recovery — so Start only
// fails if the source itself can't be opened.
func (s *Scheduler) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		var src source.Source
		src, err = openSource(ctx, s.cfg.Source)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.src = src
		s.running = true
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		s.mu.Unlock()

		go s.run()
		metrics.CamerasRunning.Inc()
	})
	return err
}

// IsRunning reports the atomic running flag external callers poll.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run() {
	defer close(s.done)

	isFile := !s.cfg.Source.IsLive()
	ctx := context.Background()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		iterStart := time.Now()

		f, err := s.src.NextFrame(ctx)
		if err != nil || f == nil {
			time.Sleep(2 * time.Millisecond)
			continue
		}

		iterCtx := ctx
		var cancel context.CancelFunc
		if s.cfg.InferenceTimeout > 0 {
			iterCtx, cancel = context.WithTimeout(ctx, s.cfg.InferenceTimeout)
		}

		var annotated *frame.Frame
		var events []frame.Event
		if s.chain != nil {
			annotated, events = s.chain.Process(iterCtx, f, s.cfg.CameraID)
		} else {
			annotated = f
		}
		if cancel != nil {
			cancel()
		}

		for _, sink := range s.sinks {
			_ = sink.Consume(ctx, s.cfg.CameraID, f, annotated, events)
		}

		s.mu.Lock()
		s.snapshot = Snapshot{Raw: f, Annotated: annotated, Events: events, UpdatedAt: frame.NowMS()}
		s.mu.Unlock()

		elapsed := time.Since(iterStart)
		metrics.RecordFrameProcessed(s.cfg.CameraID, float64(elapsed.Milliseconds()))
		s.pace(isFile, elapsed)
	}
}

// pace implements the scheduler loop's adaptive sleep: a file source
// relies on the decoder for timing and only needs a minimal yield; a live
// source sleeps just enough to avoid spinning unless processing already
// ran long, in which case it catches up with no sleep at all.
func (s *Scheduler) pace(isFile bool, elapsed time.Duration) {
	switch {
	case isFile:
		time.Sleep(time.Millisecond)
	case elapsed > 33*time.Millisecond:
		// already behind; catch up with no sleep
	default:
		time.Sleep(10 * time.Millisecond)
	}
}

// Snapshot returns a clone of the latest processed frame and events,
// releasing the lock immediately after cloning so the worker is never
// blocked waiting on a reader.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Raw:       s.snapshot.Raw.Clone(),
		Annotated: s.snapshot.Annotated.Clone(),
		Events:    append([]frame.Event(nil), s.snapshot.Events...),
		UpdatedAt: s.snapshot.UpdatedAt,
	}
}

// Stop signals the worker, waits for the in-flight iteration to finish
// (there is no cooperative cancellation within a single frame), and
// releases the source. Safe to call more than once and before Start has
// completed.
func (s *Scheduler) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		stopCh := s.stop
		doneCh := s.done
		src := s.src
		s.running = false
		s.mu.Unlock()

		if stopCh != nil {
			close(stopCh)
		}
		if doneCh != nil {
			<-doneCh
		}
		if src != nil {
			err = src.Close()
		}
		if stopCh != nil {
			metrics.CamerasRunning.Dec()
		}
	})
	return err
}
