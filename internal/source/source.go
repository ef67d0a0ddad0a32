// Package source implements the Frame Source component (C1): a lazy
// sequence of decoded frames at requested resolution and cadence, with two
// operating modes selected from the configured URL scheme.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// Transport is the live-source network transport.
type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportUDP Transport = "udp"
)

// HWAccel names a hardware decode backend, preferred in the order listed
// in Config.HWAccel.
type HWAccel string

const (
	HWAccelAuto   HWAccel = "auto"
	HWAccelNVIDIA HWAccel = "nvidia"
	HWAccelVAAPI  HWAccel = "vaapi"
	HWAccelOMX    HWAccel = "omx"
	HWAccelNone   HWAccel = "none"
)

// Format is the source codec.
type Format string

const (
	FormatH264 Format = "h264"
	FormatH265 Format = "h265"
	FormatRaw  Format = "raw"
)

// Config configures a Source at Open time.
type Config struct {
	URL         string
	Width       int
	Height      int
	TargetFPS   float64
	Format      Format
	HWAccel     HWAccel
	Transport   Transport // live only
	LatencyMS   int       // live only

	// MaxReopenAttempts bounds consecutive reopen retries on a live
	// source before next_frame surfaces TransientError. Zero uses the
	// package default.
	MaxReopenAttempts int
}

// Protocol is derived from the URL scheme at Open time.
func (c Config) Protocol() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// IsLive reports whether the configured URL selects live mode (rtsp/http/
// v4l2) as opposed to file mode.
func (c Config) IsLive() bool {
	switch c.Protocol() {
	case "rtsp", "http", "https", "v4l2":
		return true
	default:
		return false
	}
}

var (
	// ErrEndOfStream is returned by NextFrame when a file source has no
	// more frames to read without looping (not used by the default
	// looping FileSource, but kept for custom readers).
	ErrEndOfStream = errors.New("source: end of stream")
	// ErrTransient indicates a recoverable mid-stream read failure; the
	// scheduler should keep the camera running and retry on the next
	// iteration.
	ErrTransient = errors.New("source: transient read failure")
	// ErrUnavailable indicates an open-time failure, fatal to camera
	// start.
	ErrUnavailable = errors.New("source: unavailable")
)

// Source produces a lazy sequence of decoded frames.
type Source interface {
	Open(ctx context.Context) error
	NextFrame(ctx context.Context) (*frame.Frame, error)
	Close() error
}

// Open selects and opens the appropriate implementation for cfg, probing
// hardware acceleration once.
func Open(ctx context.Context, cfg Config) (Source, error) {
	decoder := ProbeHWAccel(cfg.HWAccel)

	var s Source
	if cfg.IsLive() {
		s = newLiveSource(cfg, decoder)
	} else {
		s = newFileSource(cfg, decoder)
	}

	if err := s.Open(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s, nil
}

const defaultMaxReopenAttempts = 5

func maxReopenAttempts(cfg Config) int {
	if cfg.MaxReopenAttempts > 0 {
		return cfg.MaxReopenAttempts
	}
	return defaultMaxReopenAttempts
}
