package pipeline

import (
	"context"
	"fmt"
	"image/color"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/technosupport/cvpipeline/internal/frame"
	"github.com/technosupport/cvpipeline/internal/inference"
)

// DetectorConfig configures one Detector instance.
type DetectorConfig struct {
	ModelID       string
	InputSize     int
	ConfThreshold float32
	NMSIoUThresh  float32
	ClassNames    []string        // indexed by the model's class_id output column
	ClassAllow    map[string]bool // empty/nil means allow everything
	Draw          bool
	MaxColorCacheEntries int
}

// Detector uses the Inference Client to produce detections, draws boxes
// and labels on an annotated copy when configured, and maintains a
// per-class color assignment capped by an LRU cache so a pathological
// number of distinct class names can't grow memory unbounded — the same
// concern the teacher caps with golang-lru/v2 for event dedup keys.
type Detector struct {
	client inference.Client
	cfg    DetectorConfig
	colors *lru.Cache[string, color.RGBA]
	nextHue int
}

func NewDetector(client inference.Client, cfg DetectorConfig) (*Detector, error) {
	cap := cfg.MaxColorCacheEntries
	if cap <= 0 {
		cap = 256
	}
	c, err := lru.New[string, color.RGBA](cap)
	if err != nil {
		return nil, fmt.Errorf("detector: color cache: %w", err)
	}
	return &Detector{client: client, cfg: cfg, colors: c}, nil
}

func (d *Detector) Detect(ctx context.Context, raw *frame.Frame, cameraID string) ([]frame.Detection, *frame.Frame, error) {
	tensor, lb := inference.Letterbox(raw, d.cfg.InputSize)

	res, err := d.client.Infer(ctx, d.cfg.ModelID, tensor, inference.RequestParams{
		InputSize:     d.cfg.InputSize,
		ConfThreshold: d.cfg.ConfThreshold,
		NMSIoUThresh:  d.cfg.NMSIoUThresh,
	})
	if err != nil {
		// A stage that fails for one frame emits an empty result list;
		// the chain continues rather than aborting.
		return nil, raw, nil
	}

	dets := inference.ParseDetections(res.Output, d.cfg.ClassNames, inference.RequestParams{
		ConfThreshold: d.cfg.ConfThreshold,
		NMSIoUThresh:  d.cfg.NMSIoUThresh,
	}, lb)

	dets = d.filterByAllowList(dets)

	annotated := raw
	if d.cfg.Draw {
		annotated = raw.Clone()
		d.drawDetections(annotated, dets)
	}

	return dets, annotated, nil
}

func (d *Detector) filterByAllowList(dets []frame.Detection) []frame.Detection {
	if len(d.cfg.ClassAllow) == 0 {
		return dets
	}
	out := dets[:0]
	for _, det := range dets {
		if d.cfg.ClassAllow[det.ClassName] {
			out = append(out, det)
		}
	}
	return out
}

// colorFor assigns a stable, visually distinct color per class name the
// first time it's seen, evicting the least-recently-used assignment once
// the cache is full.
func (d *Detector) colorFor(className string) color.RGBA {
	if c, ok := d.colors.Get(className); ok {
		return c
	}
	c := hueToRGB(d.nextHue)
	d.nextHue += 47 // large odd step keeps successive colors visually separated
	d.colors.Add(className, c)
	return c
}

func hueToRGB(hue int) color.RGBA {
	h := float64(hue%360) / 60.0
	x := 1 - abs(h-2*float64(int(h/2))-1)
	var r, g, b float64
	switch int(h) {
	case 0:
		r, g, b = 1, x, 0
	case 1:
		r, g, b = x, 1, 0
	case 2:
		r, g, b = 0, 1, x
	case 3:
		r, g, b = 0, x, 1
	case 4:
		r, g, b = x, 0, 1
	default:
		r, g, b = 1, 0, x
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// drawDetections paints each surviving box's border pixels directly into
// the frame's packed pixel buffer.
func (d *Detector) drawDetections(f *frame.Frame, dets []frame.Detection) {
	for _, det := range dets {
		c := d.colorFor(det.ClassName)
		drawRect(f, det.BBox, c)
	}
}

func drawRect(f *frame.Frame, b frame.BBox, c color.RGBA) {
	x0, y0 := clampInt(int(b.X), 0, f.Width-1), clampInt(int(b.Y), 0, f.Height-1)
	x1, y1 := clampInt(int(b.X+b.W), 0, f.Width-1), clampInt(int(b.Y+b.H), 0, f.Height-1)

	for x := x0; x <= x1; x++ {
		setPixel(f, x, y0, c)
		setPixel(f, x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		setPixel(f, x0, y, c)
		setPixel(f, x1, y, c)
	}
}

func setPixel(f *frame.Frame, x, y int, c color.RGBA) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height || f.Channels < 3 {
		return
	}
	i := y*f.Stride() + x*f.Channels
	f.Pix[i+0] = c.R
	f.Pix[i+1] = c.G
	f.Pix[i+2] = c.B
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
