package pipeline

import (
	"context"

	"github.com/technosupport/cvpipeline/internal/frame"
	"github.com/technosupport/cvpipeline/internal/inference"
)

// ClassifierConfig configures a secondary per-track model: plain
// classification (e.g. vehicle make/color) or age/gender. Both follow the
// same Inference Client pattern as the detector, just cropped to each
// track's bounding box instead of the whole frame.
type ClassifierConfig struct {
	ModelID       string
	InputSize     int
	ConfThreshold float32
	Labels        []string
	EventType     frame.EventType
}

// Classifier runs a secondary model per track and emits one event per
// result above threshold — shared implementation for both plain
// classification and age/gender, which differ only in model/labels/event
// type.
type Classifier struct {
	client inference.Client
	cfg    ClassifierConfig
}

func NewClassifier(client inference.Client, cfg ClassifierConfig) *Classifier {
	if cfg.EventType == "" {
		cfg.EventType = frame.EventClassification
	}
	return &Classifier{client: client, cfg: cfg}
}

func (c *Classifier) Classify(ctx context.Context, tracks []*frame.Track, raw *frame.Frame, cameraID string) []frame.Event {
	var events []frame.Event
	for _, tr := range tracks {
		crop := cropFrame(raw, tr.BBox)
		if crop == nil {
			continue
		}

		tensor, _ := inference.Letterbox(crop, c.cfg.InputSize)
		res, err := c.client.Infer(ctx, c.cfg.ModelID, tensor, inference.RequestParams{
			InputSize:     c.cfg.InputSize,
			ConfThreshold: c.cfg.ConfThreshold,
		})
		if err != nil {
			// A stage that fails for one frame emits an empty result;
			// the chain keeps going.
			continue
		}

		label, conf, ok := topLabel(res.Output, c.cfg.Labels, c.cfg.ConfThreshold)
		if !ok {
			continue
		}

		trackID := tr.TrackID
		events = append(events, frame.Event{
			Type:        c.cfg.EventType,
			CameraID:    cameraID,
			TimestampMS: frame.NowMS(),
			TrackID:     &trackID,
			Properties: map[string]any{
				"label":      label,
				"confidence": conf,
			},
		})
	}
	return events
}

// topLabel picks the highest-scoring entry of a 1D [N]-shaped softmax-ish
// output, returning ok=false if nothing clears the threshold.
func topLabel(out inference.Tensor, labels []string, threshold float32) (string, float32, bool) {
	bestIdx, bestScore := -1, float32(-1)
	for i, v := range out.Data {
		if v > bestScore {
			bestScore = v
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestScore < threshold {
		return "", 0, false
	}
	name := "unknown"
	if bestIdx < len(labels) {
		name = labels[bestIdx]
	}
	return name, bestScore, true
}

// cropFrame extracts the pixels within b from f, clamping to frame
// bounds; nil for a degenerate crop.
func cropFrame(f *frame.Frame, b frame.BBox) *frame.Frame {
	x0 := clampInt(int(b.X), 0, f.Width)
	y0 := clampInt(int(b.Y), 0, f.Height)
	x1 := clampInt(int(b.X+b.W), 0, f.Width)
	y1 := clampInt(int(b.Y+b.H), 0, f.Height)
	w, h := x1-x0, y1-y0
	if w <= 0 || h <= 0 {
		return nil
	}

	out := &frame.Frame{Width: w, Height: h, Channels: f.Channels, Pix: make([]byte, w*h*f.Channels), CapturedAtMS: f.CapturedAtMS}
	srcStride := f.Stride()
	dstStride := out.Stride()
	for row := 0; row < h; row++ {
		srcOff := (y0+row)*srcStride + x0*f.Channels
		dstOff := row * dstStride
		copy(out.Pix[dstOff:dstOff+dstStride], f.Pix[srcOff:srcOff+dstStride])
	}
	return out
}
