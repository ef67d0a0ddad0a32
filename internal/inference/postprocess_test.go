package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/technosupport/cvpipeline/internal/frame"
)

func TestNMSSuppressesOverlappingSameClass(t *testing.T) {
	dets := []frame.Detection{
		{ClassName: "car", Confidence: 0.9, BBox: frame.BBox{X: 0, Y: 0, W: 10, H: 10}},
		{ClassName: "car", Confidence: 0.8, BBox: frame.BBox{X: 1, Y: 1, W: 10, H: 10}},
		{ClassName: "car", Confidence: 0.7, BBox: frame.BBox{X: 100, Y: 100, W: 10, H: 10}},
	}
	kept := NMS(dets, 0.3)
	assert.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Confidence)
	assert.Equal(t, float32(0.7), kept[1].Confidence)
}

func TestNMSKeepsDifferentClassesEvenWhenOverlapping(t *testing.T) {
	dets := []frame.Detection{
		{ClassName: "car", Confidence: 0.9, BBox: frame.BBox{X: 0, Y: 0, W: 10, H: 10}},
		{ClassName: "truck", Confidence: 0.85, BBox: frame.BBox{X: 0, Y: 0, W: 10, H: 10}},
	}
	kept := NMS(dets, 0.3)
	assert.Len(t, kept, 2)
}

func TestParseDetectionsAppliesConfidenceThreshold(t *testing.T) {
	lb := LetterboxInfo{ScaleX: 1, ScaleY: 1, PadX: 0, PadY: 0, OrigWidth: 100, OrigHeight: 100}
	out := Tensor{
		Shape: []int64{1, 2, 6},
		Data: []float32{
			50, 50, 20, 20, 0.9, 0,
			50, 50, 20, 20, 0.1, 0,
		},
	}
	params := RequestParams{ConfThreshold: 0.5, NMSIoUThresh: 0.5}
	dets := ParseDetections(out, []string{"person"}, params, lb)
	assert.Len(t, dets, 1)
	assert.Equal(t, "person", dets[0].ClassName)
}

func TestLetterboxUndoMapsBackToOriginalSpace(t *testing.T) {
	lb := LetterboxInfo{ScaleX: 0.5, ScaleY: 0.5, PadX: 10, PadY: 0}
	box := lb.Undo(frame.BBox{X: 10, Y: 0, W: 50, H: 50})
	assert.InDelta(t, 0.0, box.X, 1e-9)
	assert.InDelta(t, 0.0, box.Y, 1e-9)
	assert.InDelta(t, 100.0, box.W, 1e-9)
	assert.InDelta(t, 100.0, box.H, 1e-9)
}
