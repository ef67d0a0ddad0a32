package inference

import (
	"sort"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// ParseDetections decodes a model output tensor shaped [1, N, 6] — rows of
// (center_x, center_y, w, h, confidence, class_id) in letterboxed model
// space — into original-frame Detection records, applying the confidence
// threshold and then greedy NMS.
func ParseDetections(out Tensor, classNames []string, params RequestParams, lb LetterboxInfo) []frame.Detection {
	if len(out.Shape) < 2 {
		return nil
	}
	n := int(out.Shape[len(out.Shape)-2])
	cols := int(out.Shape[len(out.Shape)-1])
	if cols < 6 {
		return nil
	}

	dets := make([]frame.Detection, 0, n)
	for i := 0; i < n; i++ {
		base := i * cols
		if base+5 >= len(out.Data) {
			break
		}
		conf := out.Data[base+4]
		if conf < params.ConfThreshold {
			continue
		}
		cx, cy := float64(out.Data[base+0]), float64(out.Data[base+1])
		w, h := float64(out.Data[base+2]), float64(out.Data[base+3])
		classID := int(out.Data[base+5])

		box := lb.Undo(frame.BBox{X: cx - w/2, Y: cy - h/2, W: w, H: h})
		name := "unknown"
		if classID >= 0 && classID < len(classNames) {
			name = classNames[classID]
		}
		dets = append(dets, frame.Detection{ClassName: name, Confidence: conf, BBox: box})
	}

	return NMS(dets, params.NMSIoUThresh)
}

// NMS performs greedy non-maximum suppression: sort by confidence
// descending, then for each surviving box suppress later boxes whose IoU
// exceeds the threshold. Suppression only compares detections of the
// same class, so overlapping objects of different classes both survive.
func NMS(dets []frame.Detection, iouThresh float32) []frame.Detection {
	sorted := make([]frame.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]frame.Detection, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].ClassName != sorted[i].ClassName {
				continue
			}
			if sorted[i].BBox.IoU(sorted[j].BBox) > float64(iouThresh) {
				suppressed[j] = true
			}
		}
	}
	return kept
}
