package frame

import "math"

// BBox is an axis-aligned box in pixel coordinates.
type BBox struct {
	X, Y, W, H float64
}

// Center returns the box centroid.
func (b BBox) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Area returns the box area, 0 for degenerate boxes.
func (b BBox) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// IoU returns the intersection-over-union of two boxes.
func (b BBox) IoU(o BBox) float64 {
	ix0 := max(b.X, o.X)
	iy0 := max(b.Y, o.Y)
	ix1 := min(b.X+b.W, o.X+o.W)
	iy1 := min(b.Y+b.H, o.Y+o.H)

	iw := ix1 - ix0
	ih := iy1 - iy0
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Point is a 2D point, used both in pixel and normalized ([0,1]) space
// depending on context.
type Point struct {
	X, Y float64
}

// Dist returns the Euclidean distance between two points.
func (p Point) Dist(o Point) float64 {
	dx := p.X - o.X
	dy := p.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Detection is the per-frame output of the detector stage. It carries no
// identity across frames; the tracker is responsible for that.
type Detection struct {
	ClassName  string
	Confidence float32
	BBox       BBox
}
