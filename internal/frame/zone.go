package frame

// LineZone is an oriented line defined by two normalized ([0,1]) endpoints.
// Side/crossing logic lives in package pipeline; this struct is the
// persisted/visible shape.
type LineZone struct {
	ID        string
	StartNorm Point
	EndNorm   Point
	AnchorKey string // bbox anchor used for the crossing test, default "bottom_center"

	CountIn  uint64
	CountOut uint64
}

// PolygonZone is a closed polygon with >= 3 normalized vertices and a
// membership set of track IDs currently inside.
type PolygonZone struct {
	ID            string
	VerticesNorm  []Point
	AnchorKey     string
	Inside        map[uint32]bool
}

// NewPolygonZone returns a zone with an initialized membership set.
func NewPolygonZone(id string, vertices []Point) *PolygonZone {
	return &PolygonZone{
		ID:           id,
		VerticesNorm: vertices,
		AnchorKey:    "bottom_center",
		Inside:       make(map[uint32]bool),
	}
}

// Anchor returns the pixel-space anchor point for a bounding box, using the
// zone's configured anchor key (default bottom-center).
func Anchor(b BBox, key string) Point {
	switch key {
	case "center":
		return b.Center()
	case "top_center":
		return Point{X: b.X + b.W/2, Y: b.Y}
	case "bottom_center":
		fallthrough
	default:
		return Point{X: b.X + b.W/2, Y: b.Y + b.H}
	}
}

// ToPixel converts a normalized point to pixel space given frame dimensions.
func ToPixel(p Point, width, height int) Point {
	return Point{X: p.X * float64(width), Y: p.Y * float64(height)}
}
