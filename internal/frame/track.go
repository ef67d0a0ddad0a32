package frame

// Track is a persistent identity across frames, produced by the tracker
// stage. ClassName is assigned on first association and never changes for
// the track's lifetime (see package pipeline's tracker for the invariant).
type Track struct {
	TrackID    uint32
	ClassName  string
	Confidence float32
	BBox       BBox
	AgeFrames  uint32

	// Trajectory holds recent centroid observations, oldest first, capped
	// at the configured trajectory_max_length.
	Trajectory []Point
}

// Centroid returns the track's current bounding-box center.
func (t *Track) Centroid() Point {
	return t.BBox.Center()
}
