package pipeline

import (
	"github.com/technosupport/cvpipeline/internal/frame"
)

// LineZoneManager evaluates a set of oriented line zones against the
// current track list. Zones store their endpoints in normalized [0,1]
// coordinates (see frame.LineZone) and are converted to pixels lazily
// using the current frame's dimensions, so the same configuration
// survives a resolution change.
type LineZoneManager struct {
	zones []*frame.LineZone
	// side remembers the signed side of each (zone, track) pair as of the
	// previous frame, so a crossing is only emitted on a sign change.
	side map[zoneTrackKey]float64
}

type zoneTrackKey struct {
	zoneID  string
	trackID uint32
}

func NewLineZoneManager(zones []*frame.LineZone) *LineZoneManager {
	return &LineZoneManager{zones: zones, side: make(map[zoneTrackKey]float64)}
}

func (m *LineZoneManager) Evaluate(tracks []*frame.Track, annotated *frame.Frame, cameraID string) (*frame.Frame, []frame.Event) {
	var events []frame.Event
	if annotated == nil {
		return annotated, events
	}

	for _, zone := range m.zones {
		start := frame.ToPixel(zone.StartNorm, annotated.Width, annotated.Height)
		end := frame.ToPixel(zone.EndNorm, annotated.Width, annotated.Height)

		for _, tr := range tracks {
			anchor := frame.Anchor(tr.BBox, zone.AnchorKey)
			side := signedSide(start, end, anchor)

			key := zoneTrackKey{zoneID: zone.ID, trackID: tr.TrackID}
			prev, seen := m.side[key]
			m.side[key] = side

			if !seen || side == 0 || sameSign(prev, side) {
				continue
			}

			direction := "out"
			if prev < 0 && side > 0 {
				direction = "in"
				zone.CountIn++
			} else {
				zone.CountOut++
			}

			trackID := tr.TrackID
			events = append(events, frame.Event{
				Type:        frame.EventCrossing,
				CameraID:    cameraID,
				TimestampMS: frame.NowMS(),
				TrackID:     &trackID,
				Properties: map[string]any{
					"zone_id":        zone.ID,
					"class_name":     tr.ClassName,
					"direction":      direction,
					"crossing_point": anchor,
				},
			})
		}
	}

	return annotated, events
}

// signedSide returns the signed distance of p from the oriented line
// start→end: positive on one side, negative on the other, zero exactly on
// the line.
func signedSide(start, end, p frame.Point) float64 {
	return (end.X-start.X)*(p.Y-start.Y) - (end.Y-start.Y)*(p.X-start.X)
}

func sameSign(a, b float64) bool {
	return (a < 0 && b < 0) || (a > 0 && b > 0)
}
