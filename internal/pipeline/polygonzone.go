package pipeline

import (
	"github.com/technosupport/cvpipeline/internal/frame"
)

// PolygonZoneManager evaluates polygon membership per spec §4.3: an
// even-odd ray-cast containment test on each track's anchor point, with
// entry/exit events firing on membership transitions.
type PolygonZoneManager struct {
	zones []*frame.PolygonZone
}

func NewPolygonZoneManager(zones []*frame.PolygonZone) *PolygonZoneManager {
	return &PolygonZoneManager{zones: zones}
}

func (m *PolygonZoneManager) Evaluate(tracks []*frame.Track, annotated *frame.Frame, cameraID string) (*frame.Frame, []frame.Event) {
	var events []frame.Event
	if annotated == nil {
		return annotated, events
	}

	present := make(map[uint32]bool, len(tracks))
	for _, tr := range tracks {
		present[tr.TrackID] = true
	}

	for _, zone := range m.zones {
		pixVerts := make([]frame.Point, len(zone.VerticesNorm))
		for i, v := range zone.VerticesNorm {
			pixVerts[i] = frame.ToPixel(v, annotated.Width, annotated.Height)
		}

		currentlyInside := make(map[uint32]bool, len(tracks))
		for _, tr := range tracks {
			anchor := frame.Anchor(tr.BBox, zone.AnchorKey)
			inside := pointInPolygon(anchor, pixVerts)
			currentlyInside[tr.TrackID] = inside

			wasInside := zone.Inside[tr.TrackID]
			if inside == wasInside {
				continue
			}

			eventType := "exit"
			if inside {
				eventType = "entry"
			}
			trackID := tr.TrackID
			events = append(events, frame.Event{
				Type:        frame.EventCrossing,
				CameraID:    cameraID,
				TimestampMS: frame.NowMS(),
				TrackID:     &trackID,
				Properties: map[string]any{
					"zone_id":    zone.ID,
					"class_name": tr.ClassName,
					"transition": eventType,
				},
			})
		}

		// Tracks that disappeared entirely (not just left the zone)
		// leave the membership set so it never leaks retired track IDs.
		for id := range zone.Inside {
			if !present[id] {
				delete(zone.Inside, id)
			}
		}
		for id, inside := range currentlyInside {
			if inside {
				zone.Inside[id] = true
			} else {
				delete(zone.Inside, id)
			}
		}
	}

	return annotated, events
}

// pointInPolygon implements the standard even-odd ray-cast test.
func pointInPolygon(p frame.Point, verts []frame.Point) bool {
	inside := false
	n := len(verts)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := verts[i], verts[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) {
			xIntersect := (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y) + vi.X
			if p.X < xIntersect {
				inside = !inside
			}
		}
	}
	return inside
}
