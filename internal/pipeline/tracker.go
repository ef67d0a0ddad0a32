package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// TrackerConfig tunes the ByteTrack-style two-stage association, named
// and defaulted after the original tracker's tuning knobs
// (object_tracker_processor.cpp's trackBuffer_/highThresh_/matchThresh_/
// trajectoryMaxLength_/maxAllowedDistanceRatio_/trajectoryCleanupThreshold_).
type TrackerConfig struct {
	HighThresh                 float32 // score >= this enters stage 1 matching
	MatchThresh                float64 // IoU required to accept a match
	TrackBuffer                uint32  // lost frames before a track is retired
	TrajectoryMaxLength        int     // capped trajectory length
	MaxAllowedDistanceRatio    float64 // jump-detection threshold, as a fraction of frame width
	TrajectoryCleanupThreshold uint32  // lost frames before all per-track state is evicted
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		HighThresh:                 0.6,
		MatchThresh:                0.8,
		TrackBuffer:                30,
		TrajectoryMaxLength:        60,
		MaxAllowedDistanceRatio:    0.2,
		TrajectoryCleanupThreshold: 30,
	}
}

// Tracker implements the ByteTrack-style two-stage IoU association
// described in spec §4.3: high-confidence detections are matched first,
// then low-confidence detections are matched against what's left, with
// unmatched tracks aging out after TrackBuffer missed frames.
//
// Persistent per-track state mirrors the original C++ tracker's maps
// (trackClassMap_, trajectoryHistory_, lastKnownPositions_,
// trackDisappearCounter_) translated from cv::Point/cv::Rect to plain Go
// structs.
type Tracker struct {
	cfg TrackerConfig

	mu         sync.Mutex
	nextID     uint32
	active     map[uint32]*frame.Track
	classMap   map[uint32]string
	trajectory map[uint32][]frame.Point
	lastKnown  map[uint32]lastKnownPosition
	disappear  map[uint32]uint32
}

type lastKnownPosition struct {
	point frame.Point
}

func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		cfg:        cfg,
		active:     make(map[uint32]*frame.Track),
		classMap:   make(map[uint32]string),
		trajectory: make(map[uint32][]frame.Point),
		lastKnown:  make(map[uint32]lastKnownPosition),
		disappear:  make(map[uint32]uint32),
	}
}

func (t *Tracker) Track(_ context.Context, dets []frame.Detection, annotated *frame.Frame, cameraID string) ([]*frame.Track, *frame.Frame, []frame.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	high, low := splitByConfidence(dets, t.cfg.HighThresh)

	matchedTrackIDs := make(map[uint32]bool)
	unmatchedHigh := t.assocStage(high, matchedTrackIDs)
	// Stage 2 matches low-confidence detections against whatever the
	// high-confidence pass left unmatched; detections that still don't
	// match are discarded rather than seeding a track (ByteTrack never
	// starts a new track from a low-confidence detection).
	t.assocStage(low, matchedTrackIDs)

	// Unmatched tracks from this frame age; evict past the buffer.
	for id := range t.active {
		if matchedTrackIDs[id] {
			continue
		}
		t.disappear[id]++
		if t.disappear[id] > t.cfg.TrackBuffer {
			delete(t.active, id)
		}
	}

	// Seed new tracks from whatever high-confidence detections never
	// matched; unmatched low-confidence detections never start a new
	// track (ByteTrack only admits low-confidence detections that match
	// an existing track).
	for _, det := range unmatchedHigh {
		id := t.nextID
		t.nextID++
		tr := &frame.Track{TrackID: id, ClassName: det.ClassName, Confidence: det.Confidence, BBox: det.BBox, AgeFrames: 0}
		t.active[id] = tr
		t.classMap[id] = det.ClassName
		matchedTrackIDs[id] = true
	}

	frameWidth := 0
	if annotated != nil {
		frameWidth = annotated.Width
	}
	maxAllowedDistance := float64(frameWidth) * t.cfg.MaxAllowedDistanceRatio

	events := make([]frame.Event, 0, len(t.active))
	out := make([]*frame.Track, 0, len(t.active))
	for id, tr := range t.active {
		if !matchedTrackIDs[id] {
			out = append(out, tr)
			continue
		}
		t.disappear[id] = 0
		tr.AgeFrames++

		// ClassName is assigned on first association only and never
		// overwritten: label flicker from transient misclassification
		// would break downstream analytics.
		if name, ok := t.classMap[id]; ok {
			tr.ClassName = name
		} else {
			t.classMap[id] = tr.ClassName
		}

		center := tr.Centroid()
		hist := t.trajectory[id]
		if prev, ok := t.lastKnown[id]; ok && len(hist) > 0 {
			if prev.point.Dist(center) > maxAllowedDistance {
				hist = nil
			}
		}
		hist = append(hist, center)
		if len(hist) > t.cfg.TrajectoryMaxLength {
			hist = hist[len(hist)-t.cfg.TrajectoryMaxLength:]
		}
		t.trajectory[id] = hist
		t.lastKnown[id] = lastKnownPosition{point: center}
		tr.Trajectory = hist

		out = append(out, tr)

		trackID := id
		events = append(events, frame.Event{
			Type:        frame.EventTracking,
			CameraID:    cameraID,
			TimestampMS: frame.NowMS(),
			TrackID:     &trackID,
			Properties: map[string]any{
				"class_name": tr.ClassName,
				"confidence": tr.Confidence,
				"bbox":       tr.BBox,
				"age_frames": tr.AgeFrames,
			},
		})
	}

	t.evictCleanedUpTracks()

	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out, annotated, events
}

// assocStage greedily matches dets against currently-unmatched active
// tracks by IoU, accepting matches at or above MatchThresh, and returns
// the detections that found no track.
func (t *Tracker) assocStage(dets []frame.Detection, matched map[uint32]bool) []frame.Detection {
	var unmatched []frame.Detection
	for _, det := range dets {
		bestID := uint32(0)
		bestIoU := 0.0
		found := false
		for id, tr := range t.active {
			if matched[id] {
				continue
			}
			iou := tr.BBox.IoU(det.BBox)
			if iou > bestIoU {
				bestIoU = iou
				bestID = id
				found = true
			}
		}
		if found && bestIoU >= t.cfg.MatchThresh {
			tr := t.active[bestID]
			tr.BBox = det.BBox
			tr.Confidence = det.Confidence
			matched[bestID] = true
			continue
		}
		unmatched = append(unmatched, det)
	}
	return unmatched
}

// evictCleanedUpTracks drops all per-track bookkeeping (trajectory,
// last-known position, class assignment) once a track has been gone long
// enough that re-identifying it later as "the same" object would be a
// guess, mirroring trackDisappearCounter_'s cleanup pass.
func (t *Tracker) evictCleanedUpTracks() {
	for id, n := range t.disappear {
		if n > t.cfg.TrajectoryCleanupThreshold {
			delete(t.trajectory, id)
			delete(t.lastKnown, id)
			delete(t.classMap, id)
			delete(t.disappear, id)
		}
	}
}

func splitByConfidence(dets []frame.Detection, highThresh float32) (high, low []frame.Detection) {
	for _, d := range dets {
		if d.Confidence >= highThresh {
			high = append(high, d)
		} else {
			low = append(low, d)
		}
	}
	return high, low
}
