// Package factories wires registry.Kind factories for every source,
// processor, and sink type tag the control plane can attach to a camera.
// It is the one place that translates a component's raw JSON config map
// into the concrete constructor call for its package — every other
// package stays ignorant of the registry and of map[string]any.
package factories

import (
	"context"
	"fmt"

	"github.com/technosupport/cvpipeline/internal/controlplane"
	"github.com/technosupport/cvpipeline/internal/frame"
	"github.com/technosupport/cvpipeline/internal/inference"
	"github.com/technosupport/cvpipeline/internal/pipeline"
	"github.com/technosupport/cvpipeline/internal/registry"
	"github.com/technosupport/cvpipeline/internal/scheduler"
	"github.com/technosupport/cvpipeline/internal/source"
	"github.com/technosupport/cvpipeline/internal/telemetry"
	"github.com/technosupport/cvpipeline/internal/videowriter"
)

func getString(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

func getFloat(cfg map[string]any, key string, def float64) float64 {
	if v, ok := cfg[key].(float64); ok {
		return v
	}
	return def
}

func getFloat32(cfg map[string]any, key string, def float32) float32 {
	return float32(getFloat(cfg, key, float64(def)))
}

func getInt(cfg map[string]any, key string, def int) int {
	if v, ok := cfg[key].(float64); ok {
		return int(v)
	}
	return def
}

func getBool(cfg map[string]any, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}

func getUint32(cfg map[string]any, key string, def uint32) uint32 {
	if v, ok := cfg[key].(float64); ok {
		return uint32(v)
	}
	return def
}

func getStringSlice(cfg map[string]any, key string) []string {
	raw, ok := cfg[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getStringBoolMap(cfg map[string]any, key string) map[string]bool {
	raw, ok := cfg[key].([]any)
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out[s] = true
		}
	}
	return out
}

func getPoint(raw any) (frame.Point, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return frame.Point{}, false
	}
	x, xok := m["x"].(float64)
	y, yok := m["y"].(float64)
	if !xok || !yok {
		return frame.Point{}, false
	}
	return frame.Point{X: x, Y: y}, true
}

func getPointSlice(cfg map[string]any, key string) []frame.Point {
	raw, ok := cfg[key].([]any)
	if !ok {
		return nil
	}
	out := make([]frame.Point, 0, len(raw))
	for _, v := range raw {
		if p, ok := getPoint(v); ok {
			out = append(out, p)
		}
	}
	return out
}

// RegisterSources wires the source registry's two type tags. Both
// factories are validation-only: they decode and sanity-check the config
// but never dial the camera or open the file, since the real
// source.Source is opened by scheduler.Start from the same config at run
// time. This keeps Build's result safe to discard at attach time without
// leaking a decoder or a socket.
func RegisterSources(kind *registry.Kind[source.Source]) {
	validate := func(id string, cfg map[string]any) (source.Source, error) {
		url := getString(cfg, "url", "")
		if url == "" {
			return nil, fmt.Errorf("factories: source %q: url is required", id)
		}
		return &validatedSource{}, nil
	}
	kind.Register(registry.SourceLive, validate)
	kind.Register(registry.SourceFile, validate)
}

// validatedSource is the inert Source instance returned by the source
// registry's validation-only factories; nothing ever calls its methods
// since scheduler.Start opens a real source.Source itself.
type validatedSource struct{}

func (validatedSource) Open(ctx context.Context) error { return nil }
func (validatedSource) NextFrame(ctx context.Context) (*frame.Frame, error) {
	return nil, nil
}
func (validatedSource) Close() error { return nil }

// Components the chain builder needs at registration time.
type ChainDeps struct {
	Client inference.Client
}

// RegisterProcessors wires every processor type tag the chain builder
// accepts, decoding each stage's JSON config map into its typed Config
// struct by hand (no pack example reaches for a reflection-based decoder
// for this; manual field extraction matches the teacher's own config
// parsing idiom in cmd/server/main.go).
func RegisterProcessors(chain *registry.ChainBuilder, deps ChainDeps) {
	chain.RegisterDetector("yolov8", func(id string, cfg map[string]any) (pipeline.DetectorStage, error) {
		return pipeline.NewDetector(deps.Client, pipeline.DetectorConfig{
			ModelID:              getString(cfg, "model_id", id),
			InputSize:            getInt(cfg, "input_size", 640),
			ConfThreshold:        getFloat32(cfg, "conf_threshold", 0.5),
			NMSIoUThresh:         getFloat32(cfg, "nms_iou_threshold", 0.45),
			ClassNames:           getStringSlice(cfg, "class_names"),
			ClassAllow:           getStringBoolMap(cfg, "class_allow"),
			Draw:                 getBool(cfg, "draw", true),
			MaxColorCacheEntries: getInt(cfg, "max_color_cache_entries", 64),
		})
	})

	chain.RegisterTracker("bytetrack", func(id string, cfg map[string]any) (pipeline.TrackerStage, error) {
		def := pipeline.DefaultTrackerConfig()
		return pipeline.NewTracker(pipeline.TrackerConfig{
			HighThresh:                 getFloat32(cfg, "high_thresh", def.HighThresh),
			MatchThresh:                getFloat(cfg, "match_thresh", def.MatchThresh),
			TrackBuffer:                getUint32(cfg, "track_buffer", def.TrackBuffer),
			TrajectoryMaxLength:        getInt(cfg, "trajectory_max_length", def.TrajectoryMaxLength),
			MaxAllowedDistanceRatio:    getFloat(cfg, "max_allowed_distance_ratio", def.MaxAllowedDistanceRatio),
			TrajectoryCleanupThreshold: getUint32(cfg, "trajectory_cleanup_threshold", def.TrajectoryCleanupThreshold),
		}), nil
	})

	chain.RegisterLineZones("line_zones", func(id string, cfg map[string]any) (pipeline.ZoneStage, error) {
		raw, _ := cfg["zones"].([]any)
		zones := make([]*frame.LineZone, 0, len(raw))
		for _, z := range raw {
			zm, ok := z.(map[string]any)
			if !ok {
				continue
			}
			start, _ := getPoint(zm["start"])
			end, _ := getPoint(zm["end"])
			zones = append(zones, &frame.LineZone{
				ID:        getString(zm, "id", ""),
				StartNorm: start,
				EndNorm:   end,
				AnchorKey: getString(zm, "anchor", "bottom_center"),
			})
		}
		return pipeline.NewLineZoneManager(zones), nil
	})

	chain.RegisterPolyZones("polygon_zones", func(id string, cfg map[string]any) (pipeline.ZoneStage, error) {
		raw, _ := cfg["zones"].([]any)
		zones := make([]*frame.PolygonZone, 0, len(raw))
		for _, z := range raw {
			zm, ok := z.(map[string]any)
			if !ok {
				continue
			}
			vertices := getPointSlice(zm, "vertices")
			zone := frame.NewPolygonZone(getString(zm, "id", ""), vertices)
			zone.AnchorKey = getString(zm, "anchor", "bottom_center")
			zones = append(zones, zone)
		}
		return pipeline.NewPolygonZoneManager(zones), nil
	})

	chain.RegisterClassifier("classification", func(id string, cfg map[string]any) (pipeline.ClassifierStage, error) {
		return pipeline.NewClassifier(deps.Client, pipeline.ClassifierConfig{
			ModelID:       getString(cfg, "model_id", id),
			InputSize:     getInt(cfg, "input_size", 224),
			ConfThreshold: getFloat32(cfg, "conf_threshold", 0.5),
			Labels:        getStringSlice(cfg, "labels"),
			EventType:     frame.EventClassification,
		}), nil
	})

	chain.RegisterAgeGender("age_gender", func(id string, cfg map[string]any) (pipeline.ClassifierStage, error) {
		return pipeline.NewAgeGender(deps.Client, pipeline.AgeGenderConfig{
			ModelID:       getString(cfg, "model_id", id),
			InputSize:     getInt(cfg, "input_size", 224),
			ConfThreshold: getFloat32(cfg, "conf_threshold", 0.5),
		}), nil
	})
}

// SinkDeps bundles the resources the sink factories need that the config
// map alone can't carry (where to put telemetry databases, how to
// encode video).
type SinkDeps struct {
	TelemetryDataDir string
	NewEncoder       videowriter.NewEncoderFunc
	SinkFlags        telemetry.SinkFlags
}

// RegisterSinks wires the "telemetry" and "file" sink type tags.
// Both factories read "_camera_id" out of cfg — injected by
// controlplane.CameraManager.buildSinks, since a registry.Factory has no
// other way to learn which camera it's building for.
func RegisterSinks(kind *registry.Kind[scheduler.Sink], deps SinkDeps) {
	kind.Register(registry.SinkTelemetry, func(id string, cfg map[string]any) (scheduler.Sink, error) {
		cameraID, _ := cfg["_camera_id"].(string)
		path := deps.TelemetryDataDir + "/" + cameraID + ".db"
		flags := deps.SinkFlags
		flags.StoreDetectionEvents = getBool(cfg, "store_detection_events", flags.StoreDetectionEvents)
		flags.StoreTrackingEvents = getBool(cfg, "store_tracking_events", flags.StoreTrackingEvents)
		flags.StoreCountingEvents = getBool(cfg, "store_counting_events", flags.StoreCountingEvents)

		store, err := telemetry.Open(cameraID, path, flags)
		if err != nil {
			return nil, fmt.Errorf("factories: telemetry sink %q: %w", id, err)
		}
		return controlplane.NewTelemetrySink(store), nil
	})

	kind.Register(registry.SinkFile, func(id string, cfg map[string]any) (scheduler.Sink, error) {
		vwCfg := videowriter.Config{
			Path:               getString(cfg, "path", id+".mp4"),
			Width:              getInt(cfg, "width", 0),
			Height:             getInt(cfg, "height", 0),
			FPS:                getInt(cfg, "fps", 15),
			FourCC:             getString(cfg, "fourcc", "mp4v"),
			UseRawFrame:        getBool(cfg, "use_raw_frame", false),
			OverlayFrameNumber: getBool(cfg, "overlay_frame_number", true),
		}
		return controlplane.NewFileSink(videowriter.New(vwCfg, deps.NewEncoder)), nil
	})
}
