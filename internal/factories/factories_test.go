package factories

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/cvpipeline/internal/inference"
	"github.com/technosupport/cvpipeline/internal/registry"
	"github.com/technosupport/cvpipeline/internal/scheduler"
	"github.com/technosupport/cvpipeline/internal/source"
	"github.com/technosupport/cvpipeline/internal/telemetry"
	"github.com/technosupport/cvpipeline/internal/videowriter"
)

// allowAll is a permissive registry.Entitlements used everywhere in this
// file since license gating is registry.Kind's concern, not factories'.
type allowAll struct{}

func (allowAll) Allows(string, string) bool { return true }

// fakeClient is a no-op inference.Client: every processor factory needs
// one to construct, but nothing in this file calls Infer.
type fakeClient struct{}

func (fakeClient) Infer(ctx context.Context, modelID string, img inference.Tensor, params inference.RequestParams) (*inference.Result, error) {
	return &inference.Result{ModelID: modelID}, nil
}
func (fakeClient) Close() error { return nil }

// noopEncoder satisfies videowriter.Encoder without touching a real
// container/codec, matching the teacher's own writer_test.go fake.
type noopEncoder struct{}

func (*noopEncoder) Open(path string, width, height, fps int, fourCC string) error { return nil }
func (*noopEncoder) WriteFrame(pix []byte, width, height, channels int) error      { return nil }
func (*noopEncoder) Close() error                                                 { return nil }

func TestRegisterSourcesValidatesURL(t *testing.T) {
	kind := registry.NewKind[source.Source]("source", allowAll{})
	RegisterSources(kind)

	assert.ElementsMatch(t, []string{registry.SourceLive, registry.SourceFile}, kind.TypeTags())

	_, err := kind.Build(registry.SourceLive, "cam-1", map[string]any{"url": "rtsp://example/cam"})
	assert.NoError(t, err)

	_, err = kind.Build(registry.SourceFile, "cam-1", map[string]any{})
	assert.ErrorContains(t, err, "url is required")
}

func TestRegisterSourcesUnknownTag(t *testing.T) {
	kind := registry.NewKind[source.Source]("source", allowAll{})
	RegisterSources(kind)

	_, err := kind.Build("rtmp", "cam-1", map[string]any{"url": "x"})
	assert.ErrorIs(t, err, registry.ErrUnknownType)
}

func TestRegisterProcessorsEachStageBuilds(t *testing.T) {
	builder := registry.NewChainBuilder(allowAll{})
	RegisterProcessors(builder, ChainDeps{Client: fakeClient{}})

	chain, err := builder.Build([]registry.ProcessorSpec{
		{TypeTag: registry.ProcessorDetector, ID: "det-1", Config: map[string]any{
			"model_id":       "yolov8n",
			"input_size":     float64(640),
			"conf_threshold": float64(0.4),
			"class_names":    []any{"person", "car"},
		}},
		{TypeTag: registry.ProcessorTracker, ID: "trk-1", Config: map[string]any{}},
		{TypeTag: registry.ProcessorLineZones, ID: "lz-1", Config: map[string]any{
			"zones": []any{
				map[string]any{
					"id":    "gate",
					"start": map[string]any{"x": 0.1, "y": 0.5},
					"end":   map[string]any{"x": 0.9, "y": 0.5},
				},
			},
		}},
		{TypeTag: registry.ProcessorPolyZones, ID: "pz-1", Config: map[string]any{
			"zones": []any{
				map[string]any{
					"id": "lobby",
					"vertices": []any{
						map[string]any{"x": 0.0, "y": 0.0},
						map[string]any{"x": 1.0, "y": 0.0},
						map[string]any{"x": 1.0, "y": 1.0},
					},
				},
			},
		}},
		{TypeTag: registry.ProcessorClassifier, ID: "cls-1", Config: map[string]any{}},
		{TypeTag: registry.ProcessorAgeGender, ID: "ag-1", Config: map[string]any{}},
	})

	require.NoError(t, err)
	assert.NotNil(t, chain.Detector)
	assert.NotNil(t, chain.Tracker)
	assert.NotNil(t, chain.LineZones)
	assert.NotNil(t, chain.PolyZones)
	assert.NotNil(t, chain.Classifier)
	assert.NotNil(t, chain.AgeGender)
}

func TestRegisterProcessorsEnforcesDependencyOrder(t *testing.T) {
	builder := registry.NewChainBuilder(allowAll{})
	RegisterProcessors(builder, ChainDeps{Client: fakeClient{}})

	_, err := builder.Build([]registry.ProcessorSpec{
		{TypeTag: registry.ProcessorTracker, ID: "trk-1", Config: map[string]any{}},
	})
	assert.ErrorIs(t, err, registry.ErrMissingDependency)

	_, err = builder.Build([]registry.ProcessorSpec{
		{TypeTag: registry.ProcessorLineZones, ID: "lz-1", Config: map[string]any{}},
	})
	assert.ErrorIs(t, err, registry.ErrMissingDependency)
}

func TestRegisterSinksFileConstructsWriter(t *testing.T) {
	kind := registry.NewKind[scheduler.Sink]("sink", allowAll{})
	RegisterSinks(kind, SinkDeps{
		TelemetryDataDir: t.TempDir(),
		NewEncoder:       func() videowriter.Encoder { return &noopEncoder{} },
	})

	path := filepath.Join(t.TempDir(), "cam-1.mp4")
	sink, err := kind.Build(registry.SinkFile, "cam-1", map[string]any{
		"path": path,
		"fps":  float64(15),
	})
	require.NoError(t, err)
	assert.NotNil(t, sink)
}

func TestRegisterSinksTelemetryOpensAgainstTempDir(t *testing.T) {
	dir := t.TempDir()
	kind := registry.NewKind[scheduler.Sink]("sink", allowAll{})
	RegisterSinks(kind, SinkDeps{
		TelemetryDataDir: dir,
		NewEncoder:       func() videowriter.Encoder { return &noopEncoder{} },
		SinkFlags:        telemetry.SinkFlags{StoreDetectionEvents: true},
	})

	sink, err := kind.Build(registry.SinkTelemetry, "telemetry-1", map[string]any{
		"_camera_id":             "cam-42",
		"store_detection_events": true,
	})
	require.NoError(t, err)
	assert.NotNil(t, sink)

	_, statErr := os.Stat(filepath.Join(dir, "cam-42.db"))
	assert.NoError(t, statErr)
}

func TestGetHelpersFallBackOnMissingOrMalformedKeys(t *testing.T) {
	cfg := map[string]any{
		"s":      "hello",
		"f":      float64(1.5),
		"i":      float64(7),
		"b":      true,
		"ss":     []any{"a", "b", 1},
		"sbm":    []any{"x", "y", 2},
		"pt":     map[string]any{"x": 0.2, "y": 0.8},
		"bad_pt": map[string]any{"x": "nope"},
		"pts": []any{
			map[string]any{"x": 0.0, "y": 0.0},
			map[string]any{"x": 1.0},
		},
	}

	assert.Equal(t, "hello", getString(cfg, "s", "def"))
	assert.Equal(t, "def", getString(cfg, "missing", "def"))
	assert.Equal(t, "def", getString(cfg, "i", "def"))

	assert.Equal(t, 1.5, getFloat(cfg, "f", 9))
	assert.Equal(t, float64(9), getFloat(cfg, "missing", 9))

	assert.Equal(t, float32(1.5), getFloat32(cfg, "f", 9))

	assert.Equal(t, 7, getInt(cfg, "i", -1))
	assert.Equal(t, -1, getInt(cfg, "missing", -1))

	assert.Equal(t, true, getBool(cfg, "b", false))
	assert.Equal(t, false, getBool(cfg, "missing", false))

	assert.Equal(t, uint32(7), getUint32(cfg, "i", 0))

	assert.Equal(t, []string{"a", "b"}, getStringSlice(cfg, "ss"))
	assert.Nil(t, getStringSlice(cfg, "missing"))

	assert.Equal(t, map[string]bool{"x": true, "y": true}, getStringBoolMap(cfg, "sbm"))
	assert.Nil(t, getStringBoolMap(cfg, "missing"))

	p, ok := getPoint(cfg["pt"])
	require.True(t, ok)
	assert.Equal(t, 0.2, p.X)
	assert.Equal(t, 0.8, p.Y)

	_, ok = getPoint(cfg["bad_pt"])
	assert.False(t, ok)

	_, ok = getPoint("not a map")
	assert.False(t, ok)

	pts := getPointSlice(cfg, "pts")
	assert.Len(t, pts, 1)
	assert.Nil(t, getPointSlice(cfg, "missing"))
}
