package controlplane

import (
	"context"
	"fmt"

	"github.com/technosupport/cvpipeline/internal/registry"
	"github.com/technosupport/cvpipeline/internal/scheduler"
	"github.com/technosupport/cvpipeline/internal/source"
	"github.com/technosupport/cvpipeline/internal/store/configdb"
	"github.com/technosupport/cvpipeline/internal/telemetry"
	"github.com/technosupport/cvpipeline/internal/videowriter"
)

// reconcile rebuilds a camera's chain/sinks/scheduler from its current
// specs. If the camera was running, it is restarted afterward —
// mirroring the original file sink's stop/reinit/start cycle on a
// config change (file_sink.cpp's updateConfig).
func (m *CameraManager) reconcile(ctx context.Context, e *cameraEntry, restart bool) error {
	m.stop(e)

	m.mu.Lock()
	err := m.persist(ctx, e)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if restart {
		return m.start(ctx, e)
	}
	return nil
}

// start builds the chain, sinks, and scheduler from the camera's current
// specs and starts the worker. No-op if already running.
func (m *CameraManager) start(ctx context.Context, e *cameraEntry) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	sourceSpec := e.sourceSpec
	processors := append([]registry.ProcessorSpec{}, e.processors...)
	sinkSpecs := append([]registry.ProcessorSpec{}, e.sinkSpecs...)
	cameraID := e.id
	e.mu.Unlock()

	if sourceSpec == nil {
		return fmt.Errorf("controlplane: camera %q has no source attached", cameraID)
	}

	// Entitlement/type-tag validity was already checked at AttachSource
	// time; starting the actual decode happens below through
	// scheduler.Start, which calls source.Open directly so there is only
	// ever one live source.Source per running camera.
	chain, err := m.chain.Build(processors)
	if err != nil {
		return wrapEntitlement(err)
	}

	sinks, telemetryStore, fileWriter, err := m.buildSinks(cameraID, sinkSpecs)
	if err != nil {
		return err
	}

	srcCfg, err := decodeSourceConfig(sourceSpec.Config)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Config{
		CameraID:         cameraID,
		Source:           srcCfg,
		InferenceTimeout: m.inferenceTimeout,
	}, chain, sinks)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("controlplane: start camera %q: %w", cameraID, err)
	}

	e.mu.Lock()
	e.sched = sched
	e.telemetryStore = telemetryStore
	e.fileWriter = fileWriter
	e.running = true
	e.mu.Unlock()

	return nil
}

// stop tears down the running scheduler and releases its sinks. Safe to
// call on an already-stopped camera.
func (m *CameraManager) stop(e *cameraEntry) {
	e.mu.Lock()
	sched := e.sched
	writer := e.fileWriter
	e.sched = nil
	e.fileWriter = nil
	e.running = false
	e.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	if writer != nil {
		writer.Close()
	}
	// telemetryStore is kept open across restarts so historical queries
	// (analytics/time_series/dwell_time) keep working while the camera
	// is stopped; it only closes on DeleteCamera.
}

func (m *CameraManager) buildSinks(cameraID string, specs []registry.ProcessorSpec) ([]scheduler.Sink, *telemetry.Store, *videowriter.Writer, error) {
	var sinks []scheduler.Sink
	var telemetryStore *telemetry.Store
	var fileWriter *videowriter.Writer

	for _, spec := range specs {
		cfg := spec.Config
		if cfg == nil {
			cfg = map[string]any{}
		} else {
			cloned := make(map[string]any, len(cfg)+1)
			for k, v := range cfg {
				cloned[k] = v
			}
			cfg = cloned
		}
		cfg["_camera_id"] = cameraID

		built, err := m.sinkKind.Build(spec.TypeTag, spec.ID, cfg)
		if err != nil {
			return nil, nil, nil, wrapEntitlement(err)
		}
		sinks = append(sinks, built)

		switch s := built.(type) {
		case *TelemetrySink:
			telemetryStore = s.store
		case *FileSink:
			fileWriter = s.writer
		}
	}

	return sinks, telemetryStore, fileWriter, nil
}

func decodeSourceConfig(cfg map[string]any) (source.Config, error) {
	var out source.Config
	url, _ := cfg["url"].(string)
	out.URL = url
	if w, ok := cfg["width"].(float64); ok {
		out.Width = int(w)
	}
	if h, ok := cfg["height"].(float64); ok {
		out.Height = int(h)
	}
	if fps, ok := cfg["target_fps"].(float64); ok {
		out.TargetFPS = fps
	}
	if f, ok := cfg["format"].(string); ok {
		out.Format = source.Format(f)
	}
	if hw, ok := cfg["hw_accel"].(string); ok {
		out.HWAccel = source.HWAccel(hw)
	}
	if t, ok := cfg["transport"].(string); ok {
		out.Transport = source.Transport(t)
	}
	if out.URL == "" {
		return out, fmt.Errorf("controlplane: source config missing url")
	}
	return out, nil
}

// persist writes the camera's current specs to configdb. Caller must
// hold m.mu.
func (m *CameraManager) persist(ctx context.Context, e *cameraEntry) error {
	if m.configDB == nil {
		return nil
	}

	e.mu.Lock()
	cfg := configdb.CameraConfig{ID: e.id, Name: e.name, Running: e.running}
	if e.sourceSpec != nil {
		cfg.Source = &configdb.ComponentConfig{Type: e.sourceSpec.TypeTag, ID: e.sourceSpec.ID, Config: e.sourceSpec.Config}
	}
	for _, p := range e.processors {
		cfg.Processors = append(cfg.Processors, configdb.ComponentConfig{Type: p.TypeTag, ID: p.ID, Config: p.Config})
	}
	for _, s := range e.sinkSpecs {
		cfg.Sinks = append(cfg.Sinks, configdb.ComponentConfig{Type: s.TypeTag, ID: s.ID, Config: s.Config})
	}
	e.mu.Unlock()

	return m.configDB.PutCameraConfig(ctx, cfg)
}
