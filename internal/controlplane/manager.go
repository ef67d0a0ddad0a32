package controlplane

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/technosupport/cvpipeline/internal/registry"
	"github.com/technosupport/cvpipeline/internal/scheduler"
	"github.com/technosupport/cvpipeline/internal/source"
	"github.com/technosupport/cvpipeline/internal/store/configdb"
	"github.com/technosupport/cvpipeline/internal/telemetry"
	"github.com/technosupport/cvpipeline/internal/videowriter"
)

// ErrNotFound is returned for operations against an unknown camera ID.
var ErrNotFound = fmt.Errorf("controlplane: camera not found")

// ErrNotEntitled surfaces a registry entitlement rejection; the HTTP
// layer maps it to 401 per spec §6 ("401 no valid license").
type ErrNotEntitled struct{ Err error }

func (e *ErrNotEntitled) Error() string { return e.Err.Error() }
func (e *ErrNotEntitled) Unwrap() error { return e.Err }

// CameraSummary is the list_cameras response shape.
type CameraSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Running         bool   `json:"running"`
	ComponentCounts struct {
		Source     int `json:"source"`
		Processors int `json:"processors"`
		Sinks      int `json:"sinks"`
	} `json:"component_counts"`
}

// cameraEntry is one camera's full in-memory state: its persisted specs,
// the live scheduler when running, and the telemetry/file-writer
// resources its sinks hold open.
type cameraEntry struct {
	mu sync.Mutex

	id      string
	name    string
	running bool

	sourceSpec *registry.ProcessorSpec // reused shape: {TypeTag, ID, Config}
	processors []registry.ProcessorSpec
	sinkSpecs  []registry.ProcessorSpec

	sched          *scheduler.Scheduler
	telemetryStore *telemetry.Store
	fileWriter     *videowriter.Writer
}

// CameraManager is the control plane's core: every operation in spec
// §6's table is a method here, independent of any HTTP framing.
type CameraManager struct {
	mu       sync.RWMutex
	cameras  map[string]*cameraEntry
	configDB *configdb.Store

	sourceKind *registry.Kind[source.Source]
	chain      *registry.ChainBuilder
	sinkKind   *registry.Kind[scheduler.Sink]

	telemetryDir       string
	inferenceTimeout   time.Duration
	newEncoder         videowriter.NewEncoderFunc
	sinkFlags          telemetry.SinkFlags
}

// ManagerConfig bundles the dependencies CameraManager needs to
// construct components; most fields mirror config.Config.
type ManagerConfig struct {
	ConfigDB         *configdb.Store
	SourceKind       *registry.Kind[source.Source]
	Chain            *registry.ChainBuilder
	SinkKind         *registry.Kind[scheduler.Sink]
	TelemetryDataDir string
	InferenceTimeout time.Duration
	NewEncoder       videowriter.NewEncoderFunc
	SinkFlags        telemetry.SinkFlags
}

// NewCameraManager constructs an empty manager; call LoadPersisted to
// rehydrate cameras from configdb on startup.
func NewCameraManager(cfg ManagerConfig) *CameraManager {
	return &CameraManager{
		cameras:          map[string]*cameraEntry{},
		configDB:         cfg.ConfigDB,
		sourceKind:       cfg.SourceKind,
		chain:            cfg.Chain,
		sinkKind:         cfg.SinkKind,
		telemetryDir:     cfg.TelemetryDataDir,
		inferenceTimeout: cfg.InferenceTimeout,
		newEncoder:       cfg.NewEncoder,
		sinkFlags:        cfg.SinkFlags,
	}
}

// ListCameras returns every known camera's summary.
func (m *CameraManager) ListCameras() []CameraSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]CameraSummary, 0, len(m.cameras))
	for _, e := range m.cameras {
		e.mu.Lock()
		s := CameraSummary{ID: e.id, Name: e.name, Running: e.running}
		if e.sourceSpec != nil {
			s.ComponentCounts.Source = 1
		}
		s.ComponentCounts.Processors = len(e.processors)
		s.ComponentCounts.Sinks = len(e.sinkSpecs)
		e.mu.Unlock()
		out = append(out, s)
	}
	return out
}

// CreateCamera registers a new camera entry with no attached components.
func (m *CameraManager) CreateCamera(ctx context.Context, id, name string) (CameraSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.cameras[id]; exists {
		return CameraSummary{}, fmt.Errorf("controlplane: camera %q already exists", id)
	}

	e := &cameraEntry{id: id, name: name}
	m.cameras[id] = e

	if err := m.persist(ctx, e); err != nil {
		delete(m.cameras, id)
		return CameraSummary{}, err
	}

	return CameraSummary{ID: id, Name: name}, nil
}

// UpdateCamera renames a camera and/or starts/stops it.
func (m *CameraManager) UpdateCamera(ctx context.Context, id string, name *string, running *bool) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if name != nil {
		e.name = *name
	}
	e.mu.Unlock()

	if running != nil {
		if *running {
			if err := m.start(ctx, e); err != nil {
				return err
			}
		} else {
			m.stop(e)
		}
	}

	m.mu.Lock()
	err = m.persist(ctx, e)
	m.mu.Unlock()
	return err
}

// DeleteCamera stops and removes a camera. Synchronous deletion is the
// only mode implemented here; async deletion (spec's task_id variant) is
// deferred to the HTTP layer, which can wrap this call in a goroutine and
// hand back a generated task id immediately.
func (m *CameraManager) DeleteCamera(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.cameras[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.cameras, id)
	m.mu.Unlock()

	m.stop(e)
	if e.telemetryStore != nil {
		e.telemetryStore.Close()
	}
	if m.configDB != nil {
		if err := m.configDB.DeleteCameraConfig(ctx, id); err != nil {
			return err
		}
	}
	return telemetry.DeleteDataForCamera(m.telemetryDBPath(id))
}

// AttachSource sets the camera's frame source. If the camera is running,
// it is stopped, reconfigured, and restarted — mirroring the original
// file sink's stop/reinit/start cycle on a config change.
func (m *CameraManager) AttachSource(ctx context.Context, cameraID, typeTag, id string, cfg map[string]any) error {
	e, err := m.get(cameraID)
	if err != nil {
		return err
	}
	if _, buildErr := m.sourceKind.Build(typeTag, id, cfg); buildErr != nil {
		return wrapEntitlement(buildErr)
	}

	spec := registry.ProcessorSpec{TypeTag: typeTag, ID: id, Config: cfg}
	e.mu.Lock()
	e.sourceSpec = &spec
	wasRunning := e.running
	e.mu.Unlock()

	return m.reconcile(ctx, e, wasRunning)
}

// AttachProcessor appends a processor to the camera's chain, subject to
// the registry's dependency ordering.
func (m *CameraManager) AttachProcessor(ctx context.Context, cameraID, typeTag, id string, cfg map[string]any) error {
	e, err := m.get(cameraID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	candidate := append(append([]registry.ProcessorSpec{}, e.processors...), registry.ProcessorSpec{TypeTag: typeTag, ID: id, Config: cfg})
	e.mu.Unlock()

	if _, buildErr := m.chain.Build(candidate); buildErr != nil {
		return wrapEntitlement(buildErr)
	}

	e.mu.Lock()
	e.processors = candidate
	wasRunning := e.running
	e.mu.Unlock()

	return m.reconcile(ctx, e, wasRunning)
}

// AttachSink adds a sink (file writer or telemetry store) to the camera.
func (m *CameraManager) AttachSink(ctx context.Context, cameraID, typeTag, id string, cfg map[string]any) error {
	e, err := m.get(cameraID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.sinkSpecs = append(e.sinkSpecs, registry.ProcessorSpec{TypeTag: typeTag, ID: id, Config: cfg})
	wasRunning := e.running
	e.mu.Unlock()

	return m.reconcile(ctx, e, wasRunning)
}

func (m *CameraManager) get(id string) (*cameraEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.cameras[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (m *CameraManager) telemetryDBPath(cameraID string) string {
	return filepath.Join(m.telemetryDir, cameraID+".db")
}

// wrapEntitlement marks a registry rejection as ErrNotEntitled only when
// it actually is one — dependency-ordering and unknown-type rejections
// stay plain errors so the HTTP layer maps them to 400, not 401.
func wrapEntitlement(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, registry.ErrNotEntitled) {
		return &ErrNotEntitled{Err: err}
	}
	return err
}
