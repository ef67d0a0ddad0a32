package registry

import "github.com/technosupport/cvpipeline/internal/scheduler"

// Sink type tags.
const (
	SinkFile      = "file"
	SinkTelemetry = "telemetry"
)

// NewSinkRegistry builds a Kind registry over scheduler.Sink
// implementations (the File Video Writer and the Telemetry Store).
func NewSinkRegistry(entitlements Entitlements) *Kind[scheduler.Sink] {
	return NewKind[scheduler.Sink]("sink", entitlements)
}
