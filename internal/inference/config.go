package inference

import (
	"fmt"
	"time"

	"github.com/technosupport/cvpipeline/internal/inference/transport/grpctensor"
	"github.com/technosupport/cvpipeline/internal/inference/transport/httpjson"
	"github.com/technosupport/cvpipeline/internal/inference/transport/shm"
)

// TransportKind selects one of the three uniform-contract transports.
type TransportKind string

const (
	TransportHTTPJSON   TransportKind = "http_json"
	TransportGRPCTensor TransportKind = "grpc_tensor"
	TransportSharedMem  TransportKind = "shared_memory"
)

// Config selects and configures a transport for one model server.
type Config struct {
	Transport TransportKind
	Endpoint  string // base URL for http_json, dial address for the two gRPC transports
	Timeout   time.Duration

	// UseSharedMemory mirrors the USE_SHARED_MEMORY env var: when set, it
	// upgrades a grpc_tensor transport selection to shared_memory without
	// requiring every camera's component config to be rewritten.
	UseSharedMemory bool
}

// New builds the transport Config selects, applying the shared-memory
// preference override.
func New(cfg Config) (Client, error) {
	kind := cfg.Transport
	if kind == TransportGRPCTensor && cfg.UseSharedMemory {
		kind = TransportSharedMem
	}

	var client Client
	var err error
	switch kind {
	case TransportHTTPJSON:
		client = httpjson.New(cfg.Endpoint, cfg.Timeout)
	case TransportGRPCTensor:
		client, err = grpctensor.New(cfg.Endpoint)
	case TransportSharedMem:
		client, err = shm.New(cfg.Endpoint)
	default:
		return nil, fmt.Errorf("inference: unknown transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}
	return withMetrics(client), nil
}
