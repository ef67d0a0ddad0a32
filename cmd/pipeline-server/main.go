// Command pipeline-server is the multi-camera vision pipeline runtime's
// entry point: it loads configuration, wires the component registry with
// every concrete source/processor/sink implementation, and serves the
// control plane's HTTP API until interrupted.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/technosupport/cvpipeline/internal/config"
	"github.com/technosupport/cvpipeline/internal/controlplane"
	"github.com/technosupport/cvpipeline/internal/factories"
	"github.com/technosupport/cvpipeline/internal/inference"
	"github.com/technosupport/cvpipeline/internal/license"
	"github.com/technosupport/cvpipeline/internal/platform/paths"
	"github.com/technosupport/cvpipeline/internal/registry"
	"github.com/technosupport/cvpipeline/internal/scheduler"
	"github.com/technosupport/cvpipeline/internal/source"
	"github.com/technosupport/cvpipeline/internal/store/configdb"
	"github.com/technosupport/cvpipeline/internal/telemetry"
	"github.com/technosupport/cvpipeline/internal/videowriter"
)

func main() {
	if err := paths.EnsureDirs(); err != nil {
		log.Fatalf("platform init error: %v", err)
	}

	cfgPath := os.Getenv("PIPELINE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/default.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	cfgStore := config.NewStore(cfg)

	if watcher, err := config.NewWatcher(cfgPath, cfgStore); err != nil {
		log.Printf("config watcher disabled: %v", err)
	} else {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Printf("config watcher stopped: %v", err)
			}
		}()
		defer watcher.Close()
	}

	// License entitlement.
	var entitlements registry.Entitlements
	switch parser, parseErr := licenseParser(cfg.License.PublicKeyPath); {
	case cfg.License.PublicKeyPath == "":
		log.Printf("no license configured — running with baseline entitlements only")
		entitlements = allowBaseline{}
	case parseErr != nil:
		log.Printf("warning: license public key load failed: %v — running with baseline entitlements only", parseErr)
		entitlements = allowBaseline{}
	default:
		mgr := license.NewManager(cfg.License.Path, parser)
		mgr.StartWatcher(context.Background())
		license.NewScheduler(mgr).Start(context.Background())
		entitlements = registry.NewLicenseEntitlements(mgr)
	}

	// Inference client, shared across every detector/classifier/age-gender
	// stage (spec §4.2: one uniform client, many model IDs).
	inferCfg := inference.Config{
		Transport:       inference.TransportHTTPJSON,
		Endpoint:        cfg.Inference.ServerURL,
		Timeout:         time.Duration(cfg.Inference.TimeoutMS) * time.Millisecond,
		UseSharedMemory: cfg.Inference.UseSharedMemory,
	}
	if cfg.Inference.TritonServerURL != "" {
		inferCfg.Transport = inference.TransportGRPCTensor
		inferCfg.Endpoint = cfg.Inference.TritonServerURL
	}
	inferClient, err := inference.New(inferCfg)
	if err != nil {
		log.Fatalf("inference client init error: %v", err)
	}
	defer inferClient.Close()

	// Component registries.
	sourceKind := registry.NewKind[source.Source]("source", entitlements)
	factories.RegisterSources(sourceKind)

	chainBuilder := registry.NewChainBuilder(entitlements)
	factories.RegisterProcessors(chainBuilder, factories.ChainDeps{Client: inferClient})

	sinkKind := registry.NewKind[scheduler.Sink]("sink", entitlements)
	factories.RegisterSinks(sinkKind, factories.SinkDeps{
		TelemetryDataDir: cfg.Telemetry.DataDir,
		NewEncoder:       videowriter.NewFFmpegEncoder,
		SinkFlags: telemetry.SinkFlags{
			StoreDetectionEvents: true,
			StoreTrackingEvents:  true,
			StoreCountingEvents:  true,
		},
	})

	var configDB *configdb.Store
	if cfg.ConfigDB.DSN != "" {
		configDB, err = configdb.Open(cfg.ConfigDB.DSN)
		if err != nil {
			log.Fatalf("config db open error: %v", err)
		}
		defer configDB.Close()
	}

	mgr := controlplane.NewCameraManager(controlplane.ManagerConfig{
		ConfigDB:         configDB,
		SourceKind:       sourceKind,
		Chain:            chainBuilder,
		SinkKind:         sinkKind,
		TelemetryDataDir: cfg.Telemetry.DataDir,
		InferenceTimeout: time.Duration(cfg.Inference.TimeoutMS) * time.Millisecond,
		NewEncoder:       videowriter.NewFFmpegEncoder,
		SinkFlags: telemetry.SinkFlags{
			StoreDetectionEvents: true,
			StoreTrackingEvents:  true,
			StoreCountingEvents:  true,
		},
	})

	listenAddr := cfg.HTTP.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8090"
	}

	server := &http.Server{
		Addr:    listenAddr,
		Handler: controlplane.NewRouter(mgr),
	}

	go func() {
		log.Printf("pipeline-server listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}

func licenseParser(publicKeyPath string) (*license.Parser, error) {
	if publicKeyPath == "" {
		return nil, nil
	}
	return license.NewParser(publicKeyPath)
}

// allowBaseline is the Entitlements fallback when no license is
// configured at all: baseline components (detector/tracker/source/sink)
// work, every premium processor tag is denied. Distinct from a
// misconfigured-or-expired license (which LicenseEntitlements denies
// everything for) because an operator who never set up licensing at all
// should still get the free tier, not a fully locked pipeline.
type allowBaseline struct{}

func (allowBaseline) Allows(componentKind, typeTag string) bool {
	if componentKind != "processor" {
		return true
	}
	switch typeTag {
	case registry.ProcessorDetector, registry.ProcessorTracker:
		return true
	default:
		return false
	}
}
