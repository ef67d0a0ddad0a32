// Package config loads the runtime's YAML configuration file, layers
// environment variable overrides on top, and watches the file for
// changes, generalizing the ad-hoc os.ReadFile+yaml.Unmarshal calls
// scattered through the teacher's cmd/server/main.go into one loader.
package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config is the root runtime configuration. Non-zero environment
// variables always win over the YAML file (spec §6 Environment: AI_SERVER_URL
// / SERVER_URL has "highest precedence").
type Config struct {
	Inference struct {
		ServerURL       string `yaml:"server_url"`
		UseSharedMemory bool   `yaml:"use_shared_memory"`
		TritonServerURL string `yaml:"triton_server_url"`
		TimeoutMS       int    `yaml:"timeout_ms"`
	} `yaml:"inference"`

	ConfigDB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"config_db"`

	Telemetry struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"telemetry"`

	HTTP struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"http"`

	License struct {
		Path          string `yaml:"path"`
		PublicKeyPath string `yaml:"public_key_path"`
	} `yaml:"license"`
}

// Load reads path (if present — a missing file is not an error, the
// zero-value Config plus env overrides still applies) and layers
// environment variables on top.
func Load(path string) (Config, error) {
	var cfg Config

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := firstNonEmpty(os.Getenv("AI_SERVER_URL"), os.Getenv("SERVER_URL")); v != "" {
		cfg.Inference.ServerURL = v
	}
	if v := os.Getenv("TRITON_SERVER_URL"); v != "" {
		cfg.Inference.TritonServerURL = v
	}
	if v := os.Getenv("USE_SHARED_MEMORY"); v != "" {
		cfg.Inference.UseSharedMemory = v == "1" || v == "true"
	}
	if v := os.Getenv("CONFIG_DB_DSN"); v != "" {
		cfg.ConfigDB.DSN = v
	}
	if v := os.Getenv("TELEMETRY_DATA_DIR"); v != "" {
		cfg.Telemetry.DataDir = v
	}
	if v := os.Getenv("HTTP_LISTEN_ADDR"); v != "" {
		cfg.HTTP.ListenAddr = v
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Notice is a configuration-change event. Subscribers are expected to
// consult Current() the next time they construct a component — the spec
// explicitly forbids mutating a config value a component is already
// using in place.
type Notice struct {
	Config Config
}

// Store holds the current configuration and fans out change notices to
// subscribers. It never mutates a Config value handed out by Current();
// a reload always swaps in a fresh value.
type Store struct {
	mu   sync.RWMutex
	cur  Config
	subs []chan Notice
}

// NewStore seeds a Store with an already-loaded configuration.
func NewStore(initial Config) *Store {
	return &Store{cur: initial}
}

// Current returns the configuration in effect right now.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Subscribe returns a channel that receives a Notice on every Set call.
// The channel is buffered by one slot so a slow subscriber drops stale
// notices rather than blocking the reload path — only the latest value
// ever matters, since Current() always has it.
func (s *Store) Subscribe() <-chan Notice {
	ch := make(chan Notice, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Set replaces the current configuration and notifies subscribers.
func (s *Store) Set(cfg Config) {
	s.mu.Lock()
	s.cur = cfg
	subs := s.subs
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- Notice{Config: cfg}:
		default:
			// Drain the stale notice and push the fresh one so the
			// subscriber never blocks on a notice it'll immediately
			// supersede.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- Notice{Config: cfg}:
			default:
			}
		}
	}
}
