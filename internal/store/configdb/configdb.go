// Package configdb is the persisted configuration store (spec §6): a
// flat key-value table plus a per-camera JSON config blob table, backed
// by Postgres the same way the teacher's internal/data package is —
// schema managed out-of-band by cmd/migrator against db/migrations.
package configdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store wraps a *sql.DB scoped to the config/camera_config tables.
type Store struct {
	db *sql.DB
}

// Open connects to dsn (a postgres:// URL) and verifies connectivity.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("configdb: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("configdb: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Get reads a single key-value pair. ok is false if the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = $1`, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("configdb: get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts a key-value pair.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("configdb: set %s: %w", key, err)
	}
	return nil
}

// CameraConfig is the per-camera configuration blob: which source,
// processors, and sinks are attached and how they're configured.
type CameraConfig struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Running    bool              `json:"running"`
	Source     *ComponentConfig  `json:"source,omitempty"`
	Processors []ComponentConfig `json:"processors,omitempty"`
	Sinks      []ComponentConfig `json:"sinks,omitempty"`
}

// ComponentConfig is one attached component's (type_tag, id, config).
type ComponentConfig struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config,omitempty"`
}

// GetCameraConfig reads and decodes one camera's persisted configuration.
func (s *Store) GetCameraConfig(ctx context.Context, cameraID string) (CameraConfig, bool, error) {
	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT config FROM camera_config WHERE camera_id = $1`, cameraID)
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return CameraConfig{}, false, nil
		}
		return CameraConfig{}, false, fmt.Errorf("configdb: get camera config %s: %w", cameraID, err)
	}

	var cfg CameraConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return CameraConfig{}, false, fmt.Errorf("configdb: decode camera config %s: %w", cameraID, err)
	}
	return cfg, true, nil
}

// PutCameraConfig upserts one camera's configuration blob.
func (s *Store) PutCameraConfig(ctx context.Context, cfg CameraConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("configdb: encode camera config %s: %w", cfg.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO camera_config (camera_id, config, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (camera_id) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		cfg.ID, raw, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("configdb: put camera config %s: %w", cfg.ID, err)
	}
	return nil
}

// ListCameraConfigs returns every persisted camera configuration, used to
// rehydrate the running fleet on startup.
func (s *Store) ListCameraConfigs(ctx context.Context) ([]CameraConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT config FROM camera_config`)
	if err != nil {
		return nil, fmt.Errorf("configdb: list camera configs: %w", err)
	}
	defer rows.Close()

	var out []CameraConfig
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var cfg CameraConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("configdb: decode camera config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// DeleteCameraConfig removes a camera's persisted configuration.
// Idempotent: deleting an absent camera_id is not an error.
func (s *Store) DeleteCameraConfig(ctx context.Context, cameraID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM camera_config WHERE camera_id = $1`, cameraID)
	if err != nil {
		return fmt.Errorf("configdb: delete camera config %s: %w", cameraID, err)
	}
	return nil
}
