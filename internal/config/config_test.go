package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Inference.ServerURL)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
inference:
  server_url: "http://infer:9000"
  use_shared_memory: true
http:
  listen_addr: ":8080"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://infer:9000", cfg.Inference.ServerURL)
	assert.True(t, cfg.Inference.UseSharedMemory)
	assert.Equal(t, ":8080", cfg.HTTP.ListenAddr)
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`inference:
  server_url: "http://from-yaml:9000"
`), 0o644))

	t.Setenv("AI_SERVER_URL", "http://from-env:9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:9000", cfg.Inference.ServerURL)
}

func TestStoreSetNotifiesSubscribers(t *testing.T) {
	store := NewStore(Config{})
	ch := store.Subscribe()

	updated := Config{}
	updated.Inference.ServerURL = "http://new:9000"
	store.Set(updated)

	notice := <-ch
	assert.Equal(t, "http://new:9000", notice.Config.Inference.ServerURL)
	assert.Equal(t, "http://new:9000", store.Current().Inference.ServerURL)
}

func TestStoreSetDropsStaleNoticeRatherThanBlocking(t *testing.T) {
	store := NewStore(Config{})
	_ = store.Subscribe() // never drained

	for i := 0; i < 5; i++ {
		store.Set(Config{})
	}
	// Set must never block even though nothing reads the channel.
}
