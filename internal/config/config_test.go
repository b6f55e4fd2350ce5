package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Limits.CacheTTL())
	assert.Equal(t, 2*time.Second, cfg.Limits.MinBackoff())
	assert.Equal(t, 30*time.Second, cfg.Limits.MaxBackoff())
	assert.Equal(t, 500*time.Millisecond, cfg.Limits.RateLimitInterval())
	assert.Equal(t, 30*time.Second, cfg.Limits.MaxReconnectDelay())
	assert.Equal(t, 2000, cfg.Limits.MaxBuffer)
	assert.Nil(t, cfg.NATS)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9000, "allowedOrigins": ["https://example.com"]},
		"binance": {"baseUrl": "http://localhost:1234", "wsBaseUrl": "ws://localhost:1235"},
		"nats": {"uris": "nats://localhost:4222", "stream": "md", "subject": "md"}
	}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "http://localhost:1234", cfg.Binance.BaseURL)
	// Untouched sections keep their defaults.
	assert.Equal(t, int64(2000), cfg.Limits.MinBackoffMs)
	require.NotNil(t, cfg.NATS)
	assert.Equal(t, []string{"nats://localhost:4222"}, cfg.NATS.GetNATSURIs())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Binance.BaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Limits.MaxBackoffMs = 100
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.NATS = &NATSConfig{URIs: "http://wrong-scheme:4222", Stream: "md", Subject: "md"}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.NATS = &NATSConfig{URIs: "nats://localhost:4222", Stream: "", Subject: "md"}
	assert.Error(t, cfg.Validate())
}
