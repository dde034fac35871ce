package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MODELGATE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("PORT", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("BODY_SIZE_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DefaultBodySizeLimit, cfg.Server.BodySizeLimit)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Endpoint)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Nil(t, cfg.Overrides)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	t.Setenv("MODELGATE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "pretty")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("BODY_SIZE_LIMIT", "1048576")
	t.Setenv("MODELGATE_MASTER_KEY", "sk-master")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "pretty", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, int64(1048576), cfg.Server.BodySizeLimit)
	assert.Equal(t, "sk-master", cfg.Server.MasterKey)
}

func TestLoad_InvalidBodySizeLimit(t *testing.T) {
	t.Setenv("MODELGATE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("BODY_SIZE_LIMIT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BODY_SIZE_LIMIT")
}

func TestLoad_OverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modelgate.yaml")
	content := `
providers:
  gemini:
    base_url: "https://proxy.internal/v1beta/openai"
    models:
      - gemini-2.0-flash
  openai:
    models:
      - gpt-4o
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("MODELGATE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Contains(t, cfg.Overrides, "gemini")
	assert.Equal(t, "https://proxy.internal/v1beta/openai", cfg.Overrides["gemini"].BaseURL)
	assert.Equal(t, []string{"gemini-2.0-flash"}, cfg.Overrides["gemini"].Models)

	require.Contains(t, cfg.Overrides, "openai")
	assert.Empty(t, cfg.Overrides["openai"].BaseURL)
	assert.Equal(t, []string{"gpt-4o"}, cfg.Overrides["openai"].Models)
}

func TestLoad_MalformedOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modelgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers: [not a map"), 0o644))
	t.Setenv("MODELGATE_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestCredentials_Lookup(t *testing.T) {
	t.Setenv("TEST_CREDENTIAL_KEY", "sk-value")

	var creds Credentials
	assert.Equal(t, "sk-value", creds.Lookup("TEST_CREDENTIAL_KEY"))
	assert.Empty(t, creds.Lookup("TEST_CREDENTIAL_ABSENT"))
}
