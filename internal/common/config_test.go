package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "rustls-bench", cfg.BotLogin)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_MissingFileSkipped(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)
}

func TestLoadConfig_MergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "github_repo_owner = \"rustls\"\ngithub_repo_name = \"rustls\"\n\n[server]\nport = 9090\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "rustls", cfg.GitHubRepoOwner)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CIBENCH_BOT_LOGIN", "custom-bot")
	t.Setenv("CIBENCH_PORT", "9999")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "custom-bot", cfg.BotLogin)
	assert.Equal(t, 9999, cfg.Server.Port)
}
