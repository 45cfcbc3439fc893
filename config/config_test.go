package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: sqlite\n  dsn: \"file::memory:\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, time.Hour, cfg.Push.TokenLifetime)
	assert.True(t, *cfg.Push.DefaultEnabled)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, []string{"day", "swing", "night"}, cfg.Handoff.ShiftTypes)
	assert.Equal(t, 5, cfg.Handoff.MaxVoiceNotes)
	assert.Equal(t, 60, cfg.Handoff.MaxVoiceNoteSeconds)
	assert.Equal(t, 48*time.Hour, cfg.Handoff.ExpireAfter)
	assert.Equal(t, 5*time.Minute, cfg.Handoff.SweepInterval)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
push:
  ttl: 120
  default_enabled: false
handoff:
  shift_types: [early, late]
  expire_after_hours: 12
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Push.TTL)
	assert.False(t, *cfg.Push.DefaultEnabled)
	assert.Equal(t, []string{"early", "late"}, cfg.Handoff.ShiftTypes)
	assert.Equal(t, 12*time.Hour, cfg.Handoff.ExpireAfter)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: from-file\n")
	t.Setenv("DATABASE_DSN", "from-env")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.DSN)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
