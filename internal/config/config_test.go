package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "applogger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigCreatesUserFileFromDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "applogger.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultYAML(), written)

	assert.Equal(t, "logs/[[year]]-[[month]]-[[day]]_[[machine]].log", cfg.Path)
	assert.Equal(t, 120*time.Second, cfg.IdleTime)
	assert.Equal(t, 2*time.Second, cfg.CheckInterval)
	assert.Equal(t, 20, cfg.MaxQueueEntries)
	assert.Equal(t, 60*time.Second, cfg.MaxQueueTime)
	assert.Equal(t, 10000, cfg.MaxPendingEntries)
	assert.True(t, cfg.History.Enabled)
	assert.False(t, cfg.Control.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigUserOverridesKeyByKey(t *testing.T) {
	path := writeFile(t, `
path: "D:\\logs\\[[machine]]\\[[year]].log"
idle_time: 0.5
max_queue_entries: 5
control:
  enabled: true
log:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, `D:\logs\[[machine]]\[[year]].log`, cfg.Path)
	assert.Equal(t, 500*time.Millisecond, cfg.IdleTime)
	assert.Equal(t, 5, cfg.MaxQueueEntries)
	assert.True(t, cfg.Control.Enabled)
	assert.Equal(t, 17345, cfg.Control.Port, "port falls back to the default")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format, "sibling key falls back to the default")
	assert.Equal(t, 2*time.Second, cfg.CheckInterval)
}

func TestLoadConfigExplicitZeroValuesWin(t *testing.T) {
	path := writeFile(t, `
max_pending_entries: 0
history:
  enabled: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.MaxPendingEntries)
	assert.False(t, cfg.History.Enabled)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("APPLOG_LOG_LEVEL", "error")
	t.Setenv("APPLOG_PATH", "/tmp/[[day]].log")

	cfg, err := LoadConfig(writeFile(t, "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "/tmp/[[day]].log", cfg.Path)
}

func TestLoadConfigRejectsBadFiles(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "idle_time: [1, 2"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "check_interval: 0\n"))
	assert.ErrorContains(t, err, "check_interval")
}

func TestMergeReportsMissingKeys(t *testing.T) {
	path := "x.log"
	user := &fileConfig{Path: &path}

	_, err := merge(user, &fileConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigMissing)

	var missing *MissingKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "idle_time", missing.Key)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Path:              "logs/[[day]].log",
			IdleTime:          time.Minute,
			CheckInterval:     time.Second,
			MaxQueueEntries:   20,
			MaxQueueTime:      time.Minute,
			MaxPendingEntries: 100,
			StagingFile:       "staging.log",
			History:           HistoryConfig{Enabled: true, Path: "h.db"},
			Control:           ControlConfig{Enabled: true, Port: 8080},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty path", func(c *Config) { c.Path = " " }, "path"},
		{"zero idle", func(c *Config) { c.IdleTime = 0 }, "idle_time"},
		{"negative interval", func(c *Config) { c.CheckInterval = -time.Second }, "check_interval"},
		{"negative entries", func(c *Config) { c.MaxQueueEntries = -1 }, "max_queue_entries"},
		{"zero queue time", func(c *Config) { c.MaxQueueTime = 0 }, "max_queue_time"},
		{"bound below flush size", func(c *Config) { c.MaxPendingEntries = 20 }, "max_pending_entries"},
		{"no staging file", func(c *Config) { c.StagingFile = "" }, "staging_file"},
		{"history without path", func(c *Config) { c.History.Path = "" }, "history.path"},
		{"port out of range", func(c *Config) { c.Control.Port = 70000 }, "control.port"},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.field)
		})
	}

	disabled := valid()
	disabled.MaxPendingEntries = 0
	disabled.Control = ControlConfig{Enabled: false, Port: 0}
	assert.NoError(t, disabled.Validate())
}
