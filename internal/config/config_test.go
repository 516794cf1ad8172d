package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plantbot/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 60*time.Second, cfg.Sensor.PollInterval)
	require.Equal(t, 10*time.Second, cfg.Sensor.Timeout)
	require.Equal(t, 18, cfg.Summary.Hour)
	require.Equal(t, "Asia/Bangkok", cfg.Timezone)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Bangkok", loc.String())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
sensor:
  url: "http://sensors.local/data.json"
  poll_interval: 30s
summary:
  hour: 15
  minute: 37
alerts:
  - metric: temperature
    op: "<"
    threshold: 18
    message: "cold: {value}"
    scope: realtime
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "http://sensors.local/data.json", cfg.Sensor.URL)
	require.Equal(t, 30*time.Second, cfg.Sensor.PollInterval)
	require.Equal(t, 15, cfg.Summary.Hour)
	require.Equal(t, 37, cfg.Summary.Minute)

	require.Len(t, cfg.Alerts, 1)
	require.Equal(t, models.AlertRule{
		Metric:    "temperature",
		Op:        "<",
		Threshold: 18,
		Message:   "cold: {value}",
		Scope:     "realtime",
	}, cfg.Alerts[0])
}

func TestLocationRejectsGarbage(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	_, err := cfg.Location()
	require.Error(t, err)
}
