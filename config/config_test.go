package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  load_events_topic_name: "load.events"
  dispatch_updated_topic_name: "dispatch.updated"
redis:
  host: "localhost"
  port: 6379
dispatch:
  http_addr: ":8080"
  kafka_consumer_group: "dispatch-api"
  backend: "postgres"
  driver_id: "drv-1"
  pin_code: "1234"
  detail_cache_ttl_seconds: 300
  pin_attempts_per_window: 5
  pin_window_seconds: 900
  sync_interval_seconds: 30
  mock_delay_scale: 0.5
  mock_failure_rate: 0.1
  seed_sample_loads: true
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "load.events", cfg.Kafka.LoadEventsTopicName)
	require.Equal(t, "dispatch.updated", cfg.Kafka.DispatchUpdatedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.Dispatch.HTTPAddr)
	require.Equal(t, "postgres", cfg.Dispatch.Backend)
	require.Equal(t, 300, cfg.Dispatch.DetailCacheTTLSeconds)
	require.InDelta(t, 0.5, cfg.Dispatch.MockDelayScale, 1e-9)
	require.True(t, cfg.Dispatch.SeedSampleLoads)
	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.ConnString())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("dispatch: [unclosed"), 0o600))
	_, err = LoadConfig(p)
	require.Error(t, err)
}

func TestLoadConfig_Example(t *testing.T) {
	cfg, err := LoadConfig("config.example.yaml")
	require.NoError(t, err)
	require.Equal(t, "mock", cfg.Dispatch.Backend)
	require.Equal(t, "1234", cfg.Dispatch.PinCode)
	require.Equal(t, "dispatch.updated", cfg.Kafka.DispatchUpdatedTopicName)
}
