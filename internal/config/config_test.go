package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	var cfg Config

	assert.Equal(t, 8090, cfg.Server.GetRESTPort())
	assert.Equal(t, "http://127.0.0.1:4999", cfg.Turtle.GetBaseURL())
	assert.Equal(t, "turtle_1", cfg.Turtle.GetLabel())
	assert.Equal(t, 250*time.Millisecond, cfg.Turtle.GetPollInterval())
	assert.Equal(t, 3, cfg.Mining.GetMaxPasses())
	assert.Equal(t, 128, cfg.Mining.GetShaftScanLimit())
	assert.Equal(t, 0.5, cfg.Mining.GetArrivalTolerance())
	assert.Equal(t, 30*time.Second, cfg.Mining.GetAckTimeout())
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("MINER_REST_PORT", "9999")
	t.Setenv("MINER_TURTLE_URL", "http://turtle.local:4999")

	var cfg Config
	assert.Equal(t, 9999, cfg.Server.GetRESTPort())
	assert.Equal(t, "http://turtle.local:4999", cfg.Turtle.GetBaseURL())

	// Значение из конфига имеет приоритет над ENV
	cfg.Server.RESTPort = 8080
	cfg.Turtle.BaseURL = "http://explicit:1"
	assert.Equal(t, 8080, cfg.Server.GetRESTPort())
	assert.Equal(t, "http://explicit:1", cfg.Turtle.GetBaseURL())
}

func TestAckTimeoutSemantics(t *testing.T) {
	m := MiningConfig{AckTimeoutSec: 10}
	assert.Equal(t, 10*time.Second, m.GetAckTimeout())

	// Отрицательное значение — ждать без лимита
	m.AckTimeoutSec = -1
	assert.Equal(t, time.Duration(0), m.GetAckTimeout())
}

func TestLoadYAML(t *testing.T) {
	raw := `
server:
  rest_port: 8085
turtle:
  base_url: "http://192.168.1.50:4999"
  label: "digger_7"
  poll_ms: 100
mining:
  max_passes: 5
  shaft_scan_limit: 64
  arrival_tolerance: 0.25
world:
  data_path: "/var/lib/miner"
  seed: 1337
  sim: true
redis:
  addr: "localhost:6379"
  db: 2
`
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8085, cfg.Server.GetRESTPort())
	assert.Equal(t, "http://192.168.1.50:4999", cfg.Turtle.GetBaseURL())
	assert.Equal(t, "digger_7", cfg.Turtle.GetLabel())
	assert.Equal(t, 100*time.Millisecond, cfg.Turtle.GetPollInterval())
	assert.Equal(t, 5, cfg.Mining.GetMaxPasses())
	assert.Equal(t, 64, cfg.Mining.GetShaftScanLimit())
	assert.Equal(t, 0.25, cfg.Mining.GetArrivalTolerance())
	assert.True(t, cfg.World.Sim)
	assert.Equal(t, int64(1337), cfg.World.Seed)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadMissing(t *testing.T) {
	t.Setenv("MINER_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Nil(t, cfg, "отсутствие конфига не является ошибкой")

	_, err = Load("/nonexistent/config.yml")
	assert.Error(t, err)
}
