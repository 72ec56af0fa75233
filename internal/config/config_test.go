package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gaze-network/bitmap-watcher/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
enable_modules:
  - bitmap
network: testnet
http_server:
  port: 9090
stream:
  url: wss://example.com/ws
  retry_delay: 5s
  ping_interval: 10s
  reference_base_url: https://mempool.space/testnet
unisat:
  retry_count: -1
modules:
  bitmap:
    database: memory
    api_handlers:
      - http
    memory_size: 100
    tip_poll_interval: 1m
`

func TestParse(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(testConfig), 0o600))
	t.Setenv("STREAM_PING_INTERVAL", "45s")

	conf := Parse(configFile)

	assert.Equal(t, []string{"bitmap"}, conf.EnableModules)
	assert.Equal(t, common.NetworkTestnet, conf.Network)
	assert.Equal(t, 9090, conf.HTTPServer.Port)

	assert.Equal(t, "wss://example.com/ws", conf.Stream.URL)
	assert.Equal(t, 5*time.Second, conf.Stream.RetryDelay)
	assert.Equal(t, 45*time.Second, conf.Stream.PingInterval, "env overrides config file")
	assert.Equal(t, "https://mempool.space/testnet", conf.Stream.ReferenceBaseURL)
	assert.Equal(t, -1, conf.Unisat.RetryCount)

	assert.Equal(t, "memory", conf.Modules.Bitmap.Database)
	assert.Equal(t, []string{"http"}, conf.Modules.Bitmap.APIHandlers)
	assert.Equal(t, 100, conf.Modules.Bitmap.MemorySize)
	assert.Equal(t, time.Minute, conf.Modules.Bitmap.TipPollInterval)

	// parsed once
	assert.Equal(t, conf, Load())
}
