package config

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/pushgate/pkg/errors"
)

const testYAML = `
server:
  addr: ":9000"
  admin_token: secret
gateway:
  heartbeat_interval: 45s
  max_connections: 100
  allowed_origins:
    - https://molly.example
log:
  level: info
`

func writeTestConfig(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAndGet(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), "pushgate.yaml", testYAML)

	c := New(WithConfigFile(path))
	require.NoError(t, c.Load())

	assert.Equal(t, ":9000", c.GetString("server.addr"))
	assert.Equal(t, 100, c.GetInt("gateway.max_connections"))
	assert.Equal(t, 45*time.Second, c.GetDuration("gateway.heartbeat_interval"))
	assert.Equal(t, []string{"https://molly.example"}, c.GetStringSlice("gateway.allowed_origins"))
	assert.False(t, c.GetBool("missing.flag"))
	assert.True(t, c.IsSet("log.level"))
	assert.Equal(t, path, c.ConfigFileUsed())
}

func TestLoadWithNameAndPaths(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, "pushgate.yaml", testYAML)

	c := New(WithConfigName("pushgate"), WithConfigType("yaml"), WithConfigPaths(dir))
	require.NoError(t, c.Load())
	assert.Equal(t, "secret", c.GetString("server.admin_token"))
}

func TestConfigFileNotFound(t *testing.T) {
	c := New(WithConfigName("absent"), WithConfigPaths(t.TempDir()))
	err := c.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestOptionalConfigFallsBackToDefaults(t *testing.T) {
	c := New(
		WithConfigName("absent"),
		WithConfigPaths(t.TempDir()),
		WithOptional(true),
		WithDefaults(map[string]any{"server.addr": ":8080"}),
	)
	require.NoError(t, c.Load())
	assert.Equal(t, ":8080", c.GetString("server.addr"))
}

func TestEnvOverride(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), "pushgate.yaml", testYAML)
	t.Setenv("PUSHGATE_SERVER_ADDR", ":7777")

	c := New(WithConfigFile(path), WithEnvPrefix("PUSHGATE"))
	require.NoError(t, c.Load())
	assert.Equal(t, ":7777", c.GetString("server.addr"))
}

func TestUnmarshalKeyKeepsPrefilledDefaults(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), "pushgate.yaml", testYAML)
	c := New(WithConfigFile(path))
	require.NoError(t, c.Load())

	type gatewaySection struct {
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
		MaxConnections    int           `mapstructure:"max_connections"`
		WriteWait         time.Duration `mapstructure:"write_wait"`
	}
	got := gatewaySection{WriteWait: 10 * time.Second}
	require.NoError(t, c.UnmarshalKey("gateway", &got))

	assert.Equal(t, 45*time.Second, got.HeartbeatInterval)
	assert.Equal(t, 100, got.MaxConnections)
	assert.Equal(t, 10*time.Second, got.WriteWait)
}

func TestUnmarshalDecodeError(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), "pushgate.yaml", testYAML)
	c := New(WithConfigFile(path))
	require.NoError(t, c.Load())

	var bad struct {
		Log struct {
			Level int `mapstructure:"level"`
		} `mapstructure:"log"`
	}
	err := c.Unmarshal(&bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigDecodeFailed))
}

func TestWatchTriggersOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "pushgate.yaml", testYAML)

	var changed atomic.Int32
	c := New(
		WithConfigFile(path),
		WithAutoWatch(true),
		WithOnChange(func(cc *Config) {
			if cc.GetInt("extra") == 1 {
				changed.Add(1)
			}
		}),
	)
	require.NoError(t, c.Load())
	defer c.Close()
	assert.True(t, c.IsWatching())

	writeTestConfig(t, dir, "pushgate.yaml", testYAML+"\nextra: 1\n")

	assert.Eventually(t, func() bool { return changed.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestStartStopWatch(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), "pushgate.yaml", testYAML)
	c := New(WithConfigFile(path))
	require.NoError(t, c.Load())

	assert.False(t, c.IsWatching())
	c.StartWatch()
	c.StartWatch()
	assert.True(t, c.IsWatching())
	c.StopWatch()
	assert.False(t, c.IsWatching())
}

func TestConcurrentAccess(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), "pushgate.yaml", testYAML)
	c := New(WithConfigFile(path))
	require.NoError(t, c.Load())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.GetString("server.addr")
		}()
		go func(n int) {
			defer wg.Done()
			c.Set("runtime.n", n)
		}(i)
	}
	wg.Wait()
	assert.True(t, c.IsSet("runtime.n"))
}
