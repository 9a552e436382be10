package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tokmz/pushgate/pkg/errors"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"zero heartbeat", func(c *Config) { c.HeartbeatInterval = 0 }, false},
		{"zero ping", func(c *Config) { c.PingInterval = 0 }, false},
		{"read timeout below ping", func(c *Config) { c.ReadTimeout = c.PingInterval }, false},
		{"zero write wait", func(c *Config) { c.WriteWait = 0 }, false},
		{"zero message size", func(c *Config) { c.MaxMessageSize = 0 }, false},
		{"negative max connections", func(c *Config) { c.MaxConnections = -1 }, false},
		{"zero workers", func(c *Config) { c.BroadcastWorkers = 0 }, false},
		{"negative buffer", func(c *Config) { c.Upgrader.ReadBufferSize = -1 }, false},
		{"custom", func(c *Config) {
			c.HeartbeatInterval = time.Second
			c.PingInterval = time.Second
			c.ReadTimeout = 3 * time.Second
			c.MaxConnections = 10
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestOriginChecks(t *testing.T) {
	request := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://push.example.com/gateway", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	t.Run("same origin", func(t *testing.T) {
		assert.True(t, sameOrigin(request("")))
		assert.True(t, sameOrigin(request("https://push.example.com")))
		assert.False(t, sameOrigin(request("https://evil.example.com")))
	})

	t.Run("whitelist", func(t *testing.T) {
		check := whitelist([]string{"https://app.example.com"})
		assert.True(t, check(request("https://app.example.com")))
		assert.False(t, check(request("https://push.example.com")))
		assert.False(t, check(request("")))
	})

	t.Run("priority", func(t *testing.T) {
		u := NewUpgrader(UpgraderConfig{
			AllowAllOrigins: true,
			CheckOrigin:     func(*http.Request) bool { return false },
		})
		assert.False(t, u.upgrader.CheckOrigin(request("")))

		u = NewUpgrader(UpgraderConfig{
			AllowAllOrigins: true,
			AllowedOrigins:  []string{"https://app.example.com"},
		})
		assert.True(t, u.upgrader.CheckOrigin(request("https://other.example.com")))
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(99).String())
}
