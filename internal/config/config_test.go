package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/rwsclient/internal/rws"
)

const yamlConfig = `
controller:
  url: https://192.168.125.1
  username: Admin
  password: "-"
  request_timeout: 10s
  insecure_skip_verify: true
subscription:
  resources:
    - path: /rw/iosystem/signals/DO5;state
      priority: "2"
    - path: /rw/rapid/execution;ctrlexecstate
  retry_delay: 250ms
log:
  level: debug
  format: json
`

const jsoncConfig = `{
  // тот же контроллер
  "controller": {
    "url": "https://192.168.125.1",
    "username": "Admin",
    "password": "-",
    "request_timeout": "10s",
    "insecure_skip_verify": true,
  },
  /* подписка */
  "subscription": {
    "resources": [
      {"path": "/rw/iosystem/signals/DO5;state", "priority": "2"},
      {"path": "/rw/rapid/execution;ctrlexecstate"},
    ],
    "retry_delay": "250ms",
  },
  "log": {"level": "debug", "format": "json"},
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAMLAndJSONCAgree(t *testing.T) {
	fromYAML, err := Load(writeFile(t, "rws.yaml", yamlConfig))
	require.NoError(t, err)
	fromJSONC, err := Load(writeFile(t, "rws.jsonc", jsoncConfig))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromJSONC)

	c := fromYAML
	assert.Equal(t, "https://192.168.125.1", c.Controller.URL)
	assert.Equal(t, "-", c.Controller.Password)
	assert.Equal(t, 10*time.Second, c.Controller.RequestTimeout.Std())
	assert.Equal(t, []rws.Resource{
		{Path: "/rw/iosystem/signals/DO5;state", Priority: rws.PriorityHigh},
		{Path: "/rw/rapid/execution;ctrlexecstate"},
	}, c.Subscription.Resources)
	assert.Equal(t, 250*time.Millisecond, c.Subscription.RetryDelay.Std())
	require.NoError(t, c.Validate())
}

func TestLoadKeepsDefaults(t *testing.T) {
	c, err := Load(writeFile(t, "rws.yml", "controller:\n  url: http://10.0.0.5\n"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, "http://10.0.0.5", c.Controller.URL)
	assert.Equal(t, def.Controller.Username, c.Controller.Username)
	assert.Equal(t, def.Controller.RequestTimeout, c.Controller.RequestTimeout)
	assert.Equal(t, def.Subscription, c.Subscription)
	assert.Equal(t, def.Overview, c.Overview)
	assert.Equal(t, def.Log, c.Log)
}

func TestLoadEmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.NoError(t, c.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "rws.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported")

	_, err = Load(writeFile(t, "rws.yaml", "subscription:\n  retry_delay: soon\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "rws.json", `{"controller": {"request_timeout": 30}}`))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad url", func(c *Config) { c.Controller.URL = "127.0.0.1" }, "controller.url"},
		{"zero timeout", func(c *Config) { c.Controller.RequestTimeout = 0 }, "controller.request_timeout"},
		{"negative retry", func(c *Config) { c.Subscription.RetryDelay = Duration(-time.Second) }, "subscription.retry_delay"},
		{"duplicate resource", func(c *Config) {
			c.Subscription.Resources = append(c.Subscription.Resources, c.Subscription.Resources[0])
		}, "duplicate"},
		{"empty path", func(c *Config) { c.Subscription.Resources[0].Path = "" }, "empty path"},
		{"bad priority", func(c *Config) { c.Subscription.Resources[0].Priority = "5" }, "bad priority"},
		{"auto start without resources", func(c *Config) { c.Subscription.Resources = nil }, "auto_start"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}

func TestClientConfig(t *testing.T) {
	c := Default()
	cc := c.Controller.ClientConfig()
	assert.Equal(t, c.Controller.URL, cc.BaseURL)
	assert.Equal(t, rws.DefaultRequestTimeout, cc.RequestTimeout)
	assert.Equal(t, rws.DefaultUsername, cc.Username)
}
