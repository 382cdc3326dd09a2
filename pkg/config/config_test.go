package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "config.yaml", `
environment: test
server:
  port: 9090
agent:
  sources:
    - name: zigma
      type: http
      url: http://agent:3001
poller:
  enabled: true
  interval: 30s
  sources: [zigma]
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 30*time.Second, c.Poller.Interval)
	assert.Equal(t, []string{"zigma"}, c.SourceNames())
	assert.Equal(t, "agent.logs", c.Kafka.LogsTopic, "defaults survive")
}

func TestLoadTOML(t *testing.T) {
	p := writeFile(t, "config.toml", `
environment = "prod"

[server]
port = 8081

[[agent.sources]]
name = "primary"
type = "http"
url = "http://agent"

[history]
driver = "sqlite"
dsn = "file::memory:"
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "prod", c.Environment)
	assert.Equal(t, 8081, c.Server.Port)
	assert.Equal(t, "sqlite", c.History.Driver)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	p := writeFile(t, "config.yaml", "environment: dev\n")
	t.Setenv("ZIGMA_AGENT_URL", "http://override:4000")
	t.Setenv("ZIGMA_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ZIGMA_POLLER_INTERVAL", "50s")

	c, err := LoadWithEnv(p)
	require.NoError(t, err)
	assert.Equal(t, "http://override:4000", c.Agent.Sources[0].URL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 50*time.Second, c.Poller.Interval)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty environment", func(c *Config) { c.Environment = "" }},
		{"no sources", func(c *Config) { c.Agent.Sources = nil }},
		{"bad source type", func(c *Config) { c.Agent.Sources[0].Type = "ftp" }},
		{"redis source without redis", func(c *Config) { c.Agent.Sources[0].Type = "redis" }},
		{"poll too fast", func(c *Config) { c.Poller.Enabled = true; c.Poller.Interval = 5 * time.Second }},
		{"unknown poller source", func(c *Config) { c.Poller.Enabled = true; c.Poller.Sources = []string{"x"} }},
		{"bad ingest backend", func(c *Config) { c.Ingest.Backend = "file" }},
		{"postgres without dsn", func(c *Config) { c.History.Driver = "postgres" }},
		{"queue without redis", func(c *Config) { c.Queue.Enabled = true }},
		{"telegram without chat", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.Token = "t" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Defaults()
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := Defaults()
	assert.NoError(t, c.Validate())
}
