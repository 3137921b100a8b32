package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.General.LogLevel)
	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 20.0, cfg.Server.RateLimit)
	assert.True(t, cfg.Queue.Enabled)
	assert.Equal(t, time.Minute, cfg.Queue.JobTimeout)
	assert.NoError(t, Validate(cfg))
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatthread.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[general]
log_level = "debug"

[server]
port = 9000
cors_origins = ["https://chat.example.com"]

[database]
url = "postgres://file"

[queue]
max_workers = 2
job_timeout = "30s"
`), 0644))

	t.Setenv("CHATTHREAD_SERVER__PORT", "9100")
	t.Setenv("CHATTHREAD_SERVER__JWT_SECRET", "s3cret")
	t.Setenv("CHATTHREAD_QUEUE__ENABLED", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.General.LogLevel)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Server.JWTSecret)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "postgres://file", cfg.Database.URL)
	assert.False(t, cfg.Queue.Enabled)
	assert.Equal(t, 2, cfg.Queue.MaxWorkers)
	assert.Equal(t, 30*time.Second, cfg.Queue.JobTimeout)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatthread.toml")
	require.NoError(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.NoError(t, Validate(cfg))

	assert.Error(t, InitConfig(path), "existing files are not overwritten")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.General.LogLevel = "info"
		cfg.Server.Port = 8888
		cfg.Server.RateLimit = 10
		cfg.Server.RateBurst = 5
		cfg.Queue = QueueConfig{Enabled: true, MaxWorkers: 1, JobTimeout: time.Second}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*Config) {}, ok: true},
		{name: "bad level", mutate: func(c *Config) { c.General.LogLevel = "loud" }},
		{name: "bad format", mutate: func(c *Config) { c.General.LogFormat = "xml" }},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }},
		{name: "negative rate", mutate: func(c *Config) { c.Server.RateLimit = -1 }},
		{name: "no burst", mutate: func(c *Config) { c.Server.RateBurst = 0 }},
		{name: "limiter off needs no burst", mutate: func(c *Config) { c.Server.RateLimit, c.Server.RateBurst = 0, 0 }, ok: true},
		{name: "no workers", mutate: func(c *Config) { c.Queue.MaxWorkers = 0 }},
		{name: "no timeout", mutate: func(c *Config) { c.Queue.JobTimeout = 0 }},
		{name: "queue disabled", mutate: func(c *Config) { c.Queue = QueueConfig{} }, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
