package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use a double
// underscore: CHATTHREAD_SERVER__PORT sets server.port.
const EnvPrefix = "CHATTHREAD_"

// Config represents the application configuration
type Config struct {
	General struct {
		LogLevel  string `koanf:"log_level"`
		LogFormat string `koanf:"log_format"`
	} `koanf:"general"`

	Server   ServerConfig `koanf:"server"`
	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`
	Queue QueueConfig `koanf:"queue"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `koanf:"port"`
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
	// JWTSecret enables bearer auth on /api/v1 when set.
	JWTSecret string `koanf:"jwt_secret"`
}

// QueueConfig configures the background snapshot workers.
type QueueConfig struct {
	Enabled    bool          `koanf:"enabled"`
	MaxWorkers int           `koanf:"max_workers"`
	MaxRetries int           `koanf:"max_retries"`
	JobTimeout time.Duration `koanf:"job_timeout"`
}

var defaults = map[string]interface{}{
	"general.log_level":   "info",
	"general.log_format":  "console",
	"server.port":         8888,
	"server.cors_origins": []string{"*"},
	"server.rate_limit":   20.0,
	"server.rate_burst":   40,
	"queue.enabled":       true,
	"queue.max_workers":   5,
	"queue.max_retries":   5,
	"queue.job_timeout":   "1m",
}

var defaultPaths = []string{"./chatthread.toml", "$HOME/.chatthread.toml"}

// LoadConfig loads defaults, then the TOML file, then environment overrides. With an
// empty path the default locations are tried and a missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config %s: %w", path, err)
			}
			break
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// InitConfig writes a sample configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# chatthread configuration

[general]
log_level = "info"
log_format = "console"

[server]
port = 8888
cors_origins = ["*"]
rate_limit = 20.0
rate_burst = 40
# jwt_secret = "change-me"

[database]
# Falls back to DATABASE_URL and a .env file when empty.
url = ""

[queue]
enabled = true
max_workers = 5
max_retries = 5
job_timeout = "1m"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if _, err := zerolog.ParseLevel(strings.ToLower(config.General.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", config.General.LogLevel)
	}

	switch strings.ToLower(config.General.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format %q: expected console or json", config.General.LogFormat)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", config.Server.Port)
	}

	if config.Server.RateLimit < 0 {
		return fmt.Errorf("server rate_limit must not be negative")
	}
	if config.Server.RateLimit > 0 && config.Server.RateBurst < 1 {
		return fmt.Errorf("server rate_burst must be at least 1 when rate limiting is enabled")
	}

	if config.Queue.Enabled {
		if config.Queue.MaxWorkers < 1 {
			return fmt.Errorf("queue max_workers must be at least 1")
		}
		if config.Queue.MaxRetries < 0 {
			return fmt.Errorf("queue max_retries must not be negative")
		}
		if config.Queue.JobTimeout <= 0 {
			return fmt.Errorf("queue job_timeout must be positive")
		}
	}

	return nil
}
