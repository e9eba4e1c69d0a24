// Package config provides configuration for the chat server.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CHATD_SERVER_PORT.
const EnvPrefix = "CHATD"

// Config holds the server configuration.
type Config struct {
	// Server settings
	Port            int
	ShutdownTimeout time.Duration

	// Upstream model runtime
	UpstreamKind    string // ollama, openai or mock
	UpstreamBaseURL string
	UpstreamAPIKey  string
	UpstreamTimeout time.Duration

	// Session store
	StoreDriver string // memory or sqlite
	StoreDSN    string

	// Chat behaviour
	ImplicitSessions bool
	TurnTimeout      time.Duration

	// Policy
	PolicyFile string

	// WebSocket settings
	WSReadLimit    int64
	WSPingInterval time.Duration
	WSWriteTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("upstream.kind", "ollama")
	v.SetDefault("upstream.base_url", "http://localhost:11434")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.timeout", "60s")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "file:chat.db?cache=shared&mode=rwc")
	v.SetDefault("chat.implicit_sessions", false)
	v.SetDefault("chat.turn_timeout", "0s")
	v.SetDefault("policy.file", "")
	v.SetDefault("ws.read_limit", 65536)
	v.SetDefault("ws.ping_interval", "30s")
	v.SetDefault("ws.write_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load loads configuration from defaults, an optional YAML file and environment variables.
// An empty path falls back to $CHATD_CONFIG; a missing file is only an error when named explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// OLLAMA_HOST is honoured when no explicit base URL is set.
	if host := os.Getenv("OLLAMA_HOST"); host != "" && os.Getenv(EnvPrefix+"_UPSTREAM_BASE_URL") == "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		v.Set("upstream.base_url", host)
	}

	cfg := &Config{
		Port:             v.GetInt("server.port"),
		ShutdownTimeout:  v.GetDuration("server.shutdown_timeout"),
		UpstreamKind:     strings.ToLower(v.GetString("upstream.kind")),
		UpstreamBaseURL:  strings.TrimSuffix(v.GetString("upstream.base_url"), "/"),
		UpstreamAPIKey:   v.GetString("upstream.api_key"),
		UpstreamTimeout:  v.GetDuration("upstream.timeout"),
		StoreDriver:      strings.ToLower(v.GetString("store.driver")),
		StoreDSN:         v.GetString("store.dsn"),
		ImplicitSessions: v.GetBool("chat.implicit_sessions"),
		TurnTimeout:      v.GetDuration("chat.turn_timeout"),
		PolicyFile:       v.GetString("policy.file"),
		WSReadLimit:      v.GetInt64("ws.read_limit"),
		WSPingInterval:   v.GetDuration("ws.ping_interval"),
		WSWriteTimeout:   v.GetDuration("ws.write_timeout"),
		LogLevel:         strings.ToLower(v.GetString("log.level")),
		LogFormat:        strings.ToLower(v.GetString("log.format")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Port))
	}
	switch c.UpstreamKind {
	case "ollama", "openai", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown upstream.kind %q", c.UpstreamKind))
	}
	switch c.StoreDriver {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.StoreDriver))
	}
	if c.TurnTimeout < 0 {
		errs = append(errs, errors.New("chat.turn_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger described by the log settings.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
