package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "agentmux.yaml"

// Backend names accepted by Persistence.Backend.
const (
	BackendJSONL    = "jsonl"
	BackendPostgres = "postgres"
)

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8720",
			CORSOrigin: "*",
		},
		Persistence: Persistence{
			Backend: BackendJSONL,
			Dir:     "data",
		},
		Postgres: Postgres{
			MaxConns:        8,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
		},
		NATS: NATS{
			Enabled: false,
			URL:     "nats://localhost:4222",
		},
		Logging: Logging{
			Level:   "info",
			Service: "agentmux",
		},
		Registry: Registry{
			DedupWindow:  1000,
			DispatchTail: 1000,
		},
		Cache: Cache{
			MaxSizeMB: 16,
			TTL:       time.Minute,
		},
		Telemetry: Telemetry{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
		},
	}
}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "AGENTMUX_PORT")
	setString(&cfg.Server.CORSOrigin, "AGENTMUX_CORS_ORIGIN")
	setString(&cfg.Persistence.Backend, "AGENTMUX_PERSISTENCE_BACKEND")
	setString(&cfg.Persistence.Dir, "AGENTMUX_DATA_DIR")
	setBool(&cfg.Persistence.CompactOnShutdown, "AGENTMUX_COMPACT_ON_SHUTDOWN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "AGENTMUX_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "AGENTMUX_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "AGENTMUX_PG_MAX_CONN_LIFETIME")
	setBool(&cfg.NATS.Enabled, "AGENTMUX_NATS_ENABLED")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "AGENTMUX_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AGENTMUX_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "AGENTMUX_LOG_ASYNC")
	setInt(&cfg.Registry.DedupWindow, "AGENTMUX_DEDUP_WINDOW")
	setInt(&cfg.Registry.DispatchTail, "AGENTMUX_DISPATCH_TAIL")
	setInt64(&cfg.Cache.MaxSizeMB, "AGENTMUX_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "AGENTMUX_CACHE_TTL")
	setBool(&cfg.Telemetry.Enabled, "AGENTMUX_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate rejects configurations that cannot work.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Persistence.Backend {
	case BackendJSONL:
		if cfg.Persistence.Dir == "" {
			return errors.New("persistence.dir is required for the jsonl backend")
		}
	case BackendPostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown persistence.backend %q", cfg.Persistence.Backend)
	}
	if cfg.Registry.DedupWindow < 1 {
		return errors.New("registry.dedup_window must be at least 1")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
