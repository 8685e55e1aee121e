// Package config provides hierarchical configuration loading for agentmux.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the agentmux service.
type Config struct {
	Server      Server      `yaml:"server"`
	Persistence Persistence `yaml:"persistence"`
	Postgres    Postgres    `yaml:"postgres"`
	NATS        NATS        `yaml:"nats"`
	Logging     Logging     `yaml:"logging"`
	Registry    Registry    `yaml:"registry"`
	Cache       Cache       `yaml:"cache"`
	Telemetry   Telemetry   `yaml:"telemetry"`
}

// Server holds HTTP server configuration. The MCP tool surface is mounted
// on the same listener under /mcp.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Persistence selects the journal backend.
type Persistence struct {
	// Backend is "jsonl" or "postgres".
	Backend string `yaml:"backend"`
	// Dir is the JSONL journal directory (jsonl backend only).
	Dir string `yaml:"dir"`
	// CompactOnShutdown rewrites journals to their minimal form at clean
	// shutdown.
	CompactOnShutdown bool `yaml:"compact_on_shutdown"`
}

// Postgres holds PostgreSQL connection configuration (postgres backend).
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

// NATS holds message queue configuration. When disabled, registry events
// and dispatches are not published to a broker.
type NATS struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Registry holds registry core tuning.
type Registry struct {
	// DedupWindow is the fingerprint window capacity.
	DedupWindow int `yaml:"dedup_window"`
	// DispatchTail is the number of recent dispatches kept for the read
	// API.
	DispatchTail int `yaml:"dispatch_tail"`
}

// Cache holds the permission-decision cache configuration.
type Cache struct {
	MaxSizeMB int64         `yaml:"max_size_mb"`
	TTL       time.Duration `yaml:"ttl"`
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}
