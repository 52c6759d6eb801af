// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package config loads Showrunner configuration via Koanf v2 with layered
// sources (highest priority wins): environment variables, config file
// (config.yaml), built-in defaults.
package config

import (
	"time"
)

// Config is the root configuration for the Showrunner server.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Store   StoreConfig   `koanf:"store"`
	Bus     BusConfig     `koanf:"bus"`
	Ingest  IngestConfig  `koanf:"ingest"`
	Playout PlayoutConfig `koanf:"playout"`
	Devices DevicesConfig `koanf:"devices"`

	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// Environment is "development" or "production".
	Environment string `koanf:"environment"`

	// StudioID identifies this installation; internal document ids are
	// stable hashes scoped to it.
	StudioID string `koanf:"studio_id"`
}

// StoreConfig holds document store (BadgerDB) settings.
type StoreConfig struct {
	// Path is the Badger data directory. Empty uses an in-memory store,
	// which is only suitable for tests.
	Path string `koanf:"path"`

	// GCInterval is how often value-log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// BusConfig holds event bus settings. The in-process Watermill gochannel bus
// always runs; NATS JetStream is additionally enabled for gateway-facing
// topics when Enabled is true.
type BusConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	MaxReconnects   int           `koanf:"max_reconnects"`
	ReconnectWait   time.Duration `koanf:"reconnect_wait"`
	ReconnectBuffer int           `koanf:"reconnect_buffer"`

	// Breaker settings for publish protection.
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// IngestConfig tunes the ingest reconciler.
type IngestConfig struct {
	// AllowUnsyncedSegments enables segment-granular degradation: only the
	// offending segment is frozen and every other change applies. When false
	// the whole rundown is marked unsynced and the update discarded.
	AllowUnsyncedSegments bool `koanf:"allow_unsynced_segments"`

	// QueueIdleGrace is how long an idle per-playlist queue lane lingers
	// before its goroutine exits.
	QueueIdleGrace time.Duration `koanf:"queue_idle_grace"`
}

// PlayoutConfig tunes the playout state machine.
type PlayoutConfig struct {
	// TakeGuardMs rejects a manual take this close (ms) before an auto-next.
	TakeGuardMs int64 `koanf:"take_guard_ms"`

	// SelfReportPlayback synthesizes "started playback" after a take when no
	// device gateway is attached to the studio.
	SelfReportPlayback bool `koanf:"self_report_playback"`

	// TimelineDebounce coalesces timeline recompute requests per playlist.
	TimelineDebounce time.Duration `koanf:"timeline_debounce"`
}

// DevicesConfig tunes the device command channel.
type DevicesConfig struct {
	// CommandTimeout is the fixed wait for a gateway reply before the pending
	// command record is discarded and the caller gets a timeout error.
	CommandTimeout time.Duration `koanf:"command_timeout"`
}

// SecurityConfig holds authentication settings.
type SecurityConfig struct {
	// AuthMode is "jwt" or "none" (development only).
	AuthMode string `koanf:"auth_mode"`

	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	// DeviceTokens maps ingest/gateway device ids to their shared-secret
	// tokens. Entries are "deviceId:token" strings.
	DeviceTokens []string `koanf:"device_tokens"`

	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        10541, // upper MOS port; showrunner speaks to newsroom systems
			Timeout:     30 * time.Second,
			Environment: "development",
			StudioID:    "studio0",
		},
		Store: StoreConfig{
			Path:       "/data/showrunner",
			GCInterval: 10 * time.Minute,
		},
		Bus: BusConfig{
			Enabled:            false,
			URL:                "nats://127.0.0.1:4222",
			EmbeddedServer:     true,
			StoreDir:           "/data/nats/jetstream",
			MaxMemory:          1 << 30,  // 1GB
			MaxStore:           10 << 30, // 10GB
			MaxReconnects:      -1,
			ReconnectWait:      2 * time.Second,
			ReconnectBuffer:    8 * 1024 * 1024,
			BreakerMaxRequests: 3,
			BreakerInterval:    30 * time.Second,
			BreakerTimeout:     15 * time.Second,
		},
		Ingest: IngestConfig{
			AllowUnsyncedSegments: true,
			QueueIdleGrace:        30 * time.Second,
		},
		Playout: PlayoutConfig{
			TakeGuardMs:        500,
			SelfReportPlayback: true,
			TimelineDebounce:   20 * time.Millisecond,
		},
		Devices: DevicesConfig{
			CommandTimeout: 3 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			AdminUsername:   "",
			AdminPassword:   "",
			DeviceTokens:    nil,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
