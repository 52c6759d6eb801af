// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for internally inconsistent or unusable
// values. It is called by Load and may be called directly in tests.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("server.environment must be development or production, got %q", c.Server.Environment)
	}

	switch c.Security.AuthMode {
	case "jwt":
		if c.Server.Environment == "production" && len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("security.jwt_secret must be at least 32 characters in production")
		}
	case "none":
		if c.Server.Environment == "production" {
			return fmt.Errorf("security.auth_mode \"none\" is not allowed in production")
		}
	default:
		return fmt.Errorf("security.auth_mode must be jwt or none, got %q", c.Security.AuthMode)
	}

	for _, entry := range c.Security.DeviceTokens {
		if !strings.Contains(entry, ":") {
			return fmt.Errorf("security.device_tokens entry %q must be deviceId:token", entry)
		}
	}

	if c.Bus.Enabled && c.Bus.URL == "" && !c.Bus.EmbeddedServer {
		return fmt.Errorf("bus.url is required when bus is enabled without the embedded server")
	}

	if c.Devices.CommandTimeout <= 0 {
		return fmt.Errorf("devices.command_timeout must be positive")
	}
	if c.Playout.TakeGuardMs < 0 {
		return fmt.Errorf("playout.take_guard_ms must not be negative")
	}

	return nil
}

// DeviceTokenMap parses the configured "deviceId:token" entries.
func (c *Config) DeviceTokenMap() map[string]string {
	out := make(map[string]string, len(c.Security.DeviceTokens))
	for _, entry := range c.Security.DeviceTokens {
		id, token, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		out[id] = token
	}
	return out
}
