// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credentials verifies the admin operator's username/password pair. The
// password is bcrypt-hashed once at startup so login requests never compare
// against the plaintext from the config.
type Credentials struct {
	username     string
	passwordHash []byte
}

// NewCredentials hashes the configured admin password. Cost 12 keeps a
// single verification under ~300ms on current hardware.
func NewCredentials(username, password string) (*Credentials, error) {
	if username == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("admin password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &Credentials{username: username, passwordHash: hash}, nil
}

// Verify checks a login attempt. Both comparisons run unconditionally so a
// wrong username costs the same time as a wrong password.
func (c *Credentials) Verify(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil
	return usernameMatch && passwordMatch
}

// DeviceTokens holds the shared-secret tokens for machine peers: newsroom
// gateways pushing ingest data and device gateways reporting playback.
// Entries come from config as "deviceId:token" strings.
type DeviceTokens struct {
	tokens map[string]string
}

// NewDeviceTokens parses the configured entries. Malformed entries are
// rejected rather than skipped, a typo here must not silently open a hole.
func NewDeviceTokens(entries []string) (*DeviceTokens, error) {
	tokens := make(map[string]string, len(entries))
	for _, entry := range entries {
		deviceID, token, ok := strings.Cut(entry, ":")
		if !ok || deviceID == "" || token == "" {
			return nil, fmt.Errorf("malformed device token entry %q (want deviceId:token)", entry)
		}
		tokens[deviceID] = token
	}
	return &DeviceTokens{tokens: tokens}, nil
}

// Empty reports whether no device tokens are configured.
func (d *DeviceTokens) Empty() bool { return len(d.tokens) == 0 }

// Verify checks a device's presented token in constant time.
func (d *DeviceTokens) Verify(deviceID, token string) bool {
	want, ok := d.tokens[deviceID]
	if !ok {
		// Burn a comparison anyway so unknown ids are not distinguishable
		// by timing.
		subtle.ConstantTimeCompare([]byte(token), []byte(token))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}
