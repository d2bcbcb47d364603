// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package config

import (
	"os"
	"path/filepath"
)

const appName = "pressroom"

// Dir returns the XDG config directory for pressroom.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func Dir(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultPath returns the config file used when none is given explicitly.
func DefaultPath(getenv func(string) string) string {
	return filepath.Join(Dir(getenv), "config.yaml")
}

// Discover returns DefaultPath when that file exists, or "" otherwise.
// Permission errors count as existing so Load reports them instead of
// silently falling back to defaults.
func Discover(getenv func(string) string) string {
	path := DefaultPath(getenv)
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return path
	}
	return ""
}
