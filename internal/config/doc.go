// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for edutrack.
//
// Configuration is read from TOML (preferred) or JSON, filled with defaults,
// overridden from EDUTRACK_* environment variables and validated.
//
// # File Locations
//
//   - ~/.edutrack/config.toml
//   - ~/.edutrack/config.json
//   - Built-in defaults
//
// EDUTRACK_HOME moves the whole directory (config, store, logs).
// Variables in ~/.edutrack/.env are exported before the overrides run,
// without replacing ones already set.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    // cfg still holds defaults when only the file was unreadable
//	}
//	url := cfg.Backend.URL
//
// Dot-notation access is available for the CLI:
//
//	v, _ := cfg.Get("delivery.background_processing")
//	_ = cfg.Set("typing.compact", "true")
package config
