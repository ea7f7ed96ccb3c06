// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap logger shared by every edutrack component.
//
// Log lines are JSON, written to a lumberjack-rotated file. A console core
// is added only in verbose mode because the TUI owns the terminal.
//
//	log, err := logging.New(logging.FromConfig(cfg.Logging, verbose))
//	defer log.Sync()
//	monitorLog := log.Named("connection")
package logging
