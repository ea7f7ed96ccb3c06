// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package connection tracks whether the backend is reachable.
//
// A Monitor probes a short list of health endpoints on a fixed interval
// while the client is visible. Consecutive failures degrade the status from
// disconnected to offline; offline is sticky and is only left by a probe
// the user asked for (Retry) or one triggered by the client becoming
// visible again.
//
// Usage:
//
//	mon, err := connection.NewMonitor(client, connection.DefaultConfig(), log,
//	    connection.WithVisibility(tracker.IsVisible))
//	mon.Subscribe(func(s connection.Status) { ... })
//	mon.Start(ctx)
//	defer mon.Stop()
package connection
