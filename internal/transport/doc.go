// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport is the HTTP client for the study-assistant backend.
//
// It covers the chat completion endpoint, image and document analysis,
// the advisory web search and the health probes used by the connection
// monitor. It also generates the local mock replies and analyses shown
// when the backend is disabled or returns something unreadable.
package transport
