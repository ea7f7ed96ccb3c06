// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connection

// Status is the reachability of the backend.
type Status string

const (
	StatusUnknown      Status = "unknown"
	StatusRetrying     Status = "retrying"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusOffline      Status = "offline"
	// StatusMock means the backend is disabled and replies are generated
	// locally.
	StatusMock Status = "mock"
)

// Connected reports whether requests are expected to reach the backend.
func (s Status) Connected() bool {
	return s == StatusConnected
}

// Badge is the short label shown in the header.
func (s Status) Badge() string {
	switch s {
	case StatusConnected:
		return "[ONLINE]"
	case StatusRetrying:
		return "[CONNECTING]"
	case StatusDisconnected:
		return "[DISCONNECTED]"
	case StatusOffline:
		return "[OFFLINE]"
	case StatusMock:
		return "[MOCK]"
	default:
		return "[?]"
	}
}

// Describe is a one-line explanation of the status.
func (s Status) Describe() string {
	switch s {
	case StatusConnected:
		return "Backend server is running properly."
	case StatusRetrying:
		return "Checking the backend connection."
	case StatusDisconnected:
		return "Cannot connect to backend server. Will retry."
	case StatusOffline:
		return "Offline mode. Basic features available; full AI features require a backend connection."
	case StatusMock:
		return "Backend disabled. Replies are generated locally."
	default:
		return "Connection status unknown."
	}
}
