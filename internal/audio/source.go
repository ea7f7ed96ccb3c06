// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"context"
	"errors"
)

var (
	ErrUnavailable      = errors.New("voice input is not available on this terminal")
	ErrPermissionDenied = errors.New("microphone access denied")
	ErrNoSpeech         = errors.New("no speech detected")
	ErrNoDevice         = errors.New("no microphone found")
	ErrNetwork          = errors.New("speech service unreachable")
)

// Transcript is one recognition result. Interim results may be replaced
// by later ones; final results are kept.
type Transcript struct {
	Text  string
	Final bool
	Err   error
}

// CaptureSource turns speech into transcripts.
type CaptureSource interface {
	// Available reports whether capture can start at all.
	Available() bool

	// Start begins capture. The channel is closed when capture ends.
	Start(ctx context.Context) (<-chan Transcript, error)

	// Stop ends capture.
	Stop() error
}

// Unavailable is the CaptureSource of a platform without speech input.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Start(context.Context) (<-chan Transcript, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Stop() error { return nil }

// ErrorMessage returns the user-facing text for a capture error.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access denied. Please enable microphone permissions."
	case errors.Is(err, ErrNoSpeech):
		return "No speech detected. Please try again."
	case errors.Is(err, ErrNoDevice):
		return "No microphone found. Please check your microphone."
	case errors.Is(err, ErrNetwork):
		return "Network error occurred. Please check your connection."
	case errors.Is(err, ErrUnavailable):
		return "Voice recognition not supported on this terminal"
	default:
		return "Voice recognition error"
	}
}
