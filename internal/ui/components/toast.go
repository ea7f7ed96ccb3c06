// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/ui/styles"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

const (
	// DefaultToastDuration is the auto-dismiss duration for info and success toasts.
	DefaultToastDuration = 4 * time.Second

	// WarningToastDuration is the auto-dismiss duration for warnings.
	WarningToastDuration = 6 * time.Second

	// ErrorToastDuration is longer so errors can be read.
	ErrorToastDuration = 8 * time.Second
)

// =============================================================================
// TOAST
// =============================================================================

// Toast is a transient one-line notification.
type Toast struct {
	ID        int
	Level     delivery.ToastLevel
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// NewToast creates a toast with the duration of its level.
func NewToast(id int, level delivery.ToastLevel, message string, now time.Time) Toast {
	d := DefaultToastDuration
	switch level {
	case delivery.ToastWarning:
		d = WarningToastDuration
	case delivery.ToastError:
		d = ErrorToastDuration
	}
	return Toast{ID: id, Level: level, Message: message, CreatedAt: now, Duration: d}
}

// Expired reports whether the toast should be dismissed at now.
func (t Toast) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// View renders the toast on one line of at most width cells.
func (t Toast) View(theme *styles.Theme, width int) string {
	text := styles.ToastIcon(t.Level) + " " + t.Message
	if width > 0 {
		text = util.TruncateWidth(text, width)
	}
	return theme.Toast(t.Level).Render(text)
}
