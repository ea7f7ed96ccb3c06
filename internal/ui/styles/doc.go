// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the edutrack TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

  - Purple - assistant replies and selections
  - Cyan - brand color, user messages, commands
  - Emerald - success, online badge
  - Amber - warnings, background processing, offline badge
  - Rose - errors and failed sends

# Theme System (theme.go)

	theme := styles.NewTheme()
	badge := theme.Badge(connection.StatusConnected)
	line := theme.Toast(delivery.ToastWarning).Render("Still not connected")
*/
package styles
