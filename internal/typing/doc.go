// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package typing reveals a delivered reply incrementally, one frame at a
// time, at a fixed per-character budget.
//
// The reveal is markup aware: HTML tags and ANSI escape sequences take no
// time and are always carried with the revealed prefix, so a partial render
// never shows half a tag. Pause keeps the cursor exactly where it is and
// Resume continues from the same offset. On completion or cancellation the
// target receives the full markup.
package typing
