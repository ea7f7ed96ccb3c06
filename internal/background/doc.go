// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package background runs chat requests the user is not waiting on.
//
// A deferred request keeps running after the user looks away. When it
// finishes, its reply (or error) is persisted under a key scoped by user,
// chat and message index so it can be shown later, exactly once. If the
// user is active at completion time the Handler is asked to surface it
// right away.
//
// A request whose process exits cannot continue. Only results persisted
// before exit are recovered; the indices that were still pending are
// saved so the next run can tell the user they were interrupted.
package background
