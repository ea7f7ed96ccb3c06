// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kvstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "currentChat_alice", CurrentChatKey("alice"))
	assert.Equal(t, "chat_alice_chat_1_alice", ChatMessagesKey("alice", "chat_1_alice"))
	assert.Equal(t, "studentAI_chats_alice", ChatIndexKey("alice"))
	assert.Equal(t, "studentAI_notes_alice", NotesKey("alice"))
	assert.Equal(t, "background_response_alice_c1_4", BackgroundResponseKey("alice", "c1", 4))
	assert.Equal(t, "background_failed_alice_c1_0", BackgroundFailedKey("alice", "c1", 0))
	assert.Equal(t, "pending_tasks_alice_c1", PendingTasksKey("alice", "c1"))
}

func TestNewChatID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "chat_1700000000123_alice", NewChatID("alice", now))
}

func TestIndexSuffix(t *testing.T) {
	n, err := IndexSuffix(BackgroundResponseKey("alice", "chat_1_alice", 12))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	for _, bad := range []string{"noindex", "trailing_", "key_x", "key_-1"} {
		_, err := IndexSuffix(bad)
		assert.Error(t, err, bad)
	}
}
