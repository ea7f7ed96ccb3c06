// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kvstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Settings keys shared by every user on this machine.
const (
	KeyCurrentUser          = "currentUser"
	KeyWebSearchEnabled     = "webSearchEnabled"
	KeyBackgroundProcessing = "backgroundProcessingEnabled"
)

// CurrentChatKey points at the active chat id of user.
func CurrentChatKey(user string) string {
	return "currentChat_" + user
}

// ChatMessagesKey holds the message array of one chat.
func ChatMessagesKey(user, chatID string) string {
	return "chat_" + user + "_" + chatID
}

// ChatIndexKey holds the chat summary list of user.
func ChatIndexKey(user string) string {
	return "studentAI_chats_" + user
}

// NotesKey holds the saved study notes of user.
func NotesKey(user string) string {
	return "studentAI_notes_" + user
}

// BackgroundResponsePrefix is the key prefix of every completed background
// result in one chat.
func BackgroundResponsePrefix(user, chatID string) string {
	return "background_response_" + user + "_" + chatID + "_"
}

// BackgroundResponseKey is the persisted result for a message index.
func BackgroundResponseKey(user, chatID string, index int) string {
	return BackgroundResponsePrefix(user, chatID) + strconv.Itoa(index)
}

// BackgroundFailedPrefix is the key prefix of every failed background task
// in one chat.
func BackgroundFailedPrefix(user, chatID string) string {
	return "background_failed_" + user + "_" + chatID + "_"
}

// BackgroundFailedKey is the persisted failure for a message index.
func BackgroundFailedKey(user, chatID string, index int) string {
	return BackgroundFailedPrefix(user, chatID) + strconv.Itoa(index)
}

// PendingTasksKey lists the indices still in flight when the client exited.
func PendingTasksKey(user, chatID string) string {
	return "pending_tasks_" + user + "_" + chatID
}

// NewChatID returns a chat id of the form chat_{unixMillis}_{user}.
func NewChatID(user string, now time.Time) string {
	return fmt.Sprintf("chat_%d_%s", now.UnixMilli(), user)
}

// IndexSuffix parses the trailing message index of a background key.
func IndexSuffix(key string) (int, error) {
	i := strings.LastIndexByte(key, '_')
	if i < 0 || i == len(key)-1 {
		return 0, fmt.Errorf("kvstore: key %q has no index suffix", key)
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("kvstore: key %q has no index suffix", key)
	}
	return n, nil
}
