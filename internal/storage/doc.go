// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage holds the ordered message list of the active chat and
// persists it through the key/value store.
//
// # Key Types
//
//   - MessageStore: one user's active chat plus the chat index
//
// # Usage
//
//	ms, err := storage.NewMessageStore(codec, "alice", log)
//	err = ms.Open(ctx)              // resume currentChat_alice or start a chat
//	idx := ms.Append(msg)
//	err = ms.Save(ctx)              // chat_alice_<id> + studentAI_chats_alice
//
// Chats are indexed newest first and the index keeps 20 entries. Messages
// are addressed by their stable ID; indices are positions and shift when a
// message is inserted or removed.
package storage
