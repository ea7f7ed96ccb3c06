// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats, messages and their
// delivery lifecycle.
//
// # Key Types
//
//   - Message: one chat entry with a stable opaque ID; its index is derived
//     from its position in the chat
//   - Attachment: a note, file or photo sent with a user message
//   - DeliveryState / DeliveryEvent: the delivery state machine, driven only
//     through Transition
//   - ChatSummary: one row of a user's chat index
//
// # Usage
//
//	msg := model.NewUserMessage("alice", "Explain photosynthesis", nil)
//	next, err := model.Transition(msg.State, model.EventDispatch)
package model
