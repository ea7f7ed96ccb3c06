// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kvstore is the durable key/value layer every stateful component
// persists through.
//
// Values are opaque bytes; the Codec adds a JSON view with per-key
// serialized read-modify-write and consume-once reads. Four backends share
// the Store interface:
//
//   - sqlite (default): modernc.org/sqlite, one file, WAL mode
//   - bolt: go.etcd.io/bbolt, one bucket
//   - redis: go-redis, keys namespaced under "<namespace>:"
//   - memory: tests and --store memory
//
// # Key Layout
//
// Keys follow the conventions in keys.go, all scoped by user name:
//
//	currentChat_{user}
//	chat_{user}_{chatId}
//	studentAI_chats_{user}
//	background_response_{user}_{chatId}_{index}
//	background_failed_{user}_{chatId}_{index}
//	pending_tasks_{user}_{chatId}
//
// # Usage
//
//	store, err := kvstore.Open(kvstore.Options{Backend: "sqlite", Path: path})
//	codec := kvstore.NewCodec(store)
//	err = kvstore.Update(ctx, codec, key, func(list []string, found bool) ([]string, error) {
//	    return append(list, "x"), nil
//	})
package kvstore
