// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("kvstore: key not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kvstore: store closed")

// Store is a durable, synchronous key/value store.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set creates or replaces key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Take returns the value and deletes the key in one step, or ErrNotFound.
	Take(ctx context.Context, key string) ([]byte, error)
	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Close releases the backend.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Path is the database file for sqlite and bolt.
	Path string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Namespace prefixes every redis key.
	Namespace string
}

// Open builds the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendSQLite, "":
		return OpenSQLite(ctx, opts.Path)
	case BackendBolt:
		return OpenBolt(opts.Path)
	case BackendRedis:
		return OpenRedis(ctx, RedisOptions{
			Addr:      opts.RedisAddr,
			Password:  opts.RedisPassword,
			DB:        opts.RedisDB,
			Namespace: opts.Namespace,
		})
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("kvstore: unknown backend %q", opts.Backend)
	}
}

// FilePath returns the file a backend writes to, or "" for backends without
// one. The watcher uses it.
func (o Options) FilePath() string {
	switch strings.ToLower(o.Backend) {
	case BackendSQLite, "", BackendBolt:
		return o.Path
	default:
		return ""
	}
}
