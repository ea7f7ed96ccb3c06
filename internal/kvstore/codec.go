// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Codec is a JSON view over a Store. Read-modify-write cycles on the same
// key are serialized through a per-key mutex.
type Codec struct {
	store Store

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewCodec wraps store.
func NewCodec(store Store) *Codec {
	return &Codec{store: store, locks: make(map[string]*keyLock)}
}

// Store returns the underlying store.
func (c *Codec) Store() Store { return c.store }

// lock acquires the mutex for key and returns its release function. Entries
// are reference counted so the map does not grow without bound.
func (c *Codec) lock(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}

// Load decodes key into v. It returns ErrNotFound for a missing key.
func (c *Codec) Load(ctx context.Context, key string, v interface{}) error {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("kvstore: decode %s: %w", key, err)
	}
	return nil
}

// Save encodes v under key.
func (c *Codec) Save(ctx context.Context, key string, v interface{}) error {
	release := c.lock(key)
	defer release()
	return c.save(ctx, key, v)
}

func (c *Codec) save(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kvstore: encode %s: %w", key, err)
	}
	return c.store.Set(ctx, key, data)
}

// Remove deletes key.
func (c *Codec) Remove(ctx context.Context, key string) error {
	release := c.lock(key)
	defer release()
	return c.store.Delete(ctx, key)
}

// Keys lists keys with prefix.
func (c *Codec) Keys(ctx context.Context, prefix string) ([]string, error) {
	return c.store.Keys(ctx, prefix)
}

// ErrDelete may be returned by an Update function to remove the key instead
// of writing a new value.
var ErrDelete = errors.New("kvstore: delete key")

// Update loads key into a T (zero value with found=false when missing),
// passes it to fn and saves the result. No other Update, Save, Remove or
// Take on the same key through this Codec runs in between.
func Update[T any](ctx context.Context, c *Codec, key string, fn func(cur T, found bool) (T, error)) error {
	release := c.lock(key)
	defer release()

	var cur T
	found := true
	if err := c.Load(ctx, key, &cur); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		found = false
	}

	next, err := fn(cur, found)
	if errors.Is(err, ErrDelete) {
		return c.store.Delete(ctx, key)
	}
	if err != nil {
		return err
	}
	return c.save(ctx, key, next)
}

// Take loads and deletes key in one step. A second Take of the same key
// returns ErrNotFound.
func Take[T any](ctx context.Context, c *Codec, key string) (T, error) {
	release := c.lock(key)
	defer release()

	var v T
	data, err := c.store.Take(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("kvstore: decode %s: %w", key, err)
	}
	return v, nil
}

// Get is Load returning the value.
func Get[T any](ctx context.Context, c *Codec, key string) (T, error) {
	var v T
	err := c.Load(ctx, key, &v)
	return v, err
}
