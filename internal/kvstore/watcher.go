// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Change reports that another process modified the store file.
type Change struct {
	Path string
	At   time.Time
}

// selfWriter is implemented by file-backed stores so the watcher can ignore
// the events caused by this process.
type selfWriter interface {
	LastWrite() time.Time
}

// Watcher turns filesystem events on a store file into debounced Change
// notifications, the terminal equivalent of a browser "storage" event.
type Watcher struct {
	path     string
	base     string
	debounce time.Duration
	self     selfWriter
	log      *zap.Logger

	watcher *fsnotify.Watcher
	changes chan Change

	mu      sync.Mutex
	pending time.Time // first unflushed event, zero when none

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher watches the file at path. store may be nil; when it reports
// its own writes those are not emitted as changes.
func NewWatcher(path string, store Store, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("kvstore: watcher needs a file path")
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		base:     filepath.Base(abs),
		debounce: debounce,
		log:      log,
		watcher:  fw,
		changes:  make(chan Change, 8),
	}
	if sw, ok := store.(selfWriter); ok {
		w.self = sw
	}
	return w, nil
}

// Changes delivers debounced change notifications.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Start begins watching the store's directory.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// relevant matches the store file and its sqlite sidecars (-wal, -journal).
func (w *Watcher) relevant(name string) bool {
	base := filepath.Base(name)
	return base == w.base || strings.HasPrefix(base, w.base+"-")
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.mu.Lock()
			if w.pending.IsZero() {
				w.pending = time.Now()
			}
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("store watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) processPending() {
	defer w.wg.Done()
	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case now := <-ticker.C:
			w.mu.Lock()
			first := w.pending
			due := !first.IsZero() && now.Sub(first) >= w.debounce
			if due {
				w.pending = time.Time{}
			}
			w.mu.Unlock()
			if !due || w.ownWrite(first) {
				continue
			}
			select {
			case w.changes <- Change{Path: w.path, At: now}:
			default:
				// A change is already queued; the consumer reloads everything anyway.
			}
		}
	}
}

// ownWrite reports whether the burst starting at first was most likely
// caused by this process.
func (w *Watcher) ownWrite(first time.Time) bool {
	if w.self == nil {
		return false
	}
	last := w.self.LastWrite()
	if last.IsZero() {
		return false
	}
	return first.Sub(last) < w.debounce && last.Sub(first) < w.debounce
}
