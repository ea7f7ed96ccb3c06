// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package typing

import (
	"io"
	"strings"
	"sync"
)

// WriterTarget types into a stream such as stdout. Each update writes only
// the newly revealed part, so partial renders must extend one another,
// which Prefix guarantees.
type WriterTarget struct {
	mu      sync.Mutex
	w       io.Writer
	written string
}

// NewWriterTarget creates a WriterTarget writing to w.
func NewWriterTarget(w io.Writer) *WriterTarget {
	return &WriterTarget{w: w}
}

func (t *WriterTarget) Update(partial string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(partial)
}

func (t *WriterTarget) Finalize(full string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(full)
	if !strings.HasSuffix(full, "\n") {
		_, _ = io.WriteString(t.w, "\n")
	}
	t.written = ""
}

func (t *WriterTarget) emit(s string) {
	if !strings.HasPrefix(s, t.written) {
		// A new reply; start over.
		t.written = ""
	}
	_, _ = io.WriteString(t.w, s[len(t.written):])
	t.written = s
}

// NearBottom is always true for a stream.
func (t *WriterTarget) NearBottom() bool { return true }

// ScrollToBottom is a no-op for a stream.
func (t *WriterTarget) ScrollToBottom() {}
