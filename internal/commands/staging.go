// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// MaxAttachmentSize is the largest file that can be staged.
const MaxAttachmentSize = 20 << 20

var (
	ErrNotAFile   = errors.New("not a regular file")
	ErrNotAnImage = errors.New("not an image")
	ErrTooLarge   = errors.New("file too large")
)

// =============================================================================
// STAGING
// =============================================================================

// Staging holds the attachments waiting for the next message.
type Staging struct {
	mu   sync.Mutex
	atts []model.Attachment
}

// Add stages a and returns how many attachments are staged.
func (s *Staging) Add(a model.Attachment) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atts = append(s.atts, a)
	return len(s.atts)
}

// List returns a copy of the staged attachments.
func (s *Staging) List() []model.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Attachment(nil), s.atts...)
}

// Len returns how many attachments are staged.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.atts)
}

// Take returns the staged attachments and clears the stage.
func (s *Staging) Take() []model.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	atts := s.atts
	s.atts = nil
	return atts
}

// Restore puts attachments back after a send was refused.
func (s *Staging) Restore(atts []model.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atts = append(atts, s.atts...)
}

// Summary is a one-line description of the stage, empty when nothing is staged.
func (s *Staging) Summary() string {
	atts := s.List()
	if len(atts) == 0 {
		return ""
	}
	labels := make([]string, len(atts))
	for i, a := range atts {
		labels[i] = a.Label()
	}
	return fmt.Sprintf("%d attached: %s", len(atts), strings.Join(labels, ", "))
}

// =============================================================================
// FILE ATTACHMENTS
// =============================================================================

// FileAttachment builds an attachment for the file at path. Photos must
// have an image type.
func FileAttachment(path string, kind model.AttachmentKind, description string) (model.Attachment, error) {
	path = expandHome(path)
	info, err := os.Stat(path)
	if err != nil {
		return model.Attachment{}, err
	}
	if !info.Mode().IsRegular() {
		return model.Attachment{}, fmt.Errorf("%s: %w", path, ErrNotAFile)
	}
	if info.Size() > MaxAttachmentSize {
		return model.Attachment{}, fmt.Errorf("%s is %s, limit %s: %w", info.Name(),
			humanize.Bytes(uint64(info.Size())), humanize.Bytes(MaxAttachmentSize), ErrTooLarge)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if kind == model.KindPhoto && !strings.HasPrefix(mimeType, "image/") {
		return model.Attachment{}, fmt.Errorf("%s: %w", info.Name(), ErrNotAnImage)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	a := model.NewAttachment(kind, info.Name())
	a.Path = abs
	a.MimeType = mimeType
	a.Size = info.Size()
	a.Description = strings.TrimSpace(description)
	return a, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
