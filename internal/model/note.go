// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// Note is a saved study note.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNote returns a note stamped with the current time.
func NewNote(title, content string, tags ...string) Note {
	return Note{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Tags:      tags,
		Timestamp: time.Now(),
	}
}

// Attachment converts the note into a message attachment.
func (n Note) Attachment() Attachment {
	a := NewAttachment(KindNote, "")
	a.Title = n.Title
	a.Content = n.Content
	return a
}
