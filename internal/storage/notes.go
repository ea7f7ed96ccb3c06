// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/efgfdsdfdf/edutrack/internal/kvstore"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// Notebook holds the saved notes of one user under studentAI_notes_{user}.
type Notebook struct {
	codec *kvstore.Codec
	user  string
}

// NewNotebook returns the notebook of user.
func NewNotebook(codec *kvstore.Codec, user string) (*Notebook, error) {
	if IsGuest(user) {
		return nil, ErrNoUser
	}
	return &Notebook{codec: codec, user: strings.TrimSpace(user)}, nil
}

// List returns every note, newest first.
func (n *Notebook) List(ctx context.Context) ([]model.Note, error) {
	notes, err := kvstore.Get[[]model.Note](ctx, n.codec, kvstore.NotesKey(n.user))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Timestamp.After(notes[j].Timestamp)
	})
	return notes, nil
}

// Add saves a note, replacing one with the same ID.
func (n *Notebook) Add(ctx context.Context, note model.Note) error {
	return kvstore.Update(ctx, n.codec, kvstore.NotesKey(n.user),
		func(notes []model.Note, _ bool) ([]model.Note, error) {
			for i := range notes {
				if notes[i].ID == note.ID {
					notes[i] = note
					return notes, nil
				}
			}
			return append(notes, note), nil
		})
}

// Find returns the newest note whose title matches, ignoring case.
func (n *Notebook) Find(ctx context.Context, title string) (model.Note, bool, error) {
	notes, err := n.List(ctx)
	if err != nil {
		return model.Note{}, false, err
	}
	for _, note := range notes {
		if strings.EqualFold(strings.TrimSpace(note.Title), strings.TrimSpace(title)) {
			return note, true, nil
		}
	}
	return model.Note{}, false, nil
}
