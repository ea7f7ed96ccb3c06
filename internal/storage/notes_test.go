// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efgfdsdfdf/edutrack/internal/kvstore"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

func TestNotebook(t *testing.T) {
	ctx := context.Background()
	codec := kvstore.NewCodec(kvstore.NewMemoryStore())

	_, err := NewNotebook(codec, GuestUser)
	assert.ErrorIs(t, err, ErrNoUser)

	nb, err := NewNotebook(codec, "alice")
	require.NoError(t, err)

	empty, err := nb.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	older := model.NewNote("Cells", "mitochondria")
	older.Timestamp = time.Now().Add(-time.Hour)
	newer := model.NewNote("Waves", "amplitude", "physics")
	require.NoError(t, nb.Add(ctx, older))
	require.NoError(t, nb.Add(ctx, newer))

	notes, err := nb.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Waves", notes[0].Title)
	assert.Equal(t, "Cells", notes[1].Title)

	older.Content = "mitochondria and ribosomes"
	require.NoError(t, nb.Add(ctx, older))
	notes, err = nb.List(ctx)
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	found, ok, err := nb.Find(ctx, "cells")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mitochondria and ribosomes", found.Content)

	_, ok, err = nb.Find(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
