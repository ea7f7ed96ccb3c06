// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	ch      chan Transcript
	stopped int
}

func (f *fakeSource) Available() bool { return true }

func (f *fakeSource) Start(context.Context) (<-chan Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch = make(chan Transcript, 8)
	return f.ch, nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeSource) send(tr Transcript) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	ch <- tr
}

type submissions struct {
	mu    sync.Mutex
	texts []string
	errs  []error
}

func (s *submissions) submit(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
}

func (s *submissions) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *submissions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

func TestUnavailable(t *testing.T) {
	d := NewDictation(Unavailable{}, DictationConfig{}, nil)
	assert.False(t, d.Available())
	assert.ErrorIs(t, d.Start(context.Background()), ErrUnavailable)
	assert.Equal(t, "Voice recognition not supported on this terminal", ErrorMessage(ErrUnavailable))
}

func TestDictation_SilenceDefaults(t *testing.T) {
	assert.Equal(t, DefaultSilence, NewDictation(Unavailable{}, DictationConfig{}, nil).Silence())
	assert.Equal(t, CompactSilence, NewDictation(Unavailable{}, DictationConfig{Compact: true}, nil).Silence())
}

func TestDictation_AutoSubmitAfterSilence(t *testing.T) {
	src := &fakeSource{}
	var subs submissions
	var updates []string
	var mu sync.Mutex

	d := NewDictation(src, DictationConfig{
		Silence:  30 * time.Millisecond,
		OnSubmit: subs.submit,
		OnUpdate: func(text string) {
			mu.Lock()
			updates = append(updates, text)
			mu.Unlock()
		},
	}, nil)
	require.NoError(t, d.Start(context.Background()))
	assert.True(t, d.Listening())

	src.send(Transcript{Text: "explain"})
	src.send(Transcript{Text: "explain photosynthesis", Final: true})
	src.send(Transcript{Text: "please"})

	require.Eventually(t, func() bool { return subs.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "explain photosynthesis please", subs.texts[0])
	assert.False(t, d.Listening())
	assert.Equal(t, 1, src.stopped)

	mu.Lock()
	assert.Contains(t, updates, "explain photosynthesis please")
	mu.Unlock()
}

func TestDictation_NoSubmitWithoutFinalText(t *testing.T) {
	src := &fakeSource{}
	var subs submissions
	d := NewDictation(src, DictationConfig{Silence: 10 * time.Millisecond, OnSubmit: subs.submit}, nil)
	require.NoError(t, d.Start(context.Background()))

	src.send(Transcript{Text: "um"})
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, subs.count())
	assert.True(t, d.Listening())
	assert.Equal(t, "um", d.Stop())
}

func TestDictation_ErrorStops(t *testing.T) {
	src := &fakeSource{}
	var subs submissions
	d := NewDictation(src, DictationConfig{Silence: time.Minute, OnError: subs.fail}, nil)
	require.NoError(t, d.Start(context.Background()))

	src.send(Transcript{Err: ErrNoSpeech})
	require.Eventually(t, func() bool {
		subs.mu.Lock()
		defer subs.mu.Unlock()
		return len(subs.errs) == 1
	}, time.Second, 5*time.Millisecond)

	assert.False(t, d.Listening())
	assert.Equal(t, "No speech detected. Please try again.", ErrorMessage(subs.errs[0]))
}
