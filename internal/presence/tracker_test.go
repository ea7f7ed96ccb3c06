// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package presence

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClockTracker() (*Tracker, *clock) {
	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	cfg := DefaultConfig()
	cfg.Now = c.Now
	return NewTracker(cfg), c
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.ActivityWindow)
	assert.True(t, cfg.AutoSaveEnabled)
	assert.Equal(t, 30*time.Second, cfg.AutoSaveInterval)
}

func TestTracker_ActiveWindow(t *testing.T) {
	tr, c := newClockTracker()

	assert.True(t, tr.IsVisible())
	assert.True(t, tr.IsActive())

	c.Advance(29 * time.Second)
	assert.True(t, tr.IsActive())

	c.Advance(time.Second)
	assert.False(t, tr.IsActive(), "idle for the whole window")
	assert.Equal(t, 30*time.Second, tr.IdleTime())

	tr.RecordActivity()
	assert.True(t, tr.IsActive())
	assert.Zero(t, tr.IdleTime())
}

func TestTracker_HiddenIsNeverActive(t *testing.T) {
	tr, c := newClockTracker()

	tr.SetVisible(false)
	tr.RecordActivity()
	assert.False(t, tr.IsActive())

	c.Advance(time.Minute)
	tr.SetVisible(true)
	assert.True(t, tr.IsActive(), "becoming visible counts as activity")
}

func TestTracker_VisibilityCallbacks(t *testing.T) {
	tr, _ := newClockTracker()

	var got []bool
	remove := tr.OnVisibilityChange(func(v bool) { got = append(got, v) })

	tr.SetVisible(true)
	tr.SetVisible(false)
	tr.SetVisible(false)
	tr.SetVisible(true)
	assert.Equal(t, []bool{false, true}, got, "only changes are reported")

	remove()
	tr.SetVisible(false)
	assert.Len(t, got, 2)
}

func TestTracker_AutoSave(t *testing.T) {
	tr, c := newClockTracker()

	saves := 0
	tr.SetAutoSaveCallback(func() error {
		saves++
		return nil
	})

	assert.False(t, tr.ShouldAutoSave(), "clean chats are not saved")
	tr.MarkDirty()
	assert.False(t, tr.ShouldAutoSave(), "interval not reached")

	c.Advance(30 * time.Second)
	require.True(t, tr.ShouldAutoSave())
	assert.True(t, tr.Check())
	assert.Equal(t, 1, saves)
	assert.False(t, tr.IsDirty())
	assert.False(t, tr.Check())
}

func TestTracker_AutoSaveFailureKeepsDirty(t *testing.T) {
	tr, c := newClockTracker()
	tr.SetAutoSaveCallback(func() error { return errors.New("disk full") })

	tr.MarkDirty()
	c.Advance(time.Minute)
	assert.False(t, tr.Check())
	assert.True(t, tr.IsDirty())
}

func TestTracker_AutoSaveDisabled(t *testing.T) {
	tr := NewTracker(Config{AutoSaveEnabled: false})
	tr.MarkDirty()
	assert.False(t, tr.ShouldAutoSave())
}

func TestTracker_HandleTick(t *testing.T) {
	tr, c := newClockTracker()
	assert.NotNil(t, tr.HandleTick())

	tr.MarkDirty()
	c.Advance(time.Minute)
	assert.NotNil(t, tr.HandleTick())
}

func TestTracker_GetStatus(t *testing.T) {
	tr, c := newClockTracker()
	tr.MarkDirty()
	c.Advance(10 * time.Second)

	st := tr.GetStatus()
	assert.True(t, st.Visible)
	assert.True(t, st.Active)
	assert.Equal(t, 10*time.Second, st.IdleTime)
	assert.True(t, st.IsDirty)
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.SetVisible(i%2 == 0)
			tr.RecordActivity()
			_ = tr.IsActive()
			tr.MarkDirty()
			_ = tr.GetStatus()
		}(i)
	}
	wg.Wait()
}
