// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package presence

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// TRACKER
// =============================================================================

// Tracker holds visibility, activity and auto-save state. It is safe for
// concurrent use.
type Tracker struct {
	mu sync.Mutex

	now func() time.Time

	visible      bool
	lastActivity time.Time
	window       time.Duration

	// Auto-save
	autoSaveEnabled  bool
	autoSaveInterval time.Duration
	lastAutoSave     time.Time
	isDirty          bool

	// Callbacks
	onVisibility map[int]func(visible bool)
	nextID       int
	onAutoSave   func() error
}

// Config holds configuration for the tracker.
type Config struct {
	// ActivityWindow is how recent the last interaction must be for the
	// user to count as active (default: 30 seconds)
	ActivityWindow time.Duration

	// AutoSaveEnabled enables automatic saving
	AutoSaveEnabled bool

	// AutoSaveInterval is how often to auto-save (default: 30 seconds)
	AutoSaveInterval time.Duration

	// Now replaces time.Now in tests.
	Now func() time.Time
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		ActivityWindow:   30 * time.Second,
		AutoSaveEnabled:  true,
		AutoSaveInterval: 30 * time.Second,
	}
}

// NewTracker creates a tracker. The client starts visible with activity
// recorded now.
func NewTracker(cfg Config) *Tracker {
	if cfg.ActivityWindow <= 0 {
		cfg.ActivityWindow = 30 * time.Second
	}
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	now := cfg.Now()
	return &Tracker{
		now:              cfg.Now,
		visible:          true,
		lastActivity:     now,
		window:           cfg.ActivityWindow,
		autoSaveEnabled:  cfg.AutoSaveEnabled,
		autoSaveInterval: cfg.AutoSaveInterval,
		lastAutoSave:     now,
		onVisibility:     make(map[int]func(bool)),
	}
}

// =============================================================================
// VISIBILITY AND ACTIVITY
// =============================================================================

// SetVisible records a visibility change and notifies listeners when the
// value changed. Becoming visible also counts as activity.
func (t *Tracker) SetVisible(visible bool) {
	t.mu.Lock()
	changed := t.visible != visible
	t.visible = visible
	if visible {
		t.lastActivity = t.now()
	}
	var fns []func(bool)
	if changed {
		for _, fn := range t.onVisibility {
			fns = append(fns, fn)
		}
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(visible)
	}
}

// IsVisible reports whether the client is in front of the user.
func (t *Tracker) IsVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// RecordActivity updates the last activity timestamp.
// This should be called on user input.
func (t *Tracker) RecordActivity() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = t.now()
}

// IsActive reports whether the client is visible and the user interacted
// within the activity window.
func (t *Tracker) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible && t.now().Sub(t.lastActivity) < t.window
}

// IdleTime returns how long since last activity.
func (t *Tracker) IdleTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.lastActivity)
}

// OnVisibilityChange registers fn for visibility changes and returns a
// function that removes it.
func (t *Tracker) OnVisibilityChange(fn func(visible bool)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.onVisibility[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.onVisibility, id)
		t.mu.Unlock()
	}
}

// =============================================================================
// AUTO-SAVE
// =============================================================================

// MarkDirty indicates the chat has unsaved changes.
func (t *Tracker) MarkDirty() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isDirty = true
}

// MarkClean indicates the chat has been saved.
func (t *Tracker) MarkClean() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isDirty = false
	t.lastAutoSave = t.now()
}

// IsDirty returns whether the chat has unsaved changes.
func (t *Tracker) IsDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isDirty
}

// SetAutoSaveCallback sets the function called for auto-save.
func (t *Tracker) SetAutoSaveCallback(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAutoSave = fn
}

// ShouldAutoSave returns true if auto-save should trigger.
func (t *Tracker) ShouldAutoSave() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.autoSaveEnabled || !t.isDirty {
		return false
	}
	return t.now().Sub(t.lastAutoSave) >= t.autoSaveInterval
}

// Check runs the auto-save callback when one is due. It returns true if a
// save ran and succeeded.
func (t *Tracker) Check() bool {
	if !t.ShouldAutoSave() {
		return false
	}
	t.mu.Lock()
	onAutoSave := t.onAutoSave
	t.mu.Unlock()

	if onAutoSave == nil {
		return false
	}
	if err := onAutoSave(); err != nil {
		return false
	}
	t.MarkClean()
	return true
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent periodically to check auto-save state.
type TickMsg struct {
	Time time.Time
}

// AutoSaveMsg indicates auto-save should occur.
type AutoSaveMsg struct{}

// TickCmd returns a command that ticks once a second.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(ts time.Time) tea.Msg {
		return TickMsg{Time: ts}
	})
}

// HandleTick returns an AutoSaveMsg when a save is due and schedules the
// next tick.
func (t *Tracker) HandleTick() tea.Cmd {
	var cmds []tea.Cmd
	if t.ShouldAutoSave() {
		cmds = append(cmds, func() tea.Msg {
			return AutoSaveMsg{}
		})
	}
	cmds = append(cmds, TickCmd())
	return tea.Batch(cmds...)
}

// =============================================================================
// STATUS
// =============================================================================

// Status is a snapshot of the tracker.
type Status struct {
	Visible  bool
	Active   bool
	IdleTime time.Duration
	IsDirty  bool
}

// GetStatus returns the current status.
func (t *Tracker) GetStatus() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	idle := t.now().Sub(t.lastActivity)
	return Status{
		Visible:  t.visible,
		Active:   t.visible && idle < t.window,
		IdleTime: idle,
		IsDirty:  t.isDirty,
	}
}
