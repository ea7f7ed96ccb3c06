// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package background

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents the current state of a background task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task has been registered
	TaskStatusQueued TaskStatus = "Queued"

	// TaskStatusRunning indicates the request is in flight
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusComplete indicates a reply was persisted
	TaskStatusComplete TaskStatus = "Complete"

	// TaskStatusFailed indicates a failure was persisted
	TaskStatusFailed TaskStatus = "Failed"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// =============================================================================
// TASK STRUCTURE
// =============================================================================

// Task is one deferred chat request.
type Task struct {
	// ID is a unique identifier for this task
	ID string

	// MessageIndex is the position of the user message the task answers
	MessageIndex int

	// MessageID is the stable id of that message
	MessageID string

	// Scope is the user and chat the task belongs to
	Scope Scope

	Status    TaskStatus
	StartTime time.Time
	EndTime   time.Time
	Error     string

	mu sync.RWMutex
}

func newTask(scope Scope, index int, messageID string) *Task {
	return &Task{
		ID:           uuid.New().String(),
		MessageIndex: index,
		MessageID:    messageID,
		Scope:        scope,
		Status:       TaskStatusQueued,
	}
}

// SetStatus updates the task status.
// Valid transitions: Queued -> Running -> Complete/Failed
func (t *Task) SetStatus(status TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !isValidTransition(t.Status, status) {
		return fmt.Errorf("invalid status transition from %s to %s", t.Status, status)
	}
	t.Status = status
	switch status {
	case TaskStatusRunning:
		t.StartTime = time.Now()
	case TaskStatusComplete, TaskStatusFailed:
		t.EndTime = time.Now()
	}
	return nil
}

func isValidTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case TaskStatusQueued:
		return to == TaskStatusRunning
	case TaskStatusRunning:
		return to == TaskStatusComplete || to == TaskStatusFailed
	default:
		return false
	}
}

// GetStatus returns the current task status.
func (t *Task) GetStatus() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// Duration returns how long the task has been running or took to complete.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.StartTime.IsZero() {
		return 0
	}
	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// Summary returns a one-line summary of the task.
func (t *Task) Summary() string {
	summary := fmt.Sprintf("[%s] message %d - %s", t.ID[:8], t.MessageIndex, t.GetStatus())
	if d := t.Duration(); d > 0 {
		summary += fmt.Sprintf(" (%.1fs)", d.Seconds())
	}
	return summary
}

// Clone creates a copy of the task for reading.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Task{
		ID:           t.ID,
		MessageIndex: t.MessageIndex,
		MessageID:    t.MessageID,
		Scope:        t.Scope,
		Status:       t.Status,
		StartTime:    t.StartTime,
		EndTime:      t.EndTime,
		Error:        t.Error,
	}
}
