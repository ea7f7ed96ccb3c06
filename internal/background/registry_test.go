// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package background

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efgfdsdfdf/edutrack/internal/kvstore"
)

type recordingHandler struct {
	mu     sync.Mutex
	ready  []int
	failed []Failure
	scopes []Scope
}

func (h *recordingHandler) Ready(ctx context.Context, scope Scope, index int, messageID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = append(h.ready, index)
	h.scopes = append(h.scopes, scope)
}

func (h *recordingHandler) Failed(ctx context.Context, scope Scope, f Failure) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, f)
	h.scopes = append(h.scopes, scope)
}

type fixture struct {
	reg     *Registry
	codec   *kvstore.Codec
	handler *recordingHandler
	active  *atomic.Bool
	scope   *atomic.Value
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		codec:   kvstore.NewCodec(kvstore.NewMemoryStore()),
		handler: &recordingHandler{},
		active:  &atomic.Bool{},
		scope:   &atomic.Value{},
	}
	f.scope.Store(Scope{User: "alice", ChatID: "chat_1_alice"})
	f.reg = NewRegistry(Config{
		Codec:   f.codec,
		Scope:   func() Scope { return f.scope.Load().(Scope) },
		Active:  f.active.Load,
		Handler: f.handler,
	}, nil)
	return f
}

func reply(text string) Future {
	return func(ctx context.Context) (string, error) { return text, nil }
}

func blocked(release <-chan struct{}, text string) Future {
	return func(ctx context.Context) (string, error) {
		<-release
		return text, nil
	}
}

// =============================================================================
// TASK TESTS
// =============================================================================

func TestTask_StatusTransitions(t *testing.T) {
	task := newTask(Scope{User: "a", ChatID: "c"}, 0, "m")
	assert.Equal(t, TaskStatusQueued, task.GetStatus())

	assert.Error(t, task.SetStatus(TaskStatusComplete), "queued cannot complete")
	require.NoError(t, task.SetStatus(TaskStatusRunning))
	require.NoError(t, task.SetStatus(TaskStatusComplete))
	assert.Error(t, task.SetStatus(TaskStatusRunning), "complete is terminal")
	assert.Contains(t, task.Summary(), "message 0 - Complete")
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestDefer_PersistsResultAndConsumesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.reg.Defer(ctx, 2, "msg-2", reply("Photosynthesis converts light"))
	require.NoError(t, err)
	assert.Equal(t, 2, task.MessageIndex)
	f.reg.Wait()

	assert.False(t, f.reg.HasPending())
	assert.Empty(t, f.handler.ready, "inactive users are not interrupted")

	avail, err := f.reg.OnForeground(ctx)
	require.NoError(t, err)
	require.Len(t, avail.Responses, 1)
	assert.Equal(t, "Photosynthesis converts light", avail.Responses[0].Response)
	assert.Equal(t, "chat_1_alice", avail.Responses[0].ChatID)
	assert.Equal(t, "alice", avail.Responses[0].UserID)
	assert.Equal(t, "msg-2", avail.Responses[0].MessageID)

	res, err := f.reg.Consume(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.MessageIndex)

	_, err = f.reg.Consume(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	avail, err = f.reg.OnForeground(ctx)
	require.NoError(t, err)
	assert.Empty(t, avail.Responses)
}

func TestDefer_ActiveUserSurfacesImmediately(t *testing.T) {
	f := newFixture(t)
	f.active.Store(true)

	_, err := f.reg.Defer(context.Background(), 4, "msg-4", reply("done"))
	require.NoError(t, err)
	f.reg.Wait()

	assert.Equal(t, []int{4}, f.handler.ready)
	_, err = kvstore.Get[Result](context.Background(), f.codec, kvstore.BackgroundResponseKey("alice", "chat_1_alice", 4))
	assert.NoError(t, err, "the result is persisted before it is surfaced")
}

func TestDefer_FailurePersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reg.Defer(ctx, 1, "msg-1", func(ctx context.Context) (string, error) {
		return "", errors.New("request timed out")
	})
	require.NoError(t, err)
	f.reg.Wait()

	require.Len(t, f.handler.failed, 1)
	assert.Equal(t, "request timed out", f.handler.failed[0].Error)

	avail, err := f.reg.OnForeground(ctx)
	require.NoError(t, err)
	require.Len(t, avail.Failures, 1)
	assert.Equal(t, 1, avail.Failures[0].MessageIndex)

	got, err := f.reg.ConsumeFailure(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "request timed out", got.Error)
	_, err = f.reg.ConsumeFailure(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	select {
	case n := <-f.reg.Notifications():
		assert.Equal(t, TaskStatusFailed, n.Status)
		assert.Equal(t, "request timed out", n.Error)
	default:
		t.Fatal("expected a notification")
	}
}

func TestDefer_RejectsPendingIndex(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	ctx := context.Background()

	_, err := f.reg.Defer(ctx, 0, "m0", blocked(release, "a"))
	require.NoError(t, err)
	assert.True(t, f.reg.IsPending(0))
	assert.False(t, f.reg.IsPending(1))

	_, err = f.reg.Defer(ctx, 0, "m0", reply("b"))
	assert.ErrorIs(t, err, ErrTaskPending)

	_, err = f.reg.Defer(ctx, 1, "m1", blocked(release, "c"))
	require.NoError(t, err, "other indices are independent")

	pending := f.reg.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, 0, pending[0].MessageIndex)
	assert.Equal(t, 1, pending[1].MessageIndex)

	close(release)
	f.reg.Wait()
	assert.False(t, f.reg.HasPending())

	_, err = f.reg.Defer(ctx, 0, "m0", reply("again"))
	assert.NoError(t, err, "a finished index can be deferred again")
	f.reg.Wait()
}

func TestDefer_ScopeCapturedAtDeferTime(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	ctx := context.Background()

	_, err := f.reg.Defer(ctx, 3, "m3", blocked(release, "late answer"))
	require.NoError(t, err)

	f.scope.Store(Scope{User: "alice", ChatID: "chat_2_alice"})
	assert.False(t, f.reg.IsPending(3), "pending is per chat")
	close(release)
	f.reg.Wait()

	_, err = f.reg.Consume(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound, "nothing was filed under the new chat")

	f.scope.Store(Scope{User: "alice", ChatID: "chat_1_alice"})
	res, err := f.reg.Consume(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "late answer", res.Response)
}

func TestDefer_IgnoresCallerCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	_, err := f.reg.Defer(ctx, 0, "m0", func(fctx context.Context) (string, error) {
		close(started)
		time.Sleep(10 * time.Millisecond)
		if fctx.Err() != nil {
			return "", fctx.Err()
		}
		return "finished", nil
	})
	require.NoError(t, err)
	<-started
	cancel()
	f.reg.Wait()

	res, err := f.reg.Consume(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "finished", res.Response)
}

func TestDefer_NoScope(t *testing.T) {
	f := newFixture(t)
	f.scope.Store(Scope{})
	_, err := f.reg.Defer(context.Background(), 0, "m", reply("x"))
	assert.ErrorIs(t, err, ErrNoScope)
}

func TestSaveAndRestorePending(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	ctx := context.Background()

	_, err := f.reg.Defer(ctx, 5, "m5", blocked(release, "x"))
	require.NoError(t, err)
	_, err = f.reg.Defer(ctx, 2, "m2", blocked(release, "y"))
	require.NoError(t, err)

	require.NoError(t, f.reg.SavePending(ctx))
	saved, err := kvstore.Get[[]int](ctx, f.codec, kvstore.PendingTasksKey("alice", "chat_1_alice"))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, saved)

	close(release)
	f.reg.Wait()

	// A fresh registry over the same store plays the next run.
	next := NewRegistry(Config{
		Codec: f.codec,
		Scope: func() Scope { return Scope{User: "alice", ChatID: "chat_1_alice"} },
	}, nil)
	restored, err := next.RestorePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, restored)

	again, err := next.RestorePending(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "the pending list is consumed")
}

func TestSavePending_EmptyRemovesKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := kvstore.PendingTasksKey("alice", "chat_1_alice")

	require.NoError(t, f.codec.Save(ctx, key, []int{7}))
	require.NoError(t, f.reg.SavePending(ctx))

	_, err := kvstore.Get[[]int](ctx, f.codec, key)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestNotifications_NonBlocking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		_, err := f.reg.Defer(ctx, i, "m", reply("r"))
		require.NoError(t, err)
	}
	f.reg.Wait()
	assert.Len(t, f.reg.Notifications(), 100)
}

func TestSaveResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := Scope{User: "alice", ChatID: "chat_9_alice"}

	require.NoError(t, f.reg.SaveResult(ctx, other, 4, "m4", "kept for later"))
	assert.ErrorIs(t, f.reg.SaveResult(ctx, Scope{}, 4, "m4", "x"), ErrNoScope)

	f.scope.Store(other)
	res, err := f.reg.Consume(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "kept for later", res.Response)
	assert.Equal(t, "m4", res.MessageID)
}
