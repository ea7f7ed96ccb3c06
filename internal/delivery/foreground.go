// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package delivery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/background"
	"github.com/efgfdsdfdf/edutrack/internal/kvstore"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// interruptedReason marks sends that were in flight when the app exited.
const interruptedReason = "interrupted before a reply arrived"

// =============================================================================
// BACKGROUND RESULTS
// =============================================================================

// ShowBackgroundResponse inserts the stored background reply for the
// message at index. The record is consumed.
func (c *Controller) ShowBackgroundResponse(ctx context.Context, index int) error {
	res, err := c.registry.Consume(ctx, index)
	if errors.Is(err, background.ErrNotFound) {
		if c.registry.IsPending(index) {
			return ErrStillProcessing
		}
		return ErrNoBackgroundResponse
	}
	if err != nil {
		return err
	}

	id := c.ownerOf(res.MessageID, res.MessageIndex)
	if id == "" {
		c.log.Warn("background reply has no message, appending", zap.Int("index", index))
		reply := model.NewAssistantMessage(res.Response)
		reply.FromBackground = true
		c.store.Append(reply)
		c.save(ctx)
		ui, _ := c.view()
		ui.MessagesChanged()
		return nil
	}
	c.log.Info("showing background reply", zap.String("id", id), zap.Int("index", index))
	c.deliver(ctx, c.scope(), id, index, res.Response, true)
	return nil
}

// ownerOf resolves the user message a record belongs to, by id first and
// by recorded index for records written without one.
func (c *Controller) ownerOf(id string, index int) string {
	if id != "" {
		if c.store.IndexOf(id) >= 0 {
			return id
		}
		return ""
	}
	if m, ok := c.store.At(index); ok && m.Role == model.RoleUser {
		return m.ID
	}
	return ""
}

// Ready implements background.Handler.
func (c *Controller) Ready(ctx context.Context, scope background.Scope, index int, messageID string) {
	if scope != c.scope() {
		return
	}
	if err := c.ShowBackgroundResponse(ctx, index); err != nil {
		c.log.Warn("background reply not shown", zap.Int("index", index), zap.Error(err))
		return
	}
	ui, _ := c.view()
	ui.Toast(ToastSuccess, "AI response is ready!")
}

// Failed implements background.Handler.
func (c *Controller) Failed(ctx context.Context, scope background.Scope, f background.Failure) {
	if scope != c.scope() {
		return
	}
	c.markBackgroundFailed(ctx, f)
}

func (c *Controller) markBackgroundFailed(ctx context.Context, f background.Failure) {
	id := c.ownerOf(f.MessageID, f.MessageIndex)
	if id == "" {
		return
	}
	if _, err := c.store.Update(id, transitionTo(model.EventFail)); err != nil {
		c.log.Debug("failure transition skipped", zap.String("id", id), zap.Error(err))
	}
	c.save(ctx)

	ui, _ := c.view()
	ui.MessagesChanged()
	ui.BackgroundFailed(c.store.IndexOf(id), id, f.Error)
}

// OnForeground surfaces every reply and failure recorded for the current
// chat while the user was away.
func (c *Controller) OnForeground(ctx context.Context) error {
	avail, err := c.registry.OnForeground(ctx)
	if err != nil {
		return err
	}
	ui, _ := c.view()
	if n := len(avail.Responses); n > 0 {
		ui.Toast(ToastSuccess, fmt.Sprintf("%d AI response(s) completed while you were away!", n))
	}
	// Highest index first so records without an id still resolve.
	for i := len(avail.Responses) - 1; i >= 0; i-- {
		r := avail.Responses[i]
		if err := c.ShowBackgroundResponse(ctx, r.MessageIndex); err != nil {
			c.log.Warn("background reply not shown", zap.Int("index", r.MessageIndex), zap.Error(err))
		}
	}
	for _, f := range avail.Failures {
		c.markBackgroundFailed(ctx, f)
	}
	return nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// BeforeUnload records the in-flight background sends and saves the chat.
func (c *Controller) BeforeUnload(ctx context.Context) error {
	return errors.Join(c.registry.SavePending(ctx), c.store.Save(ctx))
}

// Resume runs after a chat is opened. Replies stored by an earlier run are
// shown, sends that can no longer finish are marked failed and a message
// still waiting for its file mode is asked about again.
func (c *Controller) Resume(ctx context.Context) error {
	ui, _ := c.view()
	restored, err := c.registry.RestorePending(ctx)
	if err != nil {
		c.log.Warn("pending list unreadable", zap.Error(err))
	}
	if n := len(restored); n > 0 {
		ui.Toast(ToastInfo, fmt.Sprintf("Resuming %d background task(s)...", n))
	}

	if err := c.OnForeground(ctx); err != nil {
		return err
	}

	changed := false
	for i, m := range c.store.Snapshot() {
		if m.Role != model.RoleUser || !stateOf(m).InFlight() {
			continue
		}
		if c.Sending(m.ID) || c.registry.IsPending(i) {
			continue
		}
		if _, err := c.store.Update(m.ID, transitionTo(model.EventFail)); err != nil {
			continue
		}
		changed = true
		c.log.Info("marked interrupted send failed", zap.String("id", m.ID), zap.Int("index", i))
		ui.BackgroundFailed(i, m.ID, interruptedReason)
	}
	if changed {
		c.save(ctx)
		ui.MessagesChanged()
	}
	c.reaskFileMode(ctx)
	return nil
}

// reaskFileMode asks again for the file mode of a held message left at the
// end of the chat by an earlier run.
func (c *Controller) reaskFileMode(ctx context.Context) {
	last, ok := c.store.At(c.store.Len() - 1)
	if !ok || last.Role != model.RoleUser || stateOf(last) != model.StateComposed {
		return
	}
	n := model.CountFileLike(last.Attachments)
	if n < 2 || last.FileMode.Valid() || c.PendingChoice() == last.ID {
		return
	}
	c.log.Info("asking again for file mode", zap.String("id", last.ID), zap.Int("files", n))
	c.askFileMode(ctx, last.ID, n)
}

// =============================================================================
// SETTINGS
// =============================================================================

// BackgroundProcessing reports whether sends may move to the background.
func (c *Controller) BackgroundProcessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.background
}

// WebSearch reports whether sends are enriched with web results.
func (c *Controller) WebSearch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.webSearch
}

// SetBackgroundProcessing switches background sends and persists it.
func (c *Controller) SetBackgroundProcessing(ctx context.Context, on bool) error {
	c.mu.Lock()
	c.background = on
	c.mu.Unlock()
	return c.persist(ctx, kvstore.KeyBackgroundProcessing, on)
}

// KeepForeground stops sends from moving to the background for the life of
// the controller without changing the saved setting.
func (c *Controller) KeepForeground() {
	c.mu.Lock()
	c.foregroundOnly = true
	c.mu.Unlock()
}

// SetWebSearch switches web enrichment and persists it.
func (c *Controller) SetWebSearch(ctx context.Context, on bool) error {
	c.mu.Lock()
	c.webSearch = on
	c.mu.Unlock()
	return c.persist(ctx, kvstore.KeyWebSearchEnabled, on)
}

func (c *Controller) persist(ctx context.Context, key string, on bool) error {
	if c.settings == nil {
		return nil
	}
	return c.settings.Save(ctx, key, on)
}

// LoadSettings reads persisted toggles, keeping the configured value for
// any that were never saved.
func (c *Controller) LoadSettings(ctx context.Context) error {
	if c.settings == nil {
		return nil
	}
	var errs []error
	load := func(key string, dst *bool) {
		var v bool
		err := c.settings.Load(ctx, key, &v)
		switch {
		case err == nil:
			c.mu.Lock()
			*dst = v
			c.mu.Unlock()
		case !errors.Is(err, kvstore.ErrNotFound):
			errs = append(errs, fmt.Errorf("load %s: %w", key, err))
		}
	}
	load(kvstore.KeyBackgroundProcessing, &c.background)
	load(kvstore.KeyWebSearchEnabled, &c.webSearch)
	return errors.Join(errs...)
}
