// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package delivery

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/background"
	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/storage"
)

// =============================================================================
// RETRY
// =============================================================================

// Retry resends the failed message at index. A reply already following it
// is removed first, so the new reply lands at index+1.
func (c *Controller) Retry(ctx context.Context, index int) error {
	msg, ok := c.store.At(index)
	if !ok {
		return storage.ErrMessageNotFound
	}
	return c.RetryByID(ctx, msg.ID)
}

// RetryByID is Retry addressed by message id.
func (c *Controller) RetryByID(ctx context.Context, id string) error {
	msg, index, ok := c.store.ByID(id)
	if !ok {
		return storage.ErrMessageNotFound
	}
	if msg.Role != model.RoleUser {
		return ErrNotUserMessage
	}
	if c.Sending(id) {
		return ErrAlreadySending
	}
	if stateOf(msg) != model.StateFailed {
		return ErrNotFailed
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	if _, err := c.registry.ConsumeFailure(ctx, index); err == nil {
		c.log.Debug("cleared failure record", zap.Int("index", index))
	}
	if c.store.RemoveFirstAssistantAfter(id) {
		c.log.Debug("removed stale reply before retry", zap.String("id", id))
	}
	c.log.Info("retrying message", zap.String("id", id), zap.Int("index", index))
	return c.dispatch(ctx, id, model.EventRetry)
}

// LastFailed returns the index of the most recent failed user message.
func (c *Controller) LastFailed() (int, bool) {
	msgs := c.store.Snapshot()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == model.RoleUser && stateOf(m) == model.StateFailed && !c.Sending(m.ID) {
			return i, true
		}
	}
	return -1, false
}

// RetryBackground resends a message whose background task failed or was
// lost.
func (c *Controller) RetryBackground(ctx context.Context, index int) error {
	msg, ok := c.store.At(index)
	if !ok {
		return storage.ErrMessageNotFound
	}
	if c.registry.IsPending(index) || c.Sending(msg.ID) {
		return ErrStillProcessing
	}
	if _, err := c.registry.ConsumeFailure(ctx, index); err != nil && !errors.Is(err, background.ErrNotFound) {
		c.log.Warn("could not clear failure record", zap.Int("index", index), zap.Error(err))
	}
	if stateOf(msg).InFlight() {
		if _, err := c.store.Update(msg.ID, transitionTo(model.EventFail)); err != nil {
			return err
		}
	}
	return c.RetryByID(ctx, msg.ID)
}

// =============================================================================
// EDIT
// =============================================================================

// Edit replaces the user message at index with text and resends it. The
// edited message gets a new id and the reply that followed the original is
// removed.
func (c *Controller) Edit(ctx context.Context, index int, text string) error {
	old, ok := c.store.At(index)
	if !ok {
		return storage.ErrMessageNotFound
	}
	if old.Role != model.RoleUser {
		return ErrNotUserMessage
	}
	text = strings.TrimSpace(text)
	if text == "" && len(old.Attachments) == 0 {
		return ErrEmptyMessage
	}
	if c.Sending(old.ID) || stateOf(old).InFlight() || c.registry.IsPending(index) {
		return ErrAlreadySending
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	fresh := model.NewUserMessage(c.store.User(), text, old.Attachments)
	fresh.Edited = true
	fresh.FileMode = old.FileMode
	if err := c.store.Replace(old.ID, fresh); err != nil {
		return err
	}
	c.store.RemoveFirstAssistantAfter(fresh.ID)
	c.clearChoice(old.ID)
	c.log.Info("message edited", zap.String("old", old.ID), zap.String("id", fresh.ID), zap.Int("index", index))

	ui, _ := c.view()
	ui.MessagesChanged()
	ui.Toast(ToastSuccess, "Message updated")

	if n := model.CountFileLike(fresh.Attachments); n > 1 && !fresh.FileMode.Valid() {
		c.askFileMode(ctx, fresh.ID, n)
		return nil
	}
	return c.dispatch(ctx, fresh.ID, model.EventDispatch)
}
