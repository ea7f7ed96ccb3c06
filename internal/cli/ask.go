// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/commands"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// AskResult is the --json output of ask.
type AskResult struct {
	ChatID   string   `json:"chat_id"`
	Question string   `json:"question"`
	Files    []string `json:"files,omitempty"`
	Replies  []string `json:"replies"`
	Failed   bool     `json:"failed"`
}

// captureRenderer keeps replies instead of printing them.
type captureRenderer struct {
	mu      sync.Mutex
	replies []string
}

func (c *captureRenderer) Render(_ context.Context, reply model.Message) error {
	c.mu.Lock()
	c.replies = append(c.replies, reply.Content)
	c.mu.Unlock()
	return nil
}

// runAsk sends one question in a new chat and prints the reply.
func (r *Runner) runAsk(ctx context.Context, a *app.App, args Args) (err error) {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := a.Close(closeCtx); err == nil {
			err = cerr
		}
	}()

	atts := make([]model.Attachment, 0, len(args.Files))
	for _, path := range args.Files {
		att, err := commands.FileAttachment(path, model.KindFile, "")
		if err != nil {
			return &UsageError{Message: err.Error()}
		}
		if att.IsImage() {
			att.Kind = model.KindPhoto
		}
		atts = append(atts, att)
	}

	ui := newLineUI(r.Stderr, a.Messages, a.Markdown, args.Quiet || args.JSON)
	capture := &captureRenderer{}
	a.Controller.KeepForeground()
	a.Controller.SetUI(ui)
	if args.JSON {
		a.Controller.SetRenderer(capture)
	} else {
		a.Controller.SetRenderer(&lineRenderer{
			out:     r.Stdout,
			sched:   a.Typing,
			md:      a.Markdown,
			animate: a.Config.Typing.Enabled && CanAnimate(),
			log:     a.Log,
		})
	}

	if err := a.Start(ctx); err != nil {
		return err
	}
	chatID, err := a.NewChat(ctx)
	if err != nil {
		return NewCommandError("ask", "start chat", err)
	}
	ui.markSeen()

	a.Presence.RecordActivity()
	if _, err := a.Controller.Submit(ctx, args.Query, atts); err != nil {
		return NewCommandError("ask", "send", err)
	}
	if id, _, ok := ui.takeChoice(); ok {
		mode := model.FileModeSeparate
		if args.Join {
			mode = model.FileModeJoin
		}
		if err := a.Controller.ChooseFileMode(ctx, id, mode); err != nil {
			return NewCommandError("ask", "send files", err)
		}
	}

	failed := false
	for _, m := range a.Messages.Snapshot() {
		if m.Role == model.RoleUser && (m.Failed || m.State == model.StateFailed) {
			failed = true
		}
	}

	if args.JSON {
		capture.mu.Lock()
		res := AskResult{
			ChatID:   chatID,
			Question: args.Query,
			Files:    args.Files,
			Replies:  append([]string{}, capture.replies...),
			Failed:   failed,
		}
		capture.mu.Unlock()
		if err := writeJSON(r.Stdout, res); err != nil {
			return err
		}
	}
	if failed {
		return fmt.Errorf("%w: see edutrack chats show %s", ErrSendFailed, chatID)
	}
	return nil
}
