// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/render"
	"github.com/efgfdsdfdf/edutrack/internal/typing"
)

const (
	// typeAttempts bounds how often a reply waits for the previous one to
	// stop typing before it is shown at once.
	typeAttempts   = 20
	typeRetryDelay = 25 * time.Millisecond
)

// Typer types delivered replies into the chat view. Render returns as soon
// as typing started; a newer reply finishes the one still being typed.
type Typer struct {
	sched   *typing.Scheduler
	md      *render.Markdown
	bridge  *Bridge
	enabled bool

	atBottom atomic.Bool
}

// NewTyper creates a typer. When enabled is false replies appear whole.
func NewTyper(sched *typing.Scheduler, md *render.Markdown, bridge *Bridge, enabled bool) *Typer {
	t := &Typer{sched: sched, md: md, bridge: bridge, enabled: enabled}
	t.atBottom.Store(true)
	return t
}

// SetAtBottom records whether the chat view shows its last line.
func (t *Typer) SetAtBottom(v bool) {
	t.atBottom.Store(v)
}

// Render starts typing reply.
func (t *Typer) Render(ctx context.Context, reply model.Message) error {
	markup := t.md.Render(reply.Content)
	target := &viewTarget{id: reply.ID, typer: t}
	if !t.enabled || t.sched == nil {
		target.Finalize(markup)
		return nil
	}
	go t.run(context.WithoutCancel(ctx), target, markup)
	return nil
}

func (t *Typer) run(ctx context.Context, target *viewTarget, markup string) {
	for range typeAttempts {
		t.sched.Cancel()
		err := t.sched.Type(ctx, target, markup)
		if !errors.Is(err, typing.ErrBusy) {
			return
		}
		time.Sleep(typeRetryDelay)
	}
	target.Finalize(markup)
}

// viewTarget posts the frames of one reply to the program.
type viewTarget struct {
	id    string
	typer *Typer
}

func (v *viewTarget) Update(partial string) {
	v.typer.bridge.post(typingMsg{id: v.id, text: partial})
}

func (v *viewTarget) Finalize(full string) {
	v.typer.bridge.post(typingMsg{id: v.id, text: full, final: true})
}

func (v *viewTarget) NearBottom() bool {
	return v.typer.atBottom.Load()
}

func (v *viewTarget) ScrollToBottom() {
	v.typer.bridge.post(scrollMsg{})
}

var (
	_ delivery.Renderer = (*Typer)(nil)
	_ typing.Target     = (*viewTarget)(nil)
)
