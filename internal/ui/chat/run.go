// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/connection"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/ui/styles"
)

// closeTimeout bounds the shutdown of the app after the screen exits.
const closeTimeout = 5 * time.Second

// Run starts a, shows the chat screen until the user quits and then closes
// a.
func Run(ctx context.Context, a *app.App) error {
	theme := styles.NewTheme()
	bridge := NewBridge()
	typer := NewTyper(a.Typing, a.Markdown, bridge, a.Config.Typing.Enabled)

	a.Controller.SetUI(bridge)
	a.Controller.SetRenderer(typer)

	m := New(ctx, a, theme, typer)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	bridge.Attach(p.Send)

	unsubscribe := a.Monitor.Subscribe(func(s connection.Status) {
		bridge.post(statusMsg{status: s})
	})
	defer unsubscribe()

	a.Dictation.SetHandlers(
		func(text string) { bridge.post(dictationMsg{text: text}) },
		func(text string) { bridge.post(dictationMsg{text: text, submit: true}) },
		func(err error) { bridge.post(dictationMsg{err: err}) },
	)
	a.OnExternalChange(func() { bridge.post(externalChangeMsg{}) })

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go forwardNotifications(watchCtx, a, bridge)

	// Start resumes the open chat, so its callbacks need the program.
	go func() {
		if err := a.Start(ctx); err != nil {
			a.Log.Warn("resume failed", zap.Error(err))
			bridge.Toast(delivery.ToastError, "Could not resume the chat: "+err.Error())
		}
		bridge.MessagesChanged()
	}()

	_, runErr := p.Run()
	bridge.Attach(nil)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	closeErr := a.Close(closeCtx)

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("chat screen: %w", runErr)
	}
	return closeErr
}

func forwardNotifications(ctx context.Context, a *app.App, bridge *Bridge) {
	ch := a.Registry.Notifications()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			bridge.post(notificationMsg{n: n})
		}
	}
}
