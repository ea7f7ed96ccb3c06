// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/config"
)

// StatusReport is the --json output of status.
type StatusReport struct {
	Backend     string `json:"backend"`
	Status      string `json:"status"`
	Connected   bool   `json:"connected"`
	Failures    int    `json:"failures"`
	User        string `json:"user"`
	Store       string `json:"store"`
	Chats       int    `json:"chats"`
	CurrentChat string `json:"current_chat"`
	Messages    int    `json:"messages"`
	WebSearch   bool   `json:"web_search"`
	Background  bool   `json:"background"`
	Pending     int    `json:"pending_background"`
	ConfigPath  string `json:"config_path"`
	Version     string `json:"version"`
}

// runStatus probes the backend once and reports the local state.
func (r *Runner) runStatus(ctx context.Context, a *app.App, args Args) (err error) {
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); err == nil {
			err = cerr
		}
	}()

	if err := a.Controller.LoadSettings(ctx); err != nil {
		a.Log.Debug("settings unreadable", zap.Error(err))
	}
	st := a.Monitor.Retry(ctx)

	chats, err := a.Messages.ListChats(ctx)
	if err != nil {
		return NewCommandError("status", "list chats", err)
	}
	cfgPath := args.Overrides.ConfigPath
	if cfgPath == "" {
		cfgPath, _ = config.ConfigPathTOML()
	}

	rep := StatusReport{
		Backend:     a.Config.Backend.URL,
		Status:      st.Badge(),
		Connected:   st.Connected(),
		Failures:    a.Monitor.Failures(),
		User:        a.Messages.User(),
		Store:       a.Config.Store.Kind,
		Chats:       len(chats),
		CurrentChat: a.Messages.Title(),
		Messages:    a.Messages.Len(),
		WebSearch:   a.Controller.WebSearch(),
		Background:  a.Controller.BackgroundProcessing(),
		Pending:     len(a.Registry.Pending()),
		ConfigPath:  cfgPath,
		Version:     Version,
	}
	if args.JSON {
		return writeJSON(r.Stdout, rep)
	}

	out := r.Stdout
	fmt.Fprintln(out, TitleStyle.Render("edutrack status"))
	fmt.Fprintln(out, RenderSeparator(40))
	fmt.Fprintln(out, RenderLabel("Backend")+ValueStyle.Render(rep.Backend))
	fmt.Fprintln(out, RenderLabel("Connection")+RenderBadge(st)+" "+MutedStyle.Render(st.Describe()))
	fmt.Fprintln(out, RenderLabel("User")+ValueStyle.Render(rep.User))
	fmt.Fprintln(out, RenderLabel("Store")+ValueStyle.Render(rep.Store))
	fmt.Fprintln(out, RenderLabel("Chats")+ValueStyle.Render(fmt.Sprintf("%d", rep.Chats)))
	fmt.Fprintln(out, RenderLabel("Open chat")+ValueStyle.Render(fmt.Sprintf("%s (%d messages)", rep.CurrentChat, rep.Messages)))
	fmt.Fprintln(out, RenderLabel("Web search")+ValueStyle.Render(onOff(rep.WebSearch)))
	fmt.Fprintln(out, RenderLabel("Background")+ValueStyle.Render(fmt.Sprintf("%s, %d pending", onOff(rep.Background), rep.Pending)))
	fmt.Fprintln(out, RenderLabel("Config")+MutedStyle.Render(rep.ConfigPath))
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
