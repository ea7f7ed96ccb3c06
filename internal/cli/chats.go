// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/commands"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/export"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// =============================================================================
// CHATS COMMAND
// =============================================================================

// runChats handles "edutrack chats [list|show|export|delete]".
func (r *Runner) runChats(ctx context.Context, a *app.App, args Args) (err error) {
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); err == nil {
			err = cerr
		}
	}()

	raw := args.Raw
	if len(raw) > 0 && !strings.HasPrefix(raw[0], "-") {
		raw = raw[1:]
	}
	p := NewArgParser(raw, "yes", "y")

	switch args.Subcommand {
	case "list", "ls":
		return r.listChats(ctx, a, args)
	case "show", "open":
		if p.PositionalCount() == 0 {
			return &UsageError{Message: "usage: edutrack chats show <number|id>"}
		}
		return r.showChat(ctx, a, args, p.Positional(0))
	case "export":
		if p.PositionalCount() == 0 {
			return &UsageError{Message: "usage: edutrack chats export <number|id> [--format md|json] [--out DIR]"}
		}
		return r.exportChat(ctx, a, p.Positional(0), p.FlagOrDefault("format", "md"), p.FlagOrDefault("out", "."))
	case "delete", "rm":
		if p.PositionalCount() == 0 {
			return &UsageError{Message: "usage: edutrack chats delete <number|id> [--yes]"}
		}
		return r.deleteChat(ctx, a, p.Positional(0), p.BoolFlag("yes") || p.BoolFlag("y"))
	}
	return &UsageError{Message: fmt.Sprintf("unknown chats subcommand %q (list, show, export, delete)", args.Subcommand)}
}

func (r *Runner) listChats(ctx context.Context, a *app.App, args Args) error {
	chats, err := a.Messages.ListChats(ctx)
	if err != nil {
		return NewCommandError("chats", "list", err)
	}
	if args.JSON {
		if chats == nil {
			chats = []model.ChatSummary{}
		}
		return writeJSON(r.Stdout, chats)
	}
	if len(chats) == 0 {
		fmt.Fprintln(r.Stdout, MutedStyle.Render("No saved chats"))
		return nil
	}
	printChats(r.Stdout, chats, a.Messages.ChatID())
	return nil
}

// withChat runs fn with target as the open chat, then reopens the previous one.
func withChat(ctx context.Context, a *app.App, target string, fn func(model.ChatSummary) error) error {
	chat, err := commands.ResolveChat(ctx, a, target)
	if err != nil {
		return err
	}
	previous := a.Messages.ChatID()
	if chat.ID != previous {
		if err := a.Messages.LoadChat(ctx, chat.ID); err != nil {
			return NewCommandError("chats", "open", err)
		}
		defer func() {
			if err := a.Messages.LoadChat(ctx, previous); err != nil {
				a.Log.Warn("could not reopen previous chat", zap.String("chat", previous), zap.Error(err))
			}
		}()
	}
	return fn(chat)
}

func (r *Runner) exportChat(ctx context.Context, a *app.App, target, format, dir string) error {
	exporter, err := export.New(format, nil)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}
	return withChat(ctx, a, target, func(chat model.ChatSummary) error {
		opts := export.DefaultOptions()
		opts.OutputDir = dir
		path, err := export.ToFile(export.Transcript{
			Chat:     chat,
			User:     a.Messages.User(),
			Messages: a.Messages.Snapshot(),
		}, exporter, opts)
		if err != nil {
			return NewCommandError("chats", "export", err)
		}
		fmt.Fprintln(r.Stdout, path)
		return nil
	})
}

// showChat prints a chat's transcript and leaves the open chat unchanged.
func (r *Runner) showChat(ctx context.Context, a *app.App, args Args, target string) error {
	return withChat(ctx, a, target, func(chat model.ChatSummary) error {
		return r.printTranscript(a, args, chat)
	})
}

func (r *Runner) printTranscript(a *app.App, args Args, chat model.ChatSummary) error {
	msgs := a.Messages.Snapshot()
	if args.JSON {
		return writeJSON(r.Stdout, struct {
			model.ChatSummary
			Messages []model.Message `json:"messages"`
		}{chat, msgs})
	}

	out := r.Stdout
	fmt.Fprintln(out, TitleStyle.Render(chat.Title)+"  "+MutedStyle.Render(humanize.Time(chat.Timestamp)))
	fmt.Fprintln(out, RenderSeparator(GetTerminalWidth()))
	if len(msgs) == 0 {
		fmt.Fprintln(out, MutedStyle.Render("No messages"))
		return nil
	}
	userN := 0
	for _, m := range msgs {
		switch m.Role {
		case model.RoleUser:
			userN++
			label := UserStyle.Render(fmt.Sprintf("You #%d", userN))
			if m.Failed || m.State == model.StateFailed {
				label += " " + ErrorStyle.Render("[failed]")
			}
			fmt.Fprintln(out, label)
			fmt.Fprintln(out, m.Content)
			for _, att := range m.Attachments {
				fmt.Fprintln(out, MutedStyle.Render("  + "+att.Label()))
			}
		case model.RoleAssistant:
			fmt.Fprintln(out, AssistantStyle.Render("Assistant"))
			fmt.Fprintln(out, strings.TrimRight(a.Markdown.Render(m.Content), "\n"))
		default:
			fmt.Fprintln(out, MutedStyle.Render(m.Content))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func (r *Runner) deleteChat(ctx context.Context, a *app.App, target string, yes bool) error {
	chat, err := commands.ResolveChat(ctx, a, target)
	if err != nil {
		return err
	}
	if !yes {
		if !r.interactive() {
			return &UsageError{Message: "refusing to delete without --yes when not attached to a terminal"}
		}
		if !r.confirm(fmt.Sprintf("Delete chat %q (%d messages)? [y/N] ", chat.Title, chat.MessageCount)) {
			fmt.Fprintln(r.Stdout, MutedStyle.Render("Cancelled"))
			return nil
		}
	}
	if err := a.Messages.DeleteChat(ctx, chat.ID); err != nil {
		return NewCommandError("chats", "delete", err)
	}
	fmt.Fprintln(r.Stdout, RenderToast(delivery.ToastSuccess, fmt.Sprintf("Deleted %q", chat.Title)))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
