// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/audio"
	"github.com/efgfdsdfdf/edutrack/internal/export"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

var (
	ErrNoFailedMessage = errors.New("no failed message to retry")
	ErrBadNumber       = errors.New("not a valid message number")
	ErrChatNotFound    = errors.New("no such chat")
	ErrNoteNotFound    = errors.New("no such note")
)

func (e *Env) staging() *Staging {
	if e.Staged == nil {
		e.Staged = &Staging{}
	}
	return e.Staged
}

// messageIndex converts a 1-based message number to an index below n.
func messageIndex(arg string, n int) (int, error) {
	v, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || v < 1 || v > n {
		return 0, fmt.Errorf("%q: %w", arg, ErrBadNumber)
	}
	return v - 1, nil
}

func rest(args []string, from int) string {
	if from >= len(args) {
		return ""
	}
	return strings.TrimSpace(strings.Join(args[from:], " "))
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// toggle resolves an optional on/off argument against the current value.
func toggle(args []string, current bool) bool {
	if len(args) == 0 {
		return !current
	}
	return strings.EqualFold(args[0], "on")
}

// =============================================================================
// CHAT
// =============================================================================

func handleRetry(ctx context.Context, env *Env, p ParseResult) (Result, error) {
	ctl := env.App.Controller
	if len(p.Args) == 0 {
		i, ok := ctl.LastFailed()
		if !ok {
			return Result{}, ErrNoFailedMessage
		}
		return Result{}, ctl.Retry(ctx, i)
	}
	i, err := messageIndex(p.Args[0], env.App.Messages.Len())
	if err != nil {
		return Result{}, err
	}
	return Result{}, ctl.RetryBackground(ctx, i)
}

func handleEdit(ctx context.Context, env *Env, p ParseResult) (Result, error) {
	i, err := messageIndex(p.Args[0], env.App.Messages.Len())
	if err != nil {
		return Result{}, err
	}
	return Result{}, env.App.Controller.Edit(ctx, i, rest(p.Args, 1))
}

func handleShow(ctx context.Context, env *Env, p ParseResult) (Result, error) {
	ctl := env.App.Controller
	if len(p.Args) > 0 {
		i, err := messageIndex(p.Args[0], env.App.Messages.Len())
		if err != nil {
			return Result{}, err
		}
		return Result{}, ctl.ShowBackgroundResponse(ctx, i)
	}

	before := env.App.Messages.Len()
	if err := ctl.OnForeground(ctx); err != nil {
		return Result{}, err
	}
	if env.App.Messages.Len() == before {
		if n := len(env.App.Registry.Pending()); n > 0 {
			return info("%d background send(s) still running", n), nil
		}
		return info("No background replies waiting"), nil
	}
	return Result{}, nil
}

func handleMic(ctx context.Context, env *Env, _ ParseResult) (Result, error) {
	d := env.App.Dictation
	if d.Listening() {
		text := d.Stop()
		return info("Stopped listening. Heard: %q", text), nil
	}
	if err := d.Start(ctx); err != nil {
		return warning("%s", audio.ErrorMessage(err)), nil
	}
	return Result{
		Message:   fmt.Sprintf("Listening... pause for %s to send", d.Silence()),
		Listening: true,
	}, nil
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func handleAttach(kind model.AttachmentKind) Handler {
	return func(_ context.Context, env *Env, p ParseResult) (Result, error) {
		a, err := FileAttachment(p.Args[0], kind, rest(p.Args, 1))
		if err != nil {
			return Result{}, err
		}
		n := env.staging().Add(a)
		return success("Attached %s (%s), %d staged", a.Name, humanize.Bytes(uint64(a.Size)), n), nil
	}
}

func handleNote(ctx context.Context, env *Env, p ParseResult) (Result, error) {
	title := rest(p.Args, 0)
	note, ok, err := env.App.Notes.Find(ctx, title)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("%q: %w", title, ErrNoteNotFound)
	}
	n := env.staging().Add(note.Attachment())
	return success("Attached note %q, %d staged", note.Title, n), nil
}

func handleNotes(ctx context.Context, env *Env, _ ParseResult) (Result, error) {
	notes, err := env.App.Notes.List(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(notes) == 0 {
		return info("No saved notes yet. Use /savenote <title> <text>"), nil
	}
	res := info("%d saved note(s)", len(notes))
	res.Notes = notes
	return res, nil
}

func handleSaveNote(ctx context.Context, env *Env, p ParseResult) (Result, error) {
	note := model.NewNote(strings.TrimSpace(p.Args[0]), rest(p.Args, 1))
	if note.Title == "" || note.Content == "" {
		return Result{}, &ValidationError{Command: "/savenote", Message: "title and text are required"}
	}
	if err := env.App.Notes.Add(ctx, note); err != nil {
		return Result{}, err
	}
	return success("Saved note %q", note.Title), nil
}

func handleDetach(_ context.Context, env *Env, _ ParseResult) (Result, error) {
	n := len(env.staging().Take())
	if n == 0 {
		return info("Nothing attached"), nil
	}
	return info("Removed %d attachment(s)", n), nil
}

// =============================================================================
// CHATS
// =============================================================================

func handleNew(ctx context.Context, env *Env, _ ParseResult) (Result, error) {
	if _, err := env.App.NewChat(ctx); err != nil {
		return Result{}, err
	}
	res := success("Started a new chat")
	res.Reloaded = true
	return res, nil
}

func handleChats(ctx context.Context, env *Env, _ ParseResult) (Result, error) {
	chats, err := env.App.Messages.ListChats(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(chats) == 0 {
		return info("No saved chats"), nil
	}
	res := info("%d chat(s)", len(chats))
	res.Chats = chats
	return res, nil
}

// ResolveChat finds a chat of a by its 1-based position in the listing,
// its ID or a unique ID prefix.
func ResolveChat(ctx context.Context, a *app.App, arg string) (model.ChatSummary, error) {
	chats, err := a.Messages.ListChats(ctx)
	if err != nil {
		return model.ChatSummary{}, err
	}
	if v, err := strconv.Atoi(arg); err == nil && v >= 1 && v <= len(chats) {
		return chats[v-1], nil
	}

	var match []model.ChatSummary
	for _, c := range chats {
		if c.ID == arg {
			return c, nil
		}
		if strings.HasPrefix(c.ID, arg) {
			match = append(match, c)
		}
	}
	if len(match) == 1 {
		return match[0], nil
	}
	return model.ChatSummary{}, fmt.Errorf("%q: %w", arg, ErrChatNotFound)
}

func handleLoad(ctx context.Context, env *Env, p ParseResult) (Result, error) {
	chat, err := ResolveChat(ctx, env.App, p.Args[0])
	if err != nil {
		return Result{}, err
	}
	if err := env.App.SwitchChat(ctx, chat.ID); err != nil {
		return Result{}, err
	}
	res := success("Opened %q", chat.Title)
	res.Reloaded = true
	return res, nil
}

func handleDelete(ctx context.Context, env *Env, p ParseResult) (Result, error) {
	chat, err := ResolveChat(ctx, env.App, p.Args[0])
	if err != nil {
		return Result{}, err
	}
	current := chat.ID == env.App.Messages.ChatID()
	if err := env.App.Messages.DeleteChat(ctx, chat.ID); err != nil {
		return Result{}, err
	}
	res := success("Deleted %q", chat.Title)
	res.Reloaded = current
	return res, nil
}

func handleExport(ctx context.Context, env *Env, p ParseResult) (Result, error) {
	a := env.App
	format, dir := "md", "."
	if len(p.Args) > 0 {
		format = p.Args[0]
	}
	if len(p.Args) > 1 {
		dir = expandHome(p.Args[1])
	}
	exporter, err := export.New(format, nil)
	if err != nil {
		return Result{}, err
	}
	if err := a.Messages.Save(ctx); err != nil {
		return Result{}, err
	}

	opts := export.DefaultOptions()
	opts.OutputDir = dir
	path, err := export.ToFile(CurrentTranscript(a), exporter, opts)
	if err != nil {
		return Result{}, err
	}
	return success("Exported to %s", path), nil
}

// CurrentTranscript is the open chat of a, ready to export.
func CurrentTranscript(a *app.App) export.Transcript {
	msgs := a.Messages.Snapshot()
	return export.Transcript{
		Chat: model.ChatSummary{
			ID:           a.Messages.ChatID(),
			Title:        a.Messages.Title(),
			Timestamp:    time.Now(),
			MessageCount: len(msgs),
			UserID:       a.Messages.User(),
		},
		User:     a.Messages.User(),
		Messages: msgs,
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

func handleWeb(ctx context.Context, env *Env, p ParseResult) (Result, error) {
	ctl := env.App.Controller
	on := toggle(p.Args, ctl.WebSearch())
	if err := ctl.SetWebSearch(ctx, on); err != nil {
		return Result{}, err
	}
	return success("Web search %s", onOff(on)), nil
}

func handleBackground(ctx context.Context, env *Env, p ParseResult) (Result, error) {
	ctl := env.App.Controller
	on := toggle(p.Args, ctl.BackgroundProcessing())
	if err := ctl.SetBackgroundProcessing(ctx, on); err != nil {
		return Result{}, err
	}
	return success("Background processing %s", onOff(on)), nil
}

func handleConnect(ctx context.Context, env *Env, _ ParseResult) (Result, error) {
	st := env.App.Monitor.Retry(ctx)
	if st.Connected() {
		return success("Backend connected successfully!"), nil
	}
	return warning("%s %s", st.Badge(), st.Describe()), nil
}

func handleStatus(_ context.Context, env *Env, _ ParseResult) (Result, error) {
	a := env.App
	st := a.Monitor.Current()

	var b strings.Builder
	fmt.Fprintf(&b, "Backend:     %s %s (%s)\n", st.Badge(), st.Describe(), a.Config.Backend.URL)
	fmt.Fprintf(&b, "User:        %s\n", a.Config.User.Name)
	fmt.Fprintf(&b, "Chat:        %s (%d messages)\n", a.Messages.Title(), a.Messages.Len())
	fmt.Fprintf(&b, "Web search:  %s\n", onOff(a.Controller.WebSearch()))
	fmt.Fprintf(&b, "Background:  %s, %d running\n", onOff(a.Controller.BackgroundProcessing()), len(a.Registry.Pending()))
	fmt.Fprintf(&b, "Store:       %s", a.Config.Store.Kind)
	if s := env.staging().Summary(); s != "" {
		fmt.Fprintf(&b, "\nStaged:      %s", s)
	}
	return info("%s", b.String()), nil
}
