// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/commands"
	"github.com/efgfdsdfdf/edutrack/internal/config"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// closeTimeout bounds the final save on exit.
const closeTimeout = 5 * time.Second

// =============================================================================
// LINE EDITOR
// =============================================================================

// lineReader reads one line of input per prompt.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// lineEditor is a lineReader with history and tab completion.
type lineEditor struct {
	line        *liner.State
	historyFile string
	log         *zap.Logger
}

func newLineEditor(complete func(string) []string, log *zap.Logger) *lineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	if complete != nil {
		line.SetCompleter(complete)
	}

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	e := &lineEditor{line: line, historyFile: filepath.Join(dir, "chat_history"), log: log}
	if f, err := os.Open(e.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return e
}

func (e *lineEditor) Prompt(prompt string) (string, error) {
	input, err := e.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history and restores the terminal.
func (e *lineEditor) Close() error {
	saveHistory(e.log, e.historyFile, e.line)
	return e.line.Close()
}

// historyWriter is the part of liner.State that dumps the history.
type historyWriter interface {
	WriteHistory(w io.Writer) (int, error)
}

// saveHistory writes h to path. Prompt history is best effort, so a
// failure is only logged.
func saveHistory(log *zap.Logger, path string, h historyWriter) {
	var buf bytes.Buffer
	if _, err := h.WriteHistory(&buf); err != nil {
		log.Debug("chat history not serialized", zap.Error(err))
		return
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		log.Debug("chat history not saved", zap.String("path", path), zap.Error(err))
	}
}

// completeLine adapts the slash-command completer to liner.
func completeLine(c *commands.Completer) func(string) []string {
	return func(input string) []string {
		var out []string
		for _, comp := range c.Complete(input) {
			out = append(out, commands.ApplyCompletion(input, comp.Value))
		}
		return out
	}
}

// =============================================================================
// INTERACTIVE CHAT
// =============================================================================

// chatSession is one line-mode conversation.
type chatSession struct {
	r        *Runner
	app      *app.App
	args     Args
	ui       *lineUI
	in       lineReader
	registry *commands.Registry
	env      *commands.Env

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *Runner) runChat(ctx context.Context, a *app.App, args Args) (err error) {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := a.Close(closeCtx); err == nil {
			err = cerr
		}
	}()

	s := &chatSession{
		r:        r,
		app:      a,
		args:     args,
		registry: commands.NewRegistry(),
	}
	s.env = &commands.Env{App: a, Staged: &commands.Staging{}}
	s.ui = newLineUI(r.Stdout, a.Messages, a.Markdown, args.Quiet)

	in := r.reader
	if in == nil {
		completer := commands.NewCompleter(s.registry)
		completer.ChatsFn = func() []string { return chatIDs(ctx, a) }
		completer.NotesFn = func() []string { return noteTitles(ctx, a) }
		in = newLineEditor(completeLine(completer), a.Log)
	}
	s.in = in
	defer s.in.Close()

	if r.interactive() {
		s.ui.prompt = s.in.Prompt
	}
	a.Controller.SetUI(s.ui)
	a.Controller.SetRenderer(&lineRenderer{
		out:     r.Stdout,
		sched:   a.Typing,
		md:      a.Markdown,
		ui:      s.ui,
		animate: a.Config.Typing.Enabled && CanAnimate(),
		label:   true,
		log:     a.Log,
	})
	a.Dictation.SetHandlers(nil, func(text string) {
		fmt.Fprintln(r.Stdout, UserStyle.Render("You (dictated)")+" "+text)
		go s.send(ctx, text)
	}, func(err error) {
		s.ui.Toast(delivery.ToastError, err.Error())
	})
	a.OnExternalChange(func() {
		s.ui.markSeen()
		s.ui.Toast(delivery.ToastInfo, "Chat updated by another window")
	})

	stop := s.interruptSends()
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	s.ui.markSeen()
	s.banner()

	for {
		input, err := s.in.Prompt(s.prompt())
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			fmt.Fprintln(r.Stdout)
			return nil
		}

		input = strings.TrimSpace(input)
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit"):
			return nil
		case strings.HasPrefix(input, "/"):
			if quit := s.command(ctx, input); quit {
				return nil
			}
		default:
			s.send(ctx, input)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// interruptSends makes Ctrl+C cancel the send in flight instead of
// killing the process. Prompts read Ctrl+C themselves.
func (s *chatSession) interruptSends() func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sig:
				s.mu.Lock()
				cancel := s.cancel
				s.cancel = nil
				s.mu.Unlock()
				if cancel != nil {
					cancel()
					fmt.Fprintln(s.r.Stderr, "\n"+WarningStyle.Render("[Cancelled]"))
				}
			}
		}
	}()
	return func() {
		signal.Stop(sig)
		close(done)
	}
}

func (s *chatSession) banner() {
	if s.args.Quiet {
		return
	}
	a := s.app
	st := a.Monitor.Current()
	fmt.Fprintln(s.r.Stdout, TitleStyle.Render("edutrack")+"  "+RenderBadge(st)+"  "+MutedStyle.Render(a.Messages.User()))
	fmt.Fprintln(s.r.Stdout, MutedStyle.Render(fmt.Sprintf("%s, %d message(s). /help for commands, Ctrl+D to quit.",
		a.Messages.Title(), a.Messages.Len())))
}

func (s *chatSession) prompt() string {
	if n := s.env.Staged.Len(); n > 0 {
		return fmt.Sprintf("you [%d attached]> ", n)
	}
	return "you> "
}

// send submits text with the staged attachments and settles a file-mode
// question the send raised.
func (s *chatSession) send(ctx context.Context, text string) {
	sendCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	s.app.Presence.RecordActivity()
	atts := s.env.Staged.Take()
	_, err := s.app.Controller.Submit(sendCtx, text, atts)
	switch {
	case errors.Is(err, delivery.ErrBusy), errors.Is(err, delivery.ErrEmptyMessage), errors.Is(err, delivery.ErrAlreadySending):
		s.env.Staged.Restore(atts)
		s.ui.Toast(delivery.ToastWarning, err.Error())
		return
	case err != nil:
		s.ui.Toast(delivery.ToastError, err.Error())
	}

	if id, files, ok := s.ui.takeChoice(); ok {
		mode := s.askFileMode(files)
		if err := s.app.Controller.ChooseFileMode(sendCtx, id, mode); err != nil {
			s.ui.Toast(delivery.ToastError, err.Error())
		}
	}
}

// askFileMode asks whether several files go separately or joined. Without
// a terminal they go separately.
func (s *chatSession) askFileMode(files int) model.FileMode {
	if s.ui.prompt == nil {
		return model.FileModeSeparate
	}
	for {
		answer, err := s.ui.prompt(fmt.Sprintf("%d files attached. Send them [s]eparately or [j]oined? ", files))
		if err != nil {
			return model.FileModeSeparate
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "", "s", "separate", "separately":
			return model.FileModeSeparate
		case "j", "join", "joined":
			return model.FileModeJoin
		}
	}
}

// command runs a slash command and reports whether the session should end.
func (s *chatSession) command(ctx context.Context, input string) bool {
	res, err := s.registry.Execute(ctx, s.env, input)
	if err != nil {
		fmt.Fprintln(s.r.Stderr, RenderToast(delivery.ToastError, err.Error()))
		return false
	}
	if res.Reloaded {
		s.ui.markSeen()
	}
	s.printResult(res)
	return res.Quit
}

func (s *chatSession) printResult(res commands.Result) {
	out := s.r.Stdout
	switch {
	case res.Help:
		fmt.Fprintln(out, s.registry.HelpText())
		return
	case len(res.Chats) > 0:
		printChats(out, res.Chats, s.app.Messages.ChatID())
		return
	case len(res.Notes) > 0:
		for i, n := range res.Notes {
			fmt.Fprintf(out, "%3d  %s  %s\n", i+1, ValueStyle.Render(n.Title),
				MutedStyle.Render(util.FirstWords(n.Content, 8)))
		}
		return
	}
	if res.Message == "" {
		return
	}
	if strings.Contains(res.Message, "\n") {
		fmt.Fprintln(out, res.Message)
		return
	}
	fmt.Fprintln(out, RenderToast(res.Level, res.Message))
}

// printChats lists chats newest first, marking the open one.
func printChats(out io.Writer, chats []model.ChatSummary, current string) {
	width := GetTerminalWidth() - 30
	if width < 20 {
		width = 20
	}
	for i, c := range chats {
		mark := " "
		if c.ID == current {
			mark = "*"
		}
		fmt.Fprintf(out, "%s%3d  %s  %s  %s\n", mark, i+1,
			ValueStyle.Render(util.TruncateWidth(c.Title, width)),
			MutedStyle.Render(fmt.Sprintf("%d msg", c.MessageCount)),
			MutedStyle.Render(humanize.Time(c.Timestamp)))
	}
}

func chatIDs(ctx context.Context, a *app.App) []string {
	chats, err := a.Messages.ListChats(ctx)
	if err != nil {
		a.Log.Debug("chat list for completion failed", zap.Error(err))
		return nil
	}
	ids := make([]string, len(chats))
	for i, c := range chats {
		ids[i] = c.ID
	}
	return ids
}

func noteTitles(ctx context.Context, a *app.App) []string {
	notes, err := a.Notes.List(ctx)
	if err != nil {
		return nil
	}
	titles := make([]string, len(notes))
	for i, n := range notes {
		titles[i] = n.Title
	}
	return titles
}
