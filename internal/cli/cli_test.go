// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/commands"
	"github.com/efgfdsdfdf/edutrack/internal/config"
	"github.com/efgfdsdfdf/edutrack/internal/export"
	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/render"
	"github.com/efgfdsdfdf/edutrack/internal/storage"
	"github.com/efgfdsdfdf/edutrack/internal/transport"
)

// =============================================================================
// PARSING
// =============================================================================

func TestParseCommands(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
		sub  string
	}{
		{nil, CmdTUI, ""},
		{[]string{"tui"}, CmdTUI, ""},
		{[]string{"chat"}, CmdChat, ""},
		{[]string{"repl"}, CmdChat, ""},
		{[]string{"status"}, CmdStatus, ""},
		{[]string{"s"}, CmdStatus, ""},
		{[]string{"chats"}, CmdChats, "list"},
		{[]string{"sessions", "show", "2"}, CmdChats, "show"},
		{[]string{"chats", "--json"}, CmdChats, "list"},
		{[]string{"config"}, CmdConfig, "show"},
		{[]string{"config", "SET", "user.name", "bob"}, CmdConfig, "set"},
		{[]string{"version"}, CmdVersion, ""},
		{[]string{"--version"}, CmdVersion, ""},
		{[]string{"help"}, CmdHelp, ""},
		{[]string{"-h"}, CmdHelp, ""},
		{[]string{"chat", "--help"}, CmdHelp, ""},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, " "), func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
			assert.Equal(t, tt.sub, args.Subcommand)
		})
	}
}

func TestParseGlobalFlags(t *testing.T) {
	cmd, args, err := Parse([]string{
		"--user", "alice", "--backend=http://localhost:9000", "--store", "bolt",
		"chat", "--mock", "--no-background", "-v", "-q", "--config", "/tmp/x.toml",
	})
	require.NoError(t, err)
	assert.Equal(t, CmdChat, cmd)
	assert.Equal(t, app.Overrides{
		ConfigPath:   "/tmp/x.toml",
		User:         "alice",
		BackendURL:   "http://localhost:9000",
		StoreKind:    "bolt",
		NoBackground: true,
		Mock:         true,
		Verbose:      true,
	}, args.Overrides)
	assert.True(t, args.Quiet)
}

func TestParseFlagMissingValue(t *testing.T) {
	_, _, err := Parse([]string{"--user"})
	var usage *UsageError
	require.ErrorAs(t, err, &usage)
	assert.Contains(t, usage.Message, "--user")
}

func TestParseAsk(t *testing.T) {
	tests := []struct {
		name  string
		argv  []string
		query string
		files []string
		join  bool
	}{
		{"words", []string{"ask", "what", "is", "osmosis"}, "what is osmosis", nil, false},
		{"files", []string{"ask", "-f", "a.pdf", "--file=b.txt", "summarize"}, "summarize", []string{"a.pdf", "b.txt"}, false},
		{"join", []string{"ask", "--join", "-f", "a.pdf", "-f", "b.pdf"}, "", []string{"a.pdf", "b.pdf"}, true},
		{"dash dash", []string{"ask", "--", "-f", "is", "a flag"}, "-f is a flag", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			require.NoError(t, err)
			assert.Equal(t, CmdAsk, cmd)
			assert.Equal(t, tt.query, args.Query)
			assert.Equal(t, tt.files, args.Files)
			assert.Equal(t, tt.join, args.Join)
		})
	}
}

func TestParseAskNeedsQuestion(t *testing.T) {
	_, _, err := Parse([]string{"ask"})
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, _, err = Parse([]string{"ask", "-f"})
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestParseUnknownCommandSuggests(t *testing.T) {
	_, _, err := Parse([]string{"stauts"})
	var unknown *UnknownCommandError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "status", unknown.Suggestion)
	assert.Contains(t, err.Error(), `did you mean "status"`)

	_, _, err = Parse([]string{"xyzzy"})
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, unknown.Suggestion)
}

func TestSuggestCommand(t *testing.T) {
	assert.Equal(t, "chats", SuggestCommand("chts"))
	assert.Equal(t, "config", SuggestCommand("confg"))
	assert.Empty(t, SuggestCommand("chat"))
	assert.Empty(t, SuggestCommand("q"))
}

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"delete", "3", "--yes", "--limit", "5", "--mode=join", "--", "--literal"}, "yes")
	assert.Equal(t, "delete", p.Subcommand())
	assert.Equal(t, "3", p.Positional(1))
	assert.Equal(t, "--literal", p.Positional(2))
	assert.Equal(t, 3, p.PositionalCount())
	assert.True(t, p.BoolFlag("yes"))
	assert.Equal(t, 5, p.FlagIntOrDefault("limit", 1))
	assert.Equal(t, "join", p.Flag("mode"))
	assert.Equal(t, "x", p.FlagOrDefault("missing", "x"))
	assert.False(t, p.HasFlag("missing"))
	assert.Empty(t, p.Positional(9))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "Y", "true", "1", "on"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "N", "false", "0", "off"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Message: "bad"}, ExitUsageError},
		{"unknown command", &UnknownCommandError{Name: "x"}, ExitUsageError},
		{"slash command args", &commands.ValidationError{Command: "/edit", Message: "missing"}, ExitUsageError},
		{"config", fmt.Errorf("invalid config: %w", config.ValidationError{Field: "user.name", Message: "bad"}), ExitConfigError},
		{"no user", storage.ErrNoUser, ExitAuthError},
		{"transport", &transport.Error{Message: "down"}, ExitNetworkError},
		{"send failed", fmt.Errorf("%w: later", ErrSendFailed), ExitNetworkError},
		{"chat missing", fmt.Errorf("%q: %w", "9", commands.ErrChatNotFound), ExitNotFoundError},
		{"wrapped command", NewCommandError("chats", "list", commands.ErrChatNotFound), ExitNotFoundError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestDisplayErrorHints(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, &UsageError{Message: "ask needs a question"})
	assert.Contains(t, buf.String(), "ask needs a question")
	assert.Contains(t, buf.String(), "edutrack help")

	buf.Reset()
	DisplayError(&buf, storage.ErrNoUser)
	assert.Contains(t, buf.String(), "--user")

	buf.Reset()
	DisplayError(&buf, nil)
	assert.Empty(t, buf.String())
}

// =============================================================================
// COMMANDS
// =============================================================================

type scriptReader struct {
	lines []string
}

func (s *scriptReader) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptReader) Close() error { return nil }

func newRunner(stdin string) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &Runner{
		Stdin:       strings.NewReader(stdin),
		Stdout:      &out,
		Stderr:      &errOut,
		Interactive: func() bool { return false },
	}, &out, &errOut
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	t.Setenv("EDUTRACK_HOME", t.TempDir())
	cfg := config.Default()
	cfg.User.Name = "alice"
	cfg.Backend.Mock = true
	cfg.Store.Kind = "memory"
	cfg.Typing.Enabled = false
	cfg.SetDefaults()

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

// seedChats leaves two chats: an older one with a question, and an empty
// open one.
func seedChats(t *testing.T, a *app.App) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	_, err := a.Controller.Submit(ctx, "what is osmosis", nil)
	require.NoError(t, err)
	require.NoError(t, a.Messages.Save(ctx))
	time.Sleep(2 * time.Millisecond)
	_, err = a.NewChat(ctx)
	require.NoError(t, err)
}

func TestRunHelpAndVersion(t *testing.T) {
	r, out, _ := newRunner("")
	require.NoError(t, r.Run(context.Background(), CmdHelp, Args{}))
	assert.Contains(t, out.String(), "edutrack")
	assert.Contains(t, out.String(), "ask")

	out.Reset()
	require.NoError(t, r.Run(context.Background(), CmdVersion, Args{}))
	assert.Contains(t, out.String(), Version)
}

func TestRunRequiresUser(t *testing.T) {
	t.Setenv("EDUTRACK_HOME", t.TempDir())
	t.Setenv("EDUTRACK_USER", "")
	r, _, _ := newRunner("")
	err := r.Run(context.Background(), CmdStatus, Args{Overrides: app.Overrides{StoreKind: "memory", Mock: true}})
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, ExitCode(err))
}

func TestChatsList(t *testing.T) {
	a := newTestApp(t)
	seedChats(t, a)

	r, out, _ := newRunner("")
	require.NoError(t, r.runChats(context.Background(), a, Args{Subcommand: "list"}))
	lines := strings.Split(strings.TrimSpace(render.StripANSI(out.String())), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "*"), "open chat is marked")
	assert.Contains(t, lines[1], "2 msg")
}

func TestChatsListJSON(t *testing.T) {
	a := newTestApp(t)
	seedChats(t, a)

	r, out, _ := newRunner("")
	require.NoError(t, r.runChats(context.Background(), a, Args{Subcommand: "list", JSON: true}))
	var chats []model.ChatSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &chats))
	require.Len(t, chats, 2)
	assert.Equal(t, "alice", chats[0].UserID)
	assert.Equal(t, 2, chats[1].MessageCount)
}

func TestChatsShowKeepsOpenChat(t *testing.T) {
	a := newTestApp(t)
	seedChats(t, a)
	open := a.Messages.ChatID()

	r, out, _ := newRunner("")
	require.NoError(t, r.runChats(context.Background(), a, Args{Subcommand: "show", Raw: []string{"show", "2"}}))
	text := render.StripANSI(out.String())
	assert.Contains(t, text, "You #1")
	assert.Contains(t, text, "what is osmosis")
	assert.Contains(t, text, "Assistant")
	assert.Equal(t, open, a.Messages.ChatID())
}

func TestChatsShowErrors(t *testing.T) {
	a := newTestApp(t)
	seedChats(t, a)
	r, _, _ := newRunner("")

	err := r.runChats(context.Background(), a, Args{Subcommand: "show", Raw: []string{"show"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))

	a = newTestApp(t)
	seedChats(t, a)
	err = r.runChats(context.Background(), a, Args{Subcommand: "show", Raw: []string{"show", "nope"}})
	assert.Equal(t, ExitNotFoundError, ExitCode(err))
}

func TestChatsExport(t *testing.T) {
	a := newTestApp(t)
	seedChats(t, a)
	open := a.Messages.ChatID()
	dir := t.TempDir()

	r, out, _ := newRunner("")
	require.NoError(t, r.runChats(context.Background(), a, Args{
		Subcommand: "export",
		Raw:        []string{"export", "2", "--format", "json", "--out", dir},
	}))
	path := strings.TrimSpace(out.String())
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".json", filepath.Ext(path))
	assert.Equal(t, open, a.Messages.ChatID())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "what is osmosis")
}

func TestChatsExportErrors(t *testing.T) {
	a := newTestApp(t)
	seedChats(t, a)
	r, _, _ := newRunner("")

	err := r.runChats(context.Background(), a, Args{Subcommand: "export", Raw: []string{"export", "2", "--format", "pdf"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))

	a = newTestApp(t)
	seedChats(t, a)
	err = r.runChats(context.Background(), a, Args{Subcommand: "export", Raw: []string{"export", "1", "--out", t.TempDir()}})
	assert.ErrorIs(t, err, export.ErrEmptyChat)
}

func TestChatsDelete(t *testing.T) {
	tests := []struct {
		name        string
		raw         []string
		interactive bool
		stdin       string
		wantErr     bool
		wantLeft    int
	}{
		{"yes flag", []string{"delete", "2", "--yes"}, false, "", false, 1},
		{"short yes flag", []string{"delete", "2", "-y"}, false, "", false, 1},
		{"confirmed", []string{"delete", "2"}, true, "y\n", false, 1},
		{"declined", []string{"delete", "2"}, true, "n\n", false, 2},
		{"not a terminal", []string{"delete", "2"}, false, "", true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t)
			seedChats(t, a)
			r, _, _ := newRunner(tt.stdin)
			r.Interactive = func() bool { return tt.interactive }

			err := r.runChats(context.Background(), a, Args{Subcommand: "delete", Raw: tt.raw})
			if tt.wantErr {
				assert.Equal(t, ExitUsageError, ExitCode(err))
			} else {
				require.NoError(t, err)
			}
			chats, err := a.Messages.ListChats(context.Background())
			require.NoError(t, err)
			assert.Len(t, chats, tt.wantLeft)
		})
	}
}

func TestStatusJSON(t *testing.T) {
	a := newTestApp(t)
	seedChats(t, a)

	r, out, _ := newRunner("")
	require.NoError(t, r.runStatus(context.Background(), a, Args{JSON: true}))
	var rep StatusReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.Equal(t, "alice", rep.User)
	assert.Equal(t, "memory", rep.Store)
	assert.Equal(t, 2, rep.Chats)
	assert.Equal(t, "[MOCK]", rep.Status)
	assert.Equal(t, Version, rep.Version)
}

func TestStatusText(t *testing.T) {
	a := newTestApp(t)
	r, out, _ := newRunner("")
	require.NoError(t, r.runStatus(context.Background(), a, Args{}))
	text := render.StripANSI(out.String())
	assert.Contains(t, text, "alice")
	assert.Contains(t, text, "[MOCK]")
	assert.Contains(t, text, "memory")
}

func TestAskJSON(t *testing.T) {
	a := newTestApp(t)
	r, out, _ := newRunner("")

	err := r.runAsk(context.Background(), a, Args{Query: "what is osmosis", JSON: true})
	require.NoError(t, err)

	var res AskResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "what is osmosis", res.Question)
	assert.False(t, res.Failed)
	require.Len(t, res.Replies, 1)
	assert.Contains(t, res.Replies[0], "Hello alice")
	assert.NotEmpty(t, res.ChatID)
}

func TestAskPrintsReply(t *testing.T) {
	a := newTestApp(t)
	r, out, _ := newRunner("")

	require.NoError(t, r.runAsk(context.Background(), a, Args{Query: "hello there", Quiet: true}))
	assert.Contains(t, render.StripANSI(out.String()), "alice")
}

func TestAskMissingFile(t *testing.T) {
	a := newTestApp(t)
	r, _, _ := newRunner("")
	err := r.runAsk(context.Background(), a, Args{Query: "summarize", Files: []string{filepath.Join(t.TempDir(), "none.pdf")}})
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestChatSession(t *testing.T) {
	a := newTestApp(t)
	r, out, errOut := newRunner("")
	r.reader = &scriptReader{lines: []string{"", "what is osmosis", "/web on", "/bogus", "/quit", "never read"}}

	require.NoError(t, r.runChat(context.Background(), a, Args{Quiet: true}))
	text := render.StripANSI(out.String())
	assert.Contains(t, text, "Assistant")
	assert.Contains(t, text, "alice")
	assert.Contains(t, text, "Web search on")
	assert.Contains(t, render.StripANSI(errOut.String()), "/bogus")
	assert.Equal(t, 2, a.Messages.Len())
}

func TestChatSessionListsChats(t *testing.T) {
	a := newTestApp(t)
	r, out, _ := newRunner("")
	r.reader = &scriptReader{lines: []string{"/chats", "exit"}}

	require.NoError(t, r.runChat(context.Background(), a, Args{Quiet: true}))
	assert.Contains(t, render.StripANSI(out.String()), "*")
}

type fakeHistory struct {
	lines string
	err   error
}

func (h fakeHistory) WriteHistory(w io.Writer) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	return io.WriteString(w, h.lines)
}

func TestSaveHistory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	tests := []struct {
		name    string
		path    string
		history fakeHistory
		logged  string
	}{
		{"written", filepath.Join(dir, "sub", "chat_history"), fakeHistory{lines: "/help\nhello\n"}, ""},
		{"unwritable path", filepath.Join(blocker, "chat_history"), fakeHistory{lines: "hello\n"}, "chat history not saved"},
		{"history unreadable", filepath.Join(dir, "other"), fakeHistory{err: errors.New("closed")}, "chat history not serialized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			saveHistory(zap.New(core), tt.path, tt.history)

			if tt.logged == "" {
				assert.Zero(t, logs.Len())
				data, err := os.ReadFile(tt.path)
				require.NoError(t, err)
				assert.Equal(t, tt.history.lines, string(data))
				return
			}
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.logged, entry.Message)
			assert.Equal(t, zap.DebugLevel, entry.Level)
			assert.NoFileExists(t, tt.path)
		})
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigInitGetSet(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EDUTRACK_HOME", home)
	path := filepath.Join(home, "config.toml")
	ctx := context.Background()

	r, out, _ := newRunner("")
	require.NoError(t, r.Run(ctx, CmdConfig, Args{Subcommand: "path"}))
	assert.Equal(t, path, strings.TrimSpace(out.String()))

	require.NoError(t, r.Run(ctx, CmdConfig, Args{Subcommand: "init", Raw: []string{"init"}}))
	_, err := os.Stat(path)
	require.NoError(t, err)

	err = r.Run(ctx, CmdConfig, Args{Subcommand: "init", Raw: []string{"init"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))
	require.NoError(t, r.Run(ctx, CmdConfig, Args{Subcommand: "init", Raw: []string{"init", "--force"}}))

	require.NoError(t, r.Run(ctx, CmdConfig, Args{Subcommand: "set", Raw: []string{"set", "user.name", "bob"}}))
	out.Reset()
	require.NoError(t, r.Run(ctx, CmdConfig, Args{Subcommand: "get", Raw: []string{"get", "user.name"}}))
	assert.Equal(t, "bob", strings.TrimSpace(out.String()))

	err = r.Run(ctx, CmdConfig, Args{Subcommand: "get", Raw: []string{"get", "no.such"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestConfigShowRedactsPassword(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EDUTRACK_HOME", home)
	cfg := config.Default()
	cfg.SetDefaults()
	cfg.Store.RedisPassword = "hunter2"
	require.NoError(t, config.SaveTOML(cfg, filepath.Join(home, "config.toml")))

	r, out, _ := newRunner("")
	require.NoError(t, r.Run(context.Background(), CmdConfig, Args{Subcommand: "show"}))
	assert.NotContains(t, out.String(), "hunter2")
	assert.Contains(t, out.String(), "[REDACTED]")
}

func TestConfigKeysAndUnknown(t *testing.T) {
	t.Setenv("EDUTRACK_HOME", t.TempDir())
	r, out, _ := newRunner("")
	require.NoError(t, r.Run(context.Background(), CmdConfig, Args{Subcommand: "keys"}))
	assert.Contains(t, out.String(), "backend.url")
	assert.Contains(t, out.String(), "store.kind")

	err := r.Run(context.Background(), CmdConfig, Args{Subcommand: "frobnicate"})
	assert.Equal(t, ExitUsageError, ExitCode(err))
}
