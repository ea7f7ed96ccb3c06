// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/logging"
	"github.com/efgfdsdfdf/edutrack/internal/ui/chat"
)

// Runner executes parsed commands.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interactive reports whether prompts can be shown. Defaults to a
	// stdin TTY check.
	Interactive func() bool

	// reader replaces the line editor of the interactive chat.
	reader lineReader
}

// NewRunner returns a Runner on the process's standard streams.
func NewRunner() *Runner {
	return &Runner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr, Interactive: CanPrompt}
}

func (r *Runner) interactive() bool {
	if r.Interactive == nil {
		return CanPrompt()
	}
	return r.Interactive()
}

// Run executes cmd.
func (r *Runner) Run(ctx context.Context, cmd Command, args Args) error {
	switch cmd {
	case CmdHelp:
		PrintUsage(r.Stdout)
		return nil
	case CmdVersion:
		PrintVersion(r.Stdout)
		return nil
	case CmdConfig:
		return r.runConfig(args)
	}

	// The full-screen chat owns the terminal, so it never logs to it.
	a, err := r.openApp(ctx, args, cmd != CmdTUI)
	if err != nil {
		return err
	}

	switch cmd {
	case CmdTUI:
		return chat.Run(ctx, a)
	case CmdChat:
		return r.runChat(ctx, a, args)
	case CmdAsk:
		return r.runAsk(ctx, a, args)
	case CmdChats:
		return r.runChats(ctx, a, args)
	case CmdStatus:
		return r.runStatus(ctx, a, args)
	}
	_ = a.Close(ctx)
	return fmt.Errorf("command %s is not runnable", cmd)
}

// confirm asks a yes/no question on Stdin. Anything but yes declines.
func (r *Runner) confirm(question string) bool {
	if r.Stdin == nil {
		return false
	}
	fmt.Fprint(r.Stderr, question)
	answer, err := bufio.NewReader(r.Stdin).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	ok, _ := ParseBoolString(strings.TrimSpace(answer))
	return ok
}

// openApp loads the configuration and builds the engine.
func (r *Runner) openApp(ctx context.Context, args Args, console bool) (*app.App, error) {
	cfg, err := app.LoadConfig(args.Overrides)
	if cfg == nil {
		return nil, err
	}
	if err != nil && !args.Quiet {
		fmt.Fprintln(r.Stderr, RenderToast(delivery.ToastWarning, "config file unreadable, using defaults: "+err.Error()))
	}

	log, err := logging.New(logging.FromConfig(cfg.Logging, console && args.Overrides.Verbose))
	if err != nil {
		return nil, NewCommandError("edutrack", "start logging", err)
	}
	return app.New(ctx, cfg, log)
}
