// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/efgfdsdfdf/edutrack/internal/commands"
	"github.com/efgfdsdfdf/edutrack/internal/config"
	"github.com/efgfdsdfdf/edutrack/internal/storage"
	"github.com/efgfdsdfdf/edutrack/internal/transport"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates there is no usable user name
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a malformed command line.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// UnknownCommandError names a command that does not exist.
type UnknownCommandError struct {
	Name       string
	Suggestion string
}

func (e *UnknownCommandError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown command %q, did you mean %q?", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown command %q, run 'edutrack help' for usage", e.Name)
}

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err with the command and the step that failed.
func NewCommandError(command, action string, err error) error {
	return &CommandError{Command: command, Action: action, Err: err}
}

// ErrSendFailed is returned by ask when the question could not be delivered.
var ErrSendFailed = errors.New("the question could not be delivered")

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	var (
		usage     *UsageError
		unknown   *UnknownCommandError
		valErr    config.ValidationError
		valErrs   config.ValidateErrors
		transErr  *transport.Error
		cmdValErr *commands.ValidationError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage), errors.As(err, &unknown), errors.As(err, &cmdValErr):
		return ExitUsageError
	case errors.As(err, &valErr), errors.As(err, &valErrs):
		return ExitConfigError
	case errors.Is(err, storage.ErrNoUser):
		return ExitAuthError
	case errors.As(err, &transErr), errors.Is(err, ErrSendFailed):
		return ExitNetworkError
	case errors.Is(err, commands.ErrChatNotFound):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}

// DisplayError prints err to w in the CLI error style.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("[Error]"), err)

	var unknown *UnknownCommandError
	if errors.As(err, &unknown) || ExitCode(err) == ExitUsageError {
		fmt.Fprintln(w, MutedStyle.Render("Run 'edutrack help' for usage."))
	}
	if errors.Is(err, storage.ErrNoUser) {
		fmt.Fprintln(w, MutedStyle.Render("Set a user with --user NAME or EDUTRACK_USER."))
	}
}
