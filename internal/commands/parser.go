// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strconv"
	"strings"
	"unicode"
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// ParseResult is one slash command line split into its parts.
type ParseResult struct {
	// Command is the registered command, nil when Name is unknown.
	Command *Command

	// Name is the command word as typed, e.g. "/R".
	Name string

	// Args are the tokens after the name, quotes removed.
	Args []string

	// Text is everything after the name, untouched.
	Text string
}

// Parse splits input into a command and its arguments. ok is false when
// input is not a slash command.
func (r *Registry) Parse(input string) (res ParseResult, ok bool) {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return ParseResult{}, false
	}

	res.Name = CommandName(input)
	res.Text = strings.TrimSpace(input[len(res.Name):])
	res.Args = Tokenize(res.Text)
	res.Command = r.Get(res.Name)
	return res, true
}

// =============================================================================
// TOKENS
// =============================================================================

// IsCommand reports whether input is a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// CommandName is the first word of a slash command, "" for other input.
func CommandName(input string) string {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return ""
	}
	if end := strings.IndexFunc(input, unicode.IsSpace); end >= 0 {
		return input[:end]
	}
	return input
}

// Tokenize splits s at spaces. Single or double quotes group words, and a
// backslash inside quotes escapes a quote or another backslash.
func Tokenize(s string) []string {
	var (
		tokens  []string
		cur     strings.Builder
		quote   rune
		started bool
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote != 0 && c == '\\' && i+1 < len(runes) && strings.ContainsRune(`"'\`, runes[i+1]):
			i++
			cur.WriteRune(runes[i])
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote, started = c, true
		case quote == 0 && unicode.IsSpace(c):
			if started {
				tokens = append(tokens, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(c)
			started = true
		}
	}
	if started {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateArgs checks args against the argument definitions of cmd.
func ValidateArgs(cmd *Command, args []string) error {
	if cmd == nil {
		return nil
	}
	for i, def := range cmd.Args {
		if i >= len(args) {
			if def.Required {
				return &ValidationError{Command: cmd.Name, Arg: def.Name, Message: "missing", Expected: def.Description}
			}
			continue
		}

		switch def.Type {
		case ArgTypeEnum:
			if len(def.Values) > 0 && !containsFold(def.Values, args[i]) {
				return &ValidationError{
					Command:  cmd.Name,
					Arg:      def.Name,
					Message:  "invalid value",
					Got:      args[i],
					Expected: strings.Join(def.Values, ", "),
				}
			}
		case ArgTypeMessage:
			if n, err := strconv.Atoi(strings.TrimPrefix(args[i], "#")); err != nil || n < 1 {
				return &ValidationError{
					Command:  cmd.Name,
					Arg:      def.Name,
					Message:  "not a message number",
					Got:      args[i],
					Expected: "a number from the chat, e.g. 3",
					Err:      ErrBadNumber,
				}
			}
		}
	}
	return nil
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// ValidationError is a slash command typed with bad arguments.
type ValidationError struct {
	Command  string
	Arg      string
	Message  string
	Got      string
	Expected string

	// Err is a sentinel the error also matches, if any.
	Err error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Command)
	if e.Arg != "" {
		b.WriteString(" <" + e.Arg + ">")
	}
	b.WriteString(": " + e.Message)
	if e.Got != "" {
		b.WriteString(" " + strconv.Quote(e.Got))
	}
	if e.Expected != "" {
		b.WriteString(" (expected " + e.Expected + ")")
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }
