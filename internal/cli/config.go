// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/config"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

// runConfig handles "edutrack config [show|path|init|get|set|keys]".
func (r *Runner) runConfig(args Args) error {
	raw := args.Raw
	if len(raw) > 0 && !strings.HasPrefix(raw[0], "-") {
		raw = raw[1:]
	}
	p := NewArgParser(raw, "force")

	path, err := configPath(args)
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "show":
		cfg, err := app.LoadConfig(args.Overrides)
		if cfg == nil {
			return err
		}
		fmt.Fprintln(r.Stdout, cfg.String())
		return nil

	case "path":
		fmt.Fprintln(r.Stdout, path)
		return nil

	case "init":
		if _, err := os.Stat(path); err == nil && !p.BoolFlag("force") {
			return &UsageError{Message: path + " already exists; use --force to overwrite it"}
		}
		cfg := config.Default()
		cfg.SetDefaults()
		if err := saveConfig(cfg, path); err != nil {
			return NewCommandError("config", "write", err)
		}
		fmt.Fprintln(r.Stdout, RenderToast(delivery.ToastSuccess, "Wrote "+path))
		return nil

	case "get":
		if p.PositionalCount() != 1 {
			return &UsageError{Message: "usage: edutrack config get <key>"}
		}
		cfg, err := app.LoadConfig(args.Overrides)
		if cfg == nil {
			return err
		}
		v, err := cfg.Get(p.Positional(0))
		if err != nil {
			return &UsageError{Message: err.Error()}
		}
		fmt.Fprintln(r.Stdout, v)
		return nil

	case "set":
		if p.PositionalCount() < 2 {
			return &UsageError{Message: "usage: edutrack config set <key> <value>"}
		}
		key, value := p.Positional(0), strings.Join(p.PositionalFrom(1), " ")
		cfg, err := loadFile(path)
		if err != nil {
			return err
		}
		if err := cfg.Set(key, value); err != nil {
			return &UsageError{Message: err.Error()}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := saveConfig(cfg, path); err != nil {
			return NewCommandError("config", "write", err)
		}
		fmt.Fprintln(r.Stdout, RenderToast(delivery.ToastSuccess, fmt.Sprintf("%s = %s", key, value)))
		return nil

	case "keys":
		for _, k := range config.Keys() {
			fmt.Fprintln(r.Stdout, k)
		}
		return nil
	}
	return &UsageError{Message: fmt.Sprintf("unknown config subcommand %q (show, path, init, get, set, keys)", args.Subcommand)}
}

func configPath(args Args) (string, error) {
	if args.Overrides.ConfigPath != "" {
		return args.Overrides.ConfigPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", NewCommandError("config", "locate", err)
	}
	return path, nil
}

// loadFile reads path, or the defaults when it does not exist yet.
func loadFile(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := config.Default()
		cfg.SetDefaults()
		return cfg, nil
	}
	return config.LoadFromPath(path)
}

func saveConfig(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
