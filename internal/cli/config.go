// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - The "config" command.
//
//	chatdesk config show   Print the effective config with the key redacted
//	chatdesk config path   Print the config file path
//	chatdesk config init   Write a default config file
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/chatdesk/internal/config"
)

// ErrConfigExists is returned by "config init" when the file is present.
var ErrConfigExists = errors.New("config file already exists")

func (a *App) runConfig(args Args) error {
	path, err := resolveConfigPath(args.ConfigPath)
	if err != nil {
		return &ConfigError{Path: args.ConfigPath, Err: err}
	}

	switch args.Subcommand {
	case "path":
		fmt.Fprintln(a.Stdout, path)
		return nil

	case "init":
		if _, err := os.Stat(path); err == nil {
			return &CommandError{Command: "config", Action: "init", Reason: path, Err: ErrConfigExists}
		}
		if err := config.Save(config.Default(), path); err != nil {
			return &CommandError{Command: "config", Action: "init", Reason: "cannot write " + path, Err: err}
		}
		fmt.Fprintf(a.Stdout, "%s %s\n", commandStyle.Render("wrote"), path)
		return nil

	default:
		cfg, err := loadConfig(path, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Stdout, "%s\n\n", infoStyle.Render("# "+path))
		fmt.Fprint(a.Stdout, cfg.String())
		return nil
	}
}
