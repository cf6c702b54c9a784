// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/chatdesk/internal/cloud"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/session"
)

// Version information (overridden at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const usageText = `chatdesk - terminal chat client for DeepSeek and OpenAI-compatible APIs

Usage:
  chatdesk                        Start the chat window (line chat when not on a terminal)
  chatdesk tui                    Full-screen chat window
  chatdesk chat                   Line-oriented chat
  chatdesk ask "question"         Ask a single question (reads stdin when no question is given)
  chatdesk config [show|path|init]
                                  Show the config, print its path or write the defaults
  chatdesk version                Show version information

Flags:
  --config PATH                   Config file (default ~/.chatdesk/config.toml)
  -m, --model NAME                Model to use
  --url URL                       Chat completions endpoint
  --system TEXT                   System prompt
  --proxy URL                     Send requests through this HTTP proxy
  --insecure                      Skip TLS certificate verification
  --log-level LEVEL               debug, info, warn or error
  --no-markdown                   Print replies as plain text
  -h, --help                      Show this help
  -v, --version                   Show version information

Environment:
  CHATDESK_API_KEY, DEEPSEEK_API_KEY   API key
  CHATDESK_API_URL, CHATDESK_MODEL, CHATDESK_SYSTEM_PROMPT,
  CHATDESK_PROXY_URL, CHATDESK_VERIFY_TLS, CHATDESK_LOG_LEVEL
  A .env file in the working directory or the config directory is also read.

Chat window keys:
  Ctrl+S, Alt+Enter  send         Ctrl+L  clear history
  Tab, Shift+Tab     next field   Ctrl+P  toggle proxy
  Ctrl+T             toggle TLS   Ctrl+N  next model
  PgUp, PgDn         scroll       F1      all keys
  Ctrl+C             quit
`

// =============================================================================
// APP
// =============================================================================

// App runs chatdesk commands against the given streams.
type App struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Version string

	// Logger replaces the file logger when set.
	Logger *log.Logger

	// Interactive forces terminal mode on or off. nil detects it.
	Interactive *bool
}

// NewApp returns an App on the process streams.
func NewApp() *App {
	return &App{
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Version: Version,
	}
}

// runEnv is everything a command needs once config and logging are set up.
type runEnv struct {
	args       Args
	configPath string
	cfg        *config.Config
	logger     *log.Logger
	session    *session.Session
	client     *cloud.Client
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, argv []string) int {
	return NewApp().Run(ctx, argv)
}

// Run executes the command line and returns the process exit code.
func (a *App) Run(ctx context.Context, argv []string) int {
	configureColors()

	cmd, args, err := Parse(argv)
	if err != nil {
		fmt.Fprintln(a.Stderr, errorLine(err))
		fmt.Fprintln(a.Stderr, "Run 'chatdesk --help' for usage.")
		return GetExitCode(err)
	}

	if err := a.execute(ctx, cmd, args); err != nil {
		fmt.Fprintln(a.Stderr, errorLine(err))
		return GetExitCode(err)
	}
	return ExitSuccess
}

func (a *App) execute(ctx context.Context, cmd Command, args Args) error {
	switch cmd {
	case CmdHelp:
		fmt.Fprint(a.Stdout, usageText)
		return nil
	case CmdVersion:
		a.printVersion()
		return nil
	case CmdConfig:
		return a.runConfig(args)
	}

	env, closeLog, err := a.setup(args)
	if err != nil {
		return err
	}
	defer closeLog()

	env.logger.Info("starting", "command", cmd, "version", a.Version, "config", env.configPath)

	switch cmd {
	case CmdAsk:
		return a.runAsk(ctx, env)
	case CmdChat:
		return a.runChat(ctx, env)
	case CmdTUI:
		return a.runTUI(ctx, env)
	default:
		if a.interactive() {
			return a.runTUI(ctx, env)
		}
		return a.runChat(ctx, env)
	}
}

// setup loads the config, applies the flags and opens the log.
func (a *App) setup(args Args) (*runEnv, func(), error) {
	path, err := resolveConfigPath(args.ConfigPath)
	if err != nil {
		return nil, nil, &ConfigError{Path: args.ConfigPath, Err: err}
	}

	cfg, err := loadConfig(path, args)
	if err != nil {
		return nil, nil, err
	}

	logger, closeLog := a.openLog(cfg)
	cloud.UserAgent = "chatdesk/" + a.Version

	return &runEnv{
		args:       args,
		configPath: path,
		cfg:        cfg,
		logger:     logger,
		session:    session.New(cfg, session.WithLogger(logger)),
		client:     cloud.NewClient(cloud.WithLogger(logger)),
	}, closeLog, nil
}

// loadConfig reads path and overlays the flags.
func loadConfig(path string, args Args) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	args.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

func resolveConfigPath(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	return config.ConfigPath()
}

// openLog opens the log file named by cfg. Logging problems never stop
// the program; they fall back to discarding.
func (a *App) openLog(cfg *config.Config) (*log.Logger, func()) {
	if a.Logger != nil {
		return a.Logger, func() {}
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(a.Stderr, "Warning: %v\n", err)
	}

	path := cfg.Logging.File
	if path == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return logging.Discard(), func() {}
		}
		path = filepath.Join(dir, logging.DefaultFileName)
	}

	logger, f, err := logging.Open(path, level)
	if err != nil {
		fmt.Fprintf(a.Stderr, "Warning: logging disabled: %v\n", err)
		return logging.Discard(), func() {}
	}
	return logger, func() { f.Close() }
}

// watchConfig reloads the config file on change until ctx is done. fn
// receives each reloaded config with the flags overlaid, or the error that
// kept it from loading.
func (a *App) watchConfig(ctx context.Context, env *runEnv, fn config.ReloadFunc) {
	go func() {
		err := config.Watch(ctx, env.configPath, func(cfg *config.Config, err error) {
			if err == nil {
				env.args.Apply(cfg)
				err = cfg.Validate()
			}
			if err != nil {
				env.logger.Warn("config reload failed", "path", env.configPath, "error", err)
				fn(nil, err)
				return
			}
			env.logger.Info("config reloaded", "path", env.configPath)
			fn(cfg, nil)
		})
		if err != nil && ctx.Err() == nil {
			env.logger.Warn("config watch stopped", "error", err)
		}
	}()
}

// interactive reports whether stdin and stdout are both terminals.
func (a *App) interactive() bool {
	if a.Interactive != nil {
		return *a.Interactive
	}
	return IsTTY() && IsStdoutTTY()
}

func (a *App) printVersion() {
	fmt.Fprintf(a.Stdout, "chatdesk %s\n", a.Version)
	fmt.Fprintf(a.Stdout, "  commit: %s\n", GitCommit)
	fmt.Fprintf(a.Stdout, "  built:  %s\n", BuildDate)
	fmt.Fprintf(a.Stdout, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
