// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jeranaias/chatdesk/internal/config"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits raw arguments into flags and positional arguments.
// It handles these formats:
//   - Long flags: --flag value or --flag=value
//   - Short flags: -f value
//   - Boolean flags: --flag (only for names passed as boolean)
//   - "--" ends flag parsing; everything after it is positional
type ArgParser struct {
	subcommand string
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
	raw        []string
}

// NewArgParser parses raw. Flags named in boolNames take no value; every
// other flag consumes the next argument.
//
// Example:
//
//	p, _ := NewArgParser([]string{"ask", "--model", "deepseek-chat", "--insecure", "hi"}, "insecure")
//	p.Subcommand()        // "ask"
//	p.Flag("model")       // "deepseek-chat"
//	p.BoolFlag("insecure") // true
//	p.PositionalFrom(1)   // ["hi"]
func NewArgParser(raw []string, boolNames ...string) (*ArgParser, error) {
	p := &ArgParser{
		flags:      make(map[string]string),
		boolFlags:  make(map[string]bool),
		positional: make([]string, 0),
		raw:        raw,
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			p.positional = append(p.positional, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if n, value, ok := strings.Cut(name, "="); ok {
			if slices.Contains(boolNames, n) {
				b, err := ParseBoolString(value)
				if err != nil {
					return nil, &UsageError{Msg: fmt.Sprintf("--%s: %v", n, err)}
				}
				p.boolFlags[n] = b
			} else {
				p.flags[n] = value
			}
			continue
		}

		if slices.Contains(boolNames, name) {
			p.boolFlags[name] = true
			continue
		}
		if i+1 >= len(raw) {
			return nil, &UsageError{Msg: fmt.Sprintf("flag --%s needs a value", name)}
		}
		p.flags[name] = raw[i+1]
		i++
	}

	if len(p.positional) > 0 {
		p.subcommand = p.positional[0]
	}
	return p, nil
}

// Subcommand returns the first positional argument.
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the value of a string flag, or "" if it was not given.
func (p *ArgParser) Flag(name string) string {
	return p.flags[strings.TrimLeft(name, "-")]
}

// BoolFlag reports whether a boolean flag was set.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.boolFlags[strings.TrimLeft(name, "-")]
}

// HasFlag reports whether the flag was given in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, hasString := p.flags[name]
	_, hasBool := p.boolFlags[name]
	return hasString || hasBool
}

// Names returns every flag name seen, sorted.
func (p *ArgParser) Names() []string {
	names := make([]string, 0, len(p.flags)+len(p.boolFlags))
	for n := range p.flags {
		names = append(names, n)
	}
	for n := range p.boolFlags {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Positional returns the positional argument at index, or "".
// Index 0 is the subcommand.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns all positional arguments starting from index.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return []string{}
	}
	return p.positional[index:]
}

// Raw returns the original arguments.
func (p *ArgParser) Raw() []string {
	return p.raw
}

// ParseBoolString parses true/false, yes/no, y/n, 1/0 and on/off.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// =============================================================================
// COMMAND LINE
// =============================================================================

// Command is the top-level command to execute.
type Command int

const (
	CmdDefault Command = iota // tui on a terminal, chat otherwise
	CmdTUI
	CmdChat
	CmdAsk
	CmdConfig
	CmdVersion
	CmdHelp
)

func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "default"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Model      string
	URL        string
	System     string
	SystemSet  bool // --system was given, possibly empty
	Proxy      string
	Insecure   bool
	LogLevel   string
	NoMarkdown bool

	// Command-specific
	Subcommand string // config show|path|init
	Query      string // ask
}

var (
	valueFlagNames = []string{"config", "model", "m", "url", "system", "proxy", "log-level"}
	boolFlagNames  = []string{"insecure", "no-markdown", "help", "h", "version", "v"}
)

// configSubcommands are accepted by "config". The first is the default.
var configSubcommands = []string{"show", "path", "init"}

// Parse parses argv (without the program name) into a command and its
// arguments. Global flags may appear anywhere.
func Parse(argv []string) (Command, Args, error) {
	p, err := NewArgParser(argv, boolFlagNames...)
	if err != nil {
		return CmdHelp, Args{}, err
	}
	for _, name := range p.Names() {
		if !slices.Contains(valueFlagNames, name) && !slices.Contains(boolFlagNames, name) {
			return CmdHelp, Args{}, &UsageError{Msg: fmt.Sprintf("unknown flag --%s", name)}
		}
	}

	args := Args{
		ConfigPath: p.Flag("config"),
		Model:      p.Flag("model"),
		URL:        p.Flag("url"),
		System:     p.Flag("system"),
		SystemSet:  p.HasFlag("system"),
		Proxy:      p.Flag("proxy"),
		Insecure:   p.BoolFlag("insecure"),
		LogLevel:   p.Flag("log-level"),
		NoMarkdown: p.BoolFlag("no-markdown"),
	}
	if args.Model == "" {
		args.Model = p.Flag("m")
	}

	if p.BoolFlag("help") || p.BoolFlag("h") {
		return CmdHelp, args, nil
	}
	if p.BoolFlag("version") || p.BoolFlag("v") {
		return CmdVersion, args, nil
	}

	switch p.Subcommand() {
	case "":
		return CmdDefault, args, nil
	case "tui":
		return CmdTUI, args, nil
	case "chat", "repl":
		return CmdChat, args, nil
	case "ask", "a":
		args.Query = strings.Join(p.PositionalFrom(1), " ")
		return CmdAsk, args, nil
	case "config":
		args.Subcommand = p.Positional(1)
		if args.Subcommand == "" {
			args.Subcommand = configSubcommands[0]
		}
		if !slices.Contains(configSubcommands, args.Subcommand) {
			return CmdHelp, args, &UsageError{Msg: fmt.Sprintf("unknown config subcommand %q (want show, path or init)", args.Subcommand)}
		}
		return CmdConfig, args, nil
	case "version":
		return CmdVersion, args, nil
	case "help":
		return CmdHelp, args, nil
	default:
		return CmdHelp, args, &UsageError{Msg: fmt.Sprintf("unknown command %q", p.Subcommand())}
	}
}

// Apply overlays the global flags on cfg. Flags win over the config file
// and the environment.
func (a Args) Apply(cfg *config.Config) {
	if a.Model != "" {
		cfg.API.Model = a.Model
	}
	if a.URL != "" {
		cfg.API.URL = a.URL
	}
	if a.SystemSet {
		cfg.API.SystemPrompt = a.System
	}
	if a.Proxy != "" {
		cfg.Network.ProxyEnabled = true
		cfg.Network.ProxyURL = a.Proxy
	}
	if a.Insecure {
		cfg.Network.VerifyTLS = false
	}
	if a.LogLevel != "" {
		cfg.Logging.Level = a.LogLevel
	}
	if a.NoMarkdown {
		cfg.UI.Markdown = false
	}
	cfg.SetDefaults()
}
