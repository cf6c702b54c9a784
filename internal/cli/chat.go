// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented chat REPL.
//
// Interactive commands:
//
//	/help, /h           Show available commands
//	/clear, /c          Clear conversation history
//	/system [text|-]    Show, set or remove the system prompt
//	/model [name]       Show or switch model
//	/status, /s         Show connection settings and history size
//	/history            Show the conversation
//	/quit, /q           Exit chat
//	Ctrl+D              Exit chat
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/peterh/liner"

	"github.com/jeranaias/chatdesk/internal/cloud"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
	"github.com/jeranaias/chatdesk/internal/util"
)

// HistoryFileName is the REPL input history file in the config directory.
const HistoryFileName = "chat_history"

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close() error
}

// ChatCLI provides input history and line editing for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a liner-backed reader. History is loaded from
// historyFile if it exists.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with arrow-key history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() error {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), util.PrivateDirPerm); err != nil {
		return err
	}
	return util.AtomicWrite(c.historyFile, 0600, func(w io.Writer) error {
		_, err := c.line.WriteHistory(w)
		return err
	})
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() error {
	saveErr := c.SaveHistory()
	return errors.Join(saveErr, c.line.Close())
}

// scanReader reads lines from a non-terminal stdin.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &scanReader{sc: sc}
}

func (s *scanReader) ReadInput(string) (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scanReader) Close() error { return nil }

// =============================================================================
// REPL
// =============================================================================

// dispatcher starts one request and delivers its result once.
// *cloud.Client satisfies it.
type dispatcher interface {
	Dispatch(cfg cloud.RequestConfig, messages []model.Message) <-chan cloud.Result
}

var _ dispatcher = (*cloud.Client)(nil)

// repl holds the state of one interactive chat.
type repl struct {
	sess     *session.Session
	client   dispatcher
	out      io.Writer
	markdown *styles.Markdown // nil renders plain text
	logger   *log.Logger

	// Overrides set with /system and /model. nil means use the config.
	system *string
	model  string

	spinner bool // animate while waiting; only on a terminal
	width   int  // wrap plain replies to this many columns; 0 disables
}

// form builds the request form for prompt from the current config and the
// REPL overrides.
func (r *repl) form(prompt string) session.Form {
	f := r.sess.DefaultForm()
	f.Prompt = prompt
	if r.system != nil {
		f.SystemPrompt = *r.system
	}
	if r.model != "" {
		f.Model = r.model
	}
	return f
}

// run reads and handles lines until /quit, end of input or ctx is done.
func (r *repl) run(ctx context.Context, in lineReader) error {
	prompt := "> "
	if r.spinner {
		prompt = promptStyle.Render("you") + " > "
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := in.ReadInput(prompt)
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			fmt.Fprintln(r.out, infoStyle.Render("(use /quit or Ctrl+D to exit)"))
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(r.out)
			return nil
		case err != nil:
			return err
		}

		if r.handleLine(line) {
			return nil
		}
	}
}

// handleLine executes one line of input. It returns true when the REPL
// should exit.
func (r *repl) handleLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.send(line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "/quit", "/q", "/exit":
		return true
	case "/help", "/h", "/?":
		r.printHelp()
	case "/clear", "/c":
		r.sess.Clear()
		fmt.Fprintln(r.out, infoStyle.Render(session.StatusCleared))
	case "/system":
		r.handleSystem(arg)
	case "/model", "/m":
		r.handleModel(arg)
	case "/status", "/s":
		r.printStatus()
	case "/history":
		r.printHistory()
	default:
		fmt.Fprintf(r.out, "%s %s\n", warningStyle.Render("unknown command "+cmd+";"), "type /help")
	}
	return false
}

func (r *repl) handleSystem(arg string) {
	switch arg {
	case "":
		current := r.form("").SystemPrompt
		if current == "" {
			fmt.Fprintln(r.out, infoStyle.Render("no system prompt"))
			return
		}
		fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render("system:"), current)
	case "-":
		empty := ""
		r.system = &empty
		fmt.Fprintln(r.out, infoStyle.Render("system prompt removed"))
	default:
		r.system = &arg
		fmt.Fprintln(r.out, infoStyle.Render("system prompt set"))
	}
}

func (r *repl) handleModel(arg string) {
	if arg == "" {
		current := r.form("").Model
		for _, m := range r.sess.Config().API.Models {
			marker := "  "
			if m == current {
				marker = commandStyle.Render("* ")
			}
			fmt.Fprintln(r.out, marker+m)
		}
		return
	}
	r.model = arg
	fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("model:"), arg)
}

// send runs one request and blocks until its result arrives.
func (r *repl) send(prompt string) {
	p, err := r.sess.Begin(r.form(prompt))
	if err != nil {
		fmt.Fprintln(r.out, warningStyle.Render(cloud.Describe(err)))
		return
	}

	res := r.wait(r.client.Dispatch(p.Config, p.Messages))

	switch r.sess.Finish(p.ID, res.Content, res.Err) {
	case session.OutcomeError:
		fmt.Fprintln(r.out, errorStyle.Render(session.NoteLine(res.Err)))
	case session.OutcomeReply:
		fmt.Fprintln(r.out, r.renderReply(res.Content))
		r.logger.Debug("reply shown", "id", p.ID, "request", res.Elapsed, "total", time.Since(p.Started))
	}
}

// wait blocks on ch, drawing a spinner line when enabled.
func (r *repl) wait(ch <-chan cloud.Result) cloud.Result {
	if !r.spinner {
		return <-ch
	}

	frames := []string{"|", "/", "-", "\\"}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case res := <-ch:
			fmt.Fprint(r.out, "\r\033[K")
			return res
		case <-ticker.C:
			fmt.Fprintf(r.out, "\r%s %s", frames[i%len(frames)], infoStyle.Render(session.StatusProcessing))
		}
	}
}

func (r *repl) renderReply(content string) string {
	label := botLabelStyle.Render("[" + model.RoleAssistant.Label() + "]:")
	if r.markdown != nil {
		return label + "\n" + strings.TrimRight(r.markdown.Render(content), "\n")
	}
	if r.width > 0 {
		content = WrapText(content, max(r.width-lipgloss.Width(label)-1, MinTerminalWidth/2))
	}
	return label + " " + content
}

func (r *repl) printHistory() {
	lines := r.sess.Transcript()
	if len(lines) == 0 {
		fmt.Fprintln(r.out, infoStyle.Render("no messages yet"))
		return
	}
	for _, line := range lines {
		fmt.Fprintln(r.out, line)
	}
}

func (r *repl) printStatus() {
	f := r.form("")
	host := f.Endpoint
	if u, err := url.Parse(f.Endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	proxy := "off"
	if f.UseProxy {
		proxy = f.ProxyURL
	}
	last := "-"
	if msg, ok := r.sess.Last(); ok {
		last = msg.Role.Label() + ": " + msg.Preview(40)
	}

	rows := [][2]string{
		{"model", f.Model},
		{"endpoint", host},
		{"proxy", proxy},
		{"verify TLS", fmt.Sprintf("%t", f.VerifyTLS)},
		{"key", f.RequestConfig().KeyFingerprint()},
		{"messages", fmt.Sprintf("%d (~%d tokens)", r.sess.Len(), r.sess.EstimateTokens())},
		{"last", last},
		{"status", r.sess.Status()},
	}
	for _, row := range rows {
		fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render(row[0]+":"), row[1])
	}
}

func (r *repl) printHelp() {
	cmds := [][2]string{
		{"/help", "show this help"},
		{"/clear", "clear the conversation"},
		{"/system [text|-]", "show, set or remove the system prompt"},
		{"/model [name]", "list models or switch model"},
		{"/status", "show connection settings"},
		{"/history", "show the conversation"},
		{"/quit", "exit (or Ctrl+D)"},
	}
	for _, c := range cmds {
		fmt.Fprintf(r.out, "  %s %s\n", commandStyle.Render(util.PadWidth(c[0], 18)), infoStyle.Render(c[1]))
	}
}

// =============================================================================
// COMMAND
// =============================================================================

// runChat starts the REPL. stdin is read with liner on a terminal and line
// by line otherwise. The config file is watched for the whole session.
func (a *App) runChat(ctx context.Context, env *runEnv) error {
	r := &repl{
		sess:    env.session,
		client:  env.client,
		out:     a.Stdout,
		logger:  env.logger,
		spinner: a.interactive(),
	}
	if a.interactive() {
		r.width = GetTerminalWidth()
	}
	if env.cfg.UI.Markdown && a.interactive() {
		r.markdown = styles.NewMarkdown(GetTerminalWidth()-2, styles.NewTheme(styles.ParseMode(env.cfg.UI.Theme)).IsDark)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.watchConfig(ctx, env, func(cfg *config.Config, err error) {
		if err == nil {
			env.session.SetConfig(cfg)
		}
	})

	var in lineReader
	if a.interactive() {
		dir, err := config.ConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		in = NewChatCLI(filepath.Join(dir, HistoryFileName))
		fmt.Fprintln(a.Stdout, welcomeStyle.Render("chatdesk "+a.Version)+" "+infoStyle.Render("type /help for commands"))
	} else {
		in = newScanReader(a.Stdin)
	}
	defer func() {
		if err := in.Close(); err != nil {
			env.logger.Warn("failed to save input history", "error", err)
		}
	}()

	return r.run(ctx, in)
}
