package tutor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/chat"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/export"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/session"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/tui"
)

const helpText = `Commands:
  /new [name]            Start a new chat
  /chats                 List chats (* marks the active one)
  /switch <name|number>  Switch to another chat
  /rename <new name>     Rename the active chat
  /delete [name]         Delete a chat (default: the active one)
  /export <format> [file] Export the active chat (text, markdown, html, notebook)
  /history               Show the active chat
  /theme [auto|dark|light] Show or set the answer theme
  /model [name]          Show or switch the model
  /provider [name]       Show or switch the provider
  /config                Show the current configuration
  /help                  Show this help
  /quit                  Exit`

// Run is the interactive loop: it reads questions and commands from out
// until EOF or /quit.
func (t *Tutor) Run(ctx context.Context, out tui.IO) error {
	t.updateStatus(out)
	out.SetTheme(t.config.Theme)

	for {
		input, err := out.ReadInput()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := t.handleSlashCommand(out, input); quit {
				return nil
			}
			t.updateStatus(out)
			continue
		}

		out.UserMessage(input)
		t.ask(ctx, out, input)
		t.updateStatus(out)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// ask runs one question. The question gets its own context so the TUI can
// abandon it with Esc without stopping the loop.
func (t *Tutor) ask(ctx context.Context, out tui.IO, input string) {
	qctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if rc, ok := out.(tui.RequestCanceller); ok {
		rc.SetRequestCancel(cancel)
		defer rc.ClearRequestCancel()
	}

	out.ThinkingStart()
	res, err := t.Ask(qctx, input)
	switch {
	case errors.Is(err, chat.ErrAbandoned):
		out.TextDone("")
		out.SystemMessage("Question abandoned.")
		return
	case err != nil:
		out.TextDone("")
		out.Error(err.Error())
		return
	}

	if res.Blocked {
		out.TextDone("")
		out.Error(res.Reply)
		return
	}
	tui.Replay(qctx, out, res.Reply, t.config.Tutor.StreamDelay)
	if res.PersistErr != nil {
		out.Error("Could not save chats: " + res.PersistErr.Error())
	}
}

func (t *Tutor) updateStatus(out tui.IO) {
	turns := 0
	if c, ok := t.store.Active(); ok {
		turns = c.Log.Len()
	}
	out.SetStatus(t.store.ActiveName(), turns)
}

// handleSlashCommand runs a REPL command. It returns true to quit.
func (t *Tutor) handleSlashCommand(out tui.IO, input string) bool {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		out.SystemMessage(helpText)
	case "/new":
		name, err := t.NewChat(arg)
		t.report(out, err, "Started "+name)
	case "/chats":
		out.SystemMessage(t.formatChats())
	case "/switch":
		if arg == "" {
			out.Error("Usage: /switch <name|number>")
			return false
		}
		name, err := t.SwitchChat(arg)
		t.report(out, err, "Switched to "+name)
	case "/rename":
		t.handleRename(out, arg)
	case "/delete":
		t.handleDelete(out, arg)
	case "/export":
		t.handleExport(out, arg)
	case "/history":
		out.SystemMessage(t.formatHistory())
	case "/theme":
		t.handleTheme(out, arg)
	case "/model":
		t.handleModel(out, arg)
	case "/provider":
		t.handleProvider(out, arg)
	case "/config":
		t.handleConfig(out)
	default:
		out.Error(fmt.Sprintf("Unknown command: %s (try /help)", cmd))
	}
	return false
}

// report shows err, or ok when err is nil. Storage errors keep the
// in-memory change, so the success message is shown too.
func (t *Tutor) report(out tui.IO, err error, ok string) {
	if err == nil {
		out.SystemMessage(ok)
		return
	}
	if session.IsStorageError(err) {
		out.SystemMessage(ok)
		out.Error("Could not save chats: " + err.Error())
		return
	}
	out.Error(err.Error())
}

func (t *Tutor) handleRename(out tui.IO, arg string) {
	if arg == "" {
		out.Error("Usage: /rename <new name>")
		return
	}
	old := t.store.ActiveName()
	if old == "" {
		out.Error("No active chat.")
		return
	}
	err := t.RenameChat(old, arg)
	t.report(out, err, fmt.Sprintf("Renamed %q to %q", old, strings.TrimSpace(arg)))
}

func (t *Tutor) handleDelete(out tui.IO, arg string) {
	name := arg
	if name == "" {
		name = t.store.ActiveName()
	}
	if name == "" {
		out.Error("No chat to delete.")
		return
	}
	err := t.DeleteChat(name)
	t.report(out, err, "Deleted "+name)
}

func (t *Tutor) handleExport(out tui.IO, arg string) {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		out.Error("Usage: /export <text|markdown|html|notebook> [file]")
		return
	}
	f, err := export.ParseFormat(fields[0])
	if err != nil {
		out.Error(err.Error())
		return
	}
	name := t.store.ActiveName()
	if name == "" {
		out.Error("No active chat.")
		return
	}
	data, err := t.ExportChat(name, f)
	if err != nil {
		out.Error(err.Error())
		return
	}

	path := FileName(name, f)
	if len(fields) > 1 {
		path = strings.Join(fields[1:], " ")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		out.Error(fmt.Sprintf("export: %v", err))
		return
	}
	out.SystemMessage(fmt.Sprintf("Exported %s to %s", name, path))
}

// FileName is the default export file name for a chat.
func FileName(chatName string, f export.Format) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r == filepath.Separator, r == '/', r == '\\', r == ':':
			return '_'
		case r == ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(chatName))
	if base == "" {
		base = "chat"
	}
	return base + f.Extension()
}

func (t *Tutor) handleTheme(out tui.IO, arg string) {
	if arg == "" {
		out.SystemMessage("Theme: " + t.config.Theme)
		return
	}
	switch arg {
	case "auto", "dark", "light":
	default:
		out.Error("Usage: /theme [auto|dark|light]")
		return
	}
	t.config.Theme = arg
	out.SetTheme(arg)
	out.SystemMessage("Theme set to " + arg)
}

func (t *Tutor) handleModel(out tui.IO, arg string) {
	if arg == "" {
		out.SystemMessage(fmt.Sprintf("Current model: %s", t.Model()))
		return
	}
	t.SetModel(arg)
	out.SystemMessage(fmt.Sprintf("Model switched to: %s", arg))
}

func (t *Tutor) handleProvider(out tui.IO, arg string) {
	if arg == "" {
		out.SystemMessage(fmt.Sprintf("Current provider: %s", t.provider.Name()))
		return
	}
	if err := t.SetProvider(arg); err != nil {
		out.Error(fmt.Sprintf("Failed to switch provider: %v", err))
		return
	}
	out.SystemMessage(fmt.Sprintf("Switched to provider: %s (model: %s)", t.provider.Name(), t.Model()))
}

func (t *Tutor) handleConfig(out tui.IO) {
	c := t.config
	topic := "off"
	if t.topic != nil {
		topic = "on"
	}
	info := fmt.Sprintf(`Configuration:
  Provider:        %s
  Model:           %s
  Store:           %s
  History:         %s
  Topic gate:      %s
  Request timeout: %s
  Theme:           %s
  Chats:           %d`,
		t.provider.Name(), t.Model(), c.Store.Backend, t.mode, topic,
		c.Tutor.RequestTimeout, c.Theme, t.store.Len())
	out.SystemMessage(info)
}

func (t *Tutor) formatChats() string {
	names := t.store.Names()
	if len(names) == 0 {
		return "No chats yet. Ask a question or use /new."
	}
	active := t.store.ActiveName()
	var sb strings.Builder
	sb.WriteString("Chats:")
	for i, name := range names {
		mark := " "
		if name == active {
			mark = "*"
		}
		turns := 0
		if c, err := t.store.Get(name); err == nil {
			turns = c.Log.Len()
		}
		fmt.Fprintf(&sb, "\n %s %d. %s (%d messages)", mark, i+1, name, turns)
	}
	return sb.String()
}

// formatHistory renders the active chat for display.
func (t *Tutor) formatHistory() string {
	c, ok := t.store.Active()
	if !ok || c.Log.Len() == 0 {
		return "No messages yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d messages):\n", c.Name, c.Log.Len())
	for _, tn := range c.Log.Turns() {
		fmt.Fprintf(&sb, "\n[%s] %s", export.RoleLabel(tn.Role), truncate(tn.Text, 200))
	}
	return sb.String()
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
