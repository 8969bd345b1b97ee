package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// ---------- messages sent from the tutor goroutine via program.Send() ----------

type readInputMsg struct{}

type inputResult struct {
	text string
	err  error
}

type userMsg struct{ text string }
type thinkingStartMsg struct{}
type textDeltaMsg struct{ delta string }
type textDoneMsg struct{ fullText string }
type systemMsg struct{ text string }
type errorMsg struct{ text string }
type statusMsg struct {
	chat  string
	turns int
}
type themeMsg struct{ theme string }
type tutorDoneMsg struct{ err error }

// TUIConfig carries the values shown on the welcome page and status bar.
type TUIConfig struct {
	Version     string
	Provider    string
	Model       string
	Chat        string
	Theme       string
	ShowWelcome bool
}

// ---------- styles ----------

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	welcomeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")).
				Padding(0, 1)

	welcomeTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)

	welcomeLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	welcomeValueStyle = lipgloss.NewStyle().
				Bold(true)
)

// ---------- Model ----------

const statusBarHeight = 1
const inputHeight = 1

// Model is the bubbletea model managing the full TUI state.
type Model struct {
	viewport  viewport.Model
	textinput textinput.Model
	spinner   spinner.Model
	width     int
	height    int

	cfg TUIConfig

	content     *strings.Builder // accumulated output
	streaming   bool             // reply deltas are arriving
	streamStart int              // byte offset in content where the current reply began
	inputMode   bool             // text input is active (waiting for user)
	thinking    bool             // spinner visible

	inputCh chan inputResult // send user input back to ReadInput()

	// cancelFn abandons the in-flight question; wired by RunTUI.
	cancelFn func() bool

	quitting bool

	// status bar
	chat  string
	turns int
	theme string
}

// NewModel creates the initial bubbletea model.
func NewModel(inputCh chan inputResult, cfg TUIConfig) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a data science question, or /help"
	ti.CharLimit = 4096

	vp := viewport.New(80, 24)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		viewport:  vp,
		textinput: ti,
		spinner:   sp,
		content:   &strings.Builder{},
		inputCh:   inputCh,
		cfg:       cfg,
		chat:      cfg.Chat,
		theme:     cfg.Theme,
	}
	if cfg.ShowWelcome {
		m.appendLine(renderWelcome(cfg))
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - statusBarHeight - inputHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
		m.textinput.Width = m.width - 4
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.thinking {
			m.viewport.SetContent(m.renderContent())
			m.viewport.GotoBottom()
		}
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.inputMode {
				m.inputCh <- inputResult{err: fmt.Errorf("interrupted")}
				m.inputMode = false
				m.textinput.Blur()
			} else if m.cancelFn != nil {
				m.cancelFn()
			}
			m.quitting = true
			return m, tea.Quit
		case "esc":
			if !m.inputMode && m.cancelFn != nil && m.cancelFn() {
				m.thinking = false
				m.appendLine(systemStyle.Render("  [question abandoned]"))
				m.viewport.SetContent(m.renderContent())
				m.viewport.GotoBottom()
				return m, nil
			}
		case "enter":
			if m.inputMode {
				text := strings.TrimSpace(m.textinput.Value())
				m.textinput.SetValue("")
				m.inputCh <- inputResult{text: text}
				m.inputMode = false
				m.textinput.Blur()
			}
			return m, nil
		}

		if m.inputMode {
			var cmd tea.Cmd
			m.textinput, cmd = m.textinput.Update(msg)
			cmds = append(cmds, cmd)
		}

	// ---------- custom messages from the tutor goroutine ----------

	case readInputMsg:
		m.inputMode = true
		m.textinput.Focus()
		cmds = append(cmds, textinput.Blink)

	case userMsg:
		m.appendLine(userStyle.Render("You: " + msg.text))

	case thinkingStartMsg:
		m.thinking = true
		m.streaming = false

	case textDeltaMsg:
		m.thinking = false
		if !m.streaming {
			m.streamStart = m.content.Len()
			m.streaming = true
		}
		m.content.WriteString(msg.delta)

	case textDoneMsg:
		m.thinking = false
		if m.streaming {
			m.replaceStreamWithMarkdown(msg.fullText)
		}
		m.streaming = false

	case systemMsg:
		m.appendLine(systemStyle.Render(msg.text))

	case errorMsg:
		m.thinking = false
		m.appendLine(errorStyle.Render("Error: " + msg.text))

	case statusMsg:
		m.chat = msg.chat
		m.turns = msg.turns

	case themeMsg:
		m.theme = msg.theme

	case tutorDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoBottom()

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	chat := m.chat
	if chat == "" {
		chat = "(no chat)"
	}
	status := fmt.Sprintf(" %s | %d messages", chat, m.turns)
	if m.cfg.Model != "" {
		status += fmt.Sprintf(" | %s/%s", m.cfg.Provider, m.cfg.Model)
	}
	if m.thinking {
		status += " | esc to abandon"
	}
	bar := statusBarStyle.Width(m.width).Render(status)

	var input string
	if m.inputMode {
		input = m.textinput.View()
	}

	return m.viewport.View() + "\n" + bar + "\n" + input
}

// renderContent returns the viewport content plus the spinner line, which is
// not kept in the content builder.
func (m *Model) renderContent() string {
	base := m.content.String()
	if m.thinking {
		return base + "\n" + m.spinner.View() + " Thinking..."
	}
	return base
}

// ---------- markdown rendering ----------

// replaceStreamWithMarkdown replaces the raw streamed text (from streamStart
// to end of content) with glamour-rendered markdown.
func (m *Model) replaceStreamWithMarkdown(fullText string) {
	width := m.width
	if width <= 0 {
		width = 80
	}

	rendered, err := RenderMarkdown(fullText, m.theme, width-4)
	if err != nil {
		s := m.content.String()
		if len(s) > 0 && s[len(s)-1] != '\n' {
			m.content.WriteString("\n")
		}
		return
	}

	before := m.content.String()[:m.streamStart]
	m.content.Reset()
	m.content.WriteString(before)
	m.content.WriteString(strings.TrimRight(rendered, "\n"))
	m.content.WriteString("\n")
}

// RenderMarkdown renders text for the terminal in the given theme.
func RenderMarkdown(text, theme string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	switch theme {
	case "dark", "light":
		opts = append(opts, glamour.WithStandardStyle(theme))
	default:
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

// ---------- welcome page ----------

func renderWelcome(cfg TUIConfig) string {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	chat := cfg.Chat
	if chat == "" {
		chat = "(new)"
	}
	lines := []string{
		welcomeLabelStyle.Render("Provider: ") + welcomeValueStyle.Render(cfg.Provider),
		welcomeLabelStyle.Render("Model:    ") + welcomeValueStyle.Render(cfg.Model),
		welcomeLabelStyle.Render("Chat:     ") + welcomeValueStyle.Render(chat),
		"",
		hintStyle.Render("/help commands  /new new chat  /chats list  esc abandon question"),
	}
	title := welcomeTitleStyle.Render("dstutor " + version)
	return title + "\n" + welcomeBorderStyle.Render(strings.Join(lines, "\n"))
}

// ---------- helpers ----------

func (m *Model) appendLine(text string) {
	m.content.WriteString(text)
	m.content.WriteString("\n")
}
