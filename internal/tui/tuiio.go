package tui

import (
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// TuiIO implements IO by sending messages to a bubbletea Program.
// All methods are safe to call from any goroutine.
type TuiIO struct {
	program *tea.Program
	inputCh chan inputResult
	done    chan struct{} // closed when the program exits

	mu     sync.Mutex
	cancel func()
}

var (
	_ IO               = (*TuiIO)(nil)
	_ RequestCanceller = (*TuiIO)(nil)
)

func (t *TuiIO) ReadInput() (string, error) {
	t.program.Send(readInputMsg{})

	// Block until the user submits or the TUI exits.
	select {
	case res := <-t.inputCh:
		if res.err != nil {
			return "", io.EOF
		}
		return res.text, nil
	case <-t.done:
		return "", io.EOF
	}
}

func (t *TuiIO) UserMessage(text string) {
	t.program.Send(userMsg{text: text})
}

func (t *TuiIO) ThinkingStart() {
	t.program.Send(thinkingStartMsg{})
}

func (t *TuiIO) TextDelta(delta string) {
	t.program.Send(textDeltaMsg{delta: delta})
}

func (t *TuiIO) TextDone(fullText string) {
	t.program.Send(textDoneMsg{fullText: fullText})
}

func (t *TuiIO) SystemMessage(text string) {
	t.program.Send(systemMsg{text: text})
}

func (t *TuiIO) Error(msg string) {
	t.program.Send(errorMsg{text: msg})
}

func (t *TuiIO) SetStatus(chat string, turns int) {
	t.program.Send(statusMsg{chat: chat, turns: turns})
}

func (t *TuiIO) SetTheme(theme string) {
	t.program.Send(themeMsg{theme: theme})
}

// --- RequestCanceller implementation ---

// SetRequestCancel registers the cancel function of the in-flight question.
func (t *TuiIO) SetRequestCancel(cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel = cancel
}

// ClearRequestCancel clears the cancel function once the reply is in.
func (t *TuiIO) ClearRequestCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel = nil
}

// CancelRequest abandons the in-flight question. Returns true if one was
// actually running.
func (t *TuiIO) CancelRequest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
		return true
	}
	return false
}
