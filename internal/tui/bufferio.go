package tui

import (
	"io"
	"strings"
	"sync"
)

// BufferIO is a silent IO that replays scripted input and captures all
// output. Used by one-shot commands and tests.
type BufferIO struct {
	mu      sync.Mutex
	inputs  []string
	buf     strings.Builder
	replies []string
	system  []string
	errors  []string
	chat    string
	turns   int
	theme   string
}

var _ IO = (*BufferIO)(nil)

// NewBufferIO creates a BufferIO that returns inputs in order, then io.EOF.
func NewBufferIO(inputs ...string) *BufferIO {
	return &BufferIO{inputs: inputs}
}

// Output returns all text passed to TextDelta.
func (b *BufferIO) Output() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Replies returns every completed reply in order.
func (b *BufferIO) Replies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.replies...)
}

// System returns every system message in order.
func (b *BufferIO) System() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.system...)
}

// Errors returns every error message in order.
func (b *BufferIO) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.errors...)
}

// Status returns the last values passed to SetStatus.
func (b *BufferIO) Status() (string, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chat, b.turns
}

// Theme returns the last value passed to SetTheme.
func (b *BufferIO) Theme() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.theme
}

func (b *BufferIO) ReadInput() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inputs) == 0 {
		return "", io.EOF
	}
	in := b.inputs[0]
	b.inputs = b.inputs[1:]
	return in, nil
}

func (b *BufferIO) UserMessage(_ string) {}
func (b *BufferIO) ThinkingStart()       {}

func (b *BufferIO) TextDelta(delta string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.WriteString(delta)
}

func (b *BufferIO) TextDone(fullText string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = append(b.replies, fullText)
}

func (b *BufferIO) SystemMessage(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.system = append(b.system, text)
}

func (b *BufferIO) Error(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors = append(b.errors, msg)
}

func (b *BufferIO) SetStatus(chat string, turns int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chat, b.turns = chat, turns
}

func (b *BufferIO) SetTheme(theme string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.theme = theme
}
