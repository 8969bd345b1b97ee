package tui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PlainIO implements IO with plain line-oriented terminal output. It is used
// when TUI mode is disabled or stdout is not a terminal.
type PlainIO struct {
	scanner *bufio.Scanner
	out     io.Writer
	errOut  io.Writer
	chat    string
}

// NewPlainIO creates a PlainIO on stdin/stdout.
func NewPlainIO() *PlainIO {
	return newPlainIO(os.Stdin, os.Stdout, os.Stderr)
}

func newPlainIO(in io.Reader, out, errOut io.Writer) *PlainIO {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &PlainIO{scanner: s, out: out, errOut: errOut}
}

func (p *PlainIO) ReadInput() (string, error) {
	if p.chat != "" {
		fmt.Fprintf(p.out, "\n[%s] > ", p.chat)
	} else {
		fmt.Fprint(p.out, "\n> ")
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *PlainIO) UserMessage(_ string) {
	// The user already sees what they typed.
}

func (p *PlainIO) ThinkingStart() {
	fmt.Fprintln(p.out)
}

func (p *PlainIO) TextDelta(delta string) {
	fmt.Fprint(p.out, delta)
}

func (p *PlainIO) TextDone(fullText string) {
	if !strings.HasSuffix(fullText, "\n") {
		fmt.Fprintln(p.out)
	}
}

func (p *PlainIO) SystemMessage(text string) {
	fmt.Fprintln(p.out, text)
}

func (p *PlainIO) Error(msg string) {
	fmt.Fprintf(p.errOut, "error: %s\n", msg)
}

func (p *PlainIO) SetStatus(chat string, _ int) {
	p.chat = chat
}

func (p *PlainIO) SetTheme(_ string) {}
