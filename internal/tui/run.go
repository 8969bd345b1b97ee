package tui

import (
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// RunTUI starts the bubbletea program in alt-screen mode and runs tutorFn
// concurrently. It blocks until either the tutor loop finishes or the user
// quits.
func RunTUI(cfg TUIConfig, tutorFn func(io IO) error) error {
	inputCh := make(chan inputResult, 1)
	model := NewModel(inputCh, cfg)

	// Create TuiIO early so cancelFn is wired before the model is copied
	// into the tea.Program.
	tuiIO := &TuiIO{inputCh: inputCh, done: make(chan struct{})}
	model.cancelFn = tuiIO.CancelRequest

	p := tea.NewProgram(model, tea.WithAltScreen())
	tuiIO.program = p

	var (
		tutorErr error
		wg       sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		tutorErr = tutorFn(tuiIO)
		p.Send(tutorDoneMsg{err: tutorErr})
	}()

	_, runErr := p.Run()
	close(tuiIO.done)
	tuiIO.CancelRequest()
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}

	wg.Wait()
	return tutorErr
}
