// Package tui holds the front ends of the tutor REPL: a bubbletea full-screen
// UI, a plain line-oriented terminal and a silent buffer used by tests and
// one-shot commands. The tutor only talks to the IO interface.
package tui

// IO abstracts the terminal for the tutor loop.
type IO interface {
	// ReadInput blocks until the user submits a line of input.
	// Returns ("", io.EOF) when the user quits.
	ReadInput() (string, error)

	// UserMessage displays the user's submitted message in the output area.
	UserMessage(text string)

	// ThinkingStart signals that a question was sent to the model.
	// Implementations should show a spinner or "Thinking..." indicator.
	ThinkingStart()

	// TextDelta appends a chunk of the reply being displayed.
	TextDelta(delta string)

	// TextDone signals that the reply is complete. fullText is the entire
	// reply; TUI implementations use it to trigger Markdown rendering.
	TextDone(fullText string)

	// SystemMessage displays a notice (command feedback, chat lists).
	SystemMessage(text string)

	// Error displays an error message with prominent styling.
	Error(msg string)

	// SetStatus updates the active chat and its turn count in the status area.
	SetStatus(chat string, turns int)

	// SetTheme switches the Markdown style: "auto", "dark" or "light".
	SetTheme(theme string)
}

// RequestCanceller is implemented by IOs that let the user abandon an
// in-flight question (Esc in the TUI).
type RequestCanceller interface {
	SetRequestCancel(cancel func())
	ClearRequestCancel()
}
