// Package provider defines the interface every language model backend
// implements and the shared request and event types. Each adapter
// (anthropic.go, openai.go) normalizes its API's streaming response into
// the same Event sequence.
package provider

import "context"

// ── Messages ──────────────────────────────────────────────────────────────────

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of the history sent to the model.
type Message struct {
	Role Role
	Text string
}

// ── Request ───────────────────────────────────────────────────────────────────

// ChatRequest is the provider-neutral request.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	MaxTokens    int
}

// ── Streaming events ──────────────────────────────────────────────────────────

type EventType int

const (
	// EventTextDelta carries a chunk of reply text.
	EventTextDelta EventType = iota

	// EventDone ends the reply and carries token usage when known.
	EventDone

	// EventError ends the reply with a failure.
	EventError
)

// Event is one item of a provider's output stream.
type Event struct {
	Type      EventType
	TextDelta string
	Usage     *Usage
	Error     error
}

// Usage records the tokens consumed by one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ── Provider ──────────────────────────────────────────────────────────────────

// Provider is implemented by every model backend.
type Provider interface {
	// Chat starts a streaming completion. The returned channel emits events
	// until EventDone or EventError and is then closed. Callers must drain
	// it.
	Chat(ctx context.Context, req *ChatRequest) (<-chan Event, error)

	// Name returns the provider identifier, e.g. "anthropic" or "deepseek".
	Name() string

	// DefaultModel returns the model used when the request names none.
	DefaultModel() string
}

// splitSystem moves system-role messages into the system prompt, keeping the
// remaining history in order. Both adapters accept system text only up front.
func splitSystem(req *ChatRequest) (string, []Message) {
	system := req.SystemPrompt
	msgs := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Text
			continue
		}
		msgs = append(msgs, m)
	}
	return system, msgs
}
