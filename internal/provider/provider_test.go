package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptProvider replays a fixed event sequence.
type scriptProvider struct {
	events  []Event
	chatErr error
	block   bool
	calls   int
	lastReq *ChatRequest
}

func (s *scriptProvider) Name() string         { return "script" }
func (s *scriptProvider) DefaultModel() string { return "script-1" }

func (s *scriptProvider) Chat(ctx context.Context, req *ChatRequest) (<-chan Event, error) {
	s.calls++
	s.lastReq = req
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	ch := make(chan Event, len(s.events)+1)
	go func() {
		defer close(ch)
		if s.block {
			<-ctx.Done()
			ch <- Event{Type: EventError, Error: ctx.Err()}
			return
		}
		for _, ev := range s.events {
			ch <- ev
		}
	}()
	return ch, nil
}

func TestGenerate_BuffersDeltas(t *testing.T) {
	p := &scriptProvider{events: []Event{
		{Type: EventTextDelta, TextDelta: "Overfitting "},
		{Type: EventTextDelta, TextDelta: "is..."},
		{Type: EventDone, Usage: &Usage{InputTokens: 10, OutputTokens: 3}},
	}}

	text, usage, err := Generate(context.Background(), p, &ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Overfitting is..." {
		t.Errorf("text = %q", text)
	}
	if usage == nil || usage.OutputTokens != 3 {
		t.Errorf("usage = %+v", usage)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestGenerate_StreamErrorIsRemoteError(t *testing.T) {
	cause := errors.New("429 quota exceeded")
	p := &scriptProvider{events: []Event{
		{Type: EventTextDelta, TextDelta: "partial"},
		{Type: EventError, Error: cause},
	}}

	text, _, err := Generate(context.Background(), p, &ChatRequest{})
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RemoteError, got %T %v", err, err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not preserved: %v", err)
	}
	if text != "" {
		t.Errorf("partial text leaked: %q", text)
	}
	if re.Error() != "script: 429 quota exceeded" {
		t.Errorf("Error() = %q", re.Error())
	}
}

func TestGenerate_ChatErrorIsRemoteError(t *testing.T) {
	p := &scriptProvider{chatErr: errors.New("no network")}
	_, _, err := Generate(context.Background(), p, &ChatRequest{})
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RemoteError, got %v", err)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	p := &scriptProvider{block: true}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := Generate(ctx, p, &ChatRequest{})
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("timeout should be a *RemoteError, got %T", err)
	}
}

func TestGenerate_CancelIsNotRemoteError(t *testing.T) {
	p := &scriptProvider{block: true}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := Generate(ctx, p, &ChatRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var re *RemoteError
	if errors.As(err, &re) {
		t.Errorf("cancellation must not be reported as a remote failure")
	}
}

func TestGenerate_EmptyReply(t *testing.T) {
	p := &scriptProvider{events: []Event{{Type: EventTextDelta, TextDelta: "  \n"}, {Type: EventDone}}}
	_, _, err := Generate(context.Background(), p, &ChatRequest{})
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
}

func TestSplitSystem(t *testing.T) {
	req := &ChatRequest{
		SystemPrompt: "You are a tutor.",
		Messages: []Message{
			{Role: RoleSystem, Text: "Be brief."},
			{Role: RoleUser, Text: "q1"},
			{Role: RoleAssistant, Text: "a1"},
			{Role: RoleUser, Text: "q2"},
		},
	}
	system, msgs := splitSystem(req)
	if system != "You are a tutor.\n\nBe brief." {
		t.Errorf("system = %q", system)
	}
	if len(msgs) != 3 || msgs[0].Text != "q1" || msgs[2].Text != "q2" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestBuildAnthropicMessages_MergesSameRole(t *testing.T) {
	params := buildAnthropicMessages([]Message{
		{Role: RoleAssistant, Text: "a0"},
		{Role: RoleAssistant, Text: "a1"},
		{Role: RoleUser, Text: "q"},
	})
	if len(params) != 2 {
		t.Fatalf("len = %d, want 2", len(params))
	}
	if len(params[0].Content) != 2 {
		t.Errorf("merged content blocks = %d, want 2", len(params[0].Content))
	}
}

func TestBuildOpenAIMessages(t *testing.T) {
	msgs := buildOpenAIMessages(&ChatRequest{
		SystemPrompt: "sys",
		Messages:     []Message{{Role: RoleUser, Text: "q"}, {Role: RoleAssistant, Text: "a"}},
	})
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[0].OfSystem == nil || msgs[1].OfUser == nil || msgs[2].OfAssistant == nil {
		t.Errorf("unexpected message kinds: %+v", msgs)
	}
}

func TestOpenAIProvider_NameDetection(t *testing.T) {
	tests := []struct {
		baseURL  string
		expected string
	}{
		{"", "openai"},
		{"https://api.deepseek.com", "deepseek"},
		{"https://api.groq.com/openai/v1", "groq"},
		{"https://api.moonshot.cn/v1", "kimi"},
		{"https://dashscope.aliyuncs.com/compatible-mode/v1", "qwen"},
		{"http://localhost:11434/v1", "ollama"},
	}
	for _, tt := range tests {
		if got := NewOpenAIProvider("k", tt.baseURL, "").Name(); got != tt.expected {
			t.Errorf("name for %q = %q, want %q", tt.baseURL, got, tt.expected)
		}
	}
}

func TestProvider_Metadata(t *testing.T) {
	a := NewAnthropicProvider("k", "", "")
	if a.Name() != "anthropic" || a.DefaultModel() != defaultAnthropicModel {
		t.Errorf("anthropic metadata = %q %q", a.Name(), a.DefaultModel())
	}
	o := NewOpenAIProvider("k", "", "gpt-4o")
	if o.DefaultModel() != "gpt-4o" {
		t.Errorf("openai model = %q", o.DefaultModel())
	}
}
