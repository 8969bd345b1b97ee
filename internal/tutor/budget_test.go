package tutor

import (
	"strings"
	"testing"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/provider"
)

func exchange(n int, size int) []provider.Message {
	var msgs []provider.Message
	for i := 0; i < n; i++ {
		msgs = append(msgs,
			provider.Message{Role: provider.RoleUser, Text: strings.Repeat("q", size)},
			provider.Message{Role: provider.RoleAssistant, Text: strings.Repeat("a", size)},
		)
	}
	return msgs
}

func TestTrimHistory_UnderBudget(t *testing.T) {
	msgs := exchange(5, 40)
	got := trimHistory(msgs, 1000)
	if len(got) != len(msgs) {
		t.Errorf("len = %d, want %d", len(got), len(msgs))
	}
}

func TestTrimHistory_Disabled(t *testing.T) {
	msgs := exchange(10, 4000)
	if got := trimHistory(msgs, 0); len(got) != 20 {
		t.Errorf("len = %d, want 20", len(got))
	}
}

func TestTrimHistory_DropsOldestFirst(t *testing.T) {
	msgs := exchange(10, 400) // 100 tokens per message
	msgs = append(msgs, provider.Message{Role: provider.RoleUser, Text: "newest question"})

	got := trimHistory(msgs, 850)
	if estimateTokens(got) > 850 {
		t.Errorf("estimate %d over budget", estimateTokens(got))
	}
	if got[len(got)-1].Text != "newest question" {
		t.Errorf("last message lost: %q", got[len(got)-1].Text)
	}
	if got[0].Role != provider.RoleUser {
		t.Errorf("first role = %q, want user", got[0].Role)
	}
}

func TestTrimHistory_KeepsRecent(t *testing.T) {
	msgs := exchange(10, 4000)
	got := trimHistory(msgs, 10)
	if len(got) != keepRecent {
		t.Fatalf("len = %d, want %d", len(got), keepRecent)
	}
	if got[0].Role != provider.RoleUser {
		t.Errorf("first role = %q, want user", got[0].Role)
	}
}
