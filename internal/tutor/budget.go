package tutor

import "github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/provider"

// keepRecent is the number of trailing messages never trimmed.
const keepRecent = 6

// trimHistory drops the oldest messages while the estimated token count
// exceeds maxTokens, keeping at least the keepRecent newest. A history that
// lost messages is made to start with a user turn again. maxTokens <= 0
// disables trimming.
func trimHistory(messages []provider.Message, maxTokens int) []provider.Message {
	if maxTokens <= 0 || len(messages) <= keepRecent {
		return messages
	}
	if estimateTokens(messages) <= maxTokens {
		return messages
	}

	// Remove from the front (oldest) until under budget or only keepRecent remain.
	for len(messages) > keepRecent && estimateTokens(messages) > maxTokens {
		messages = messages[1:]
	}
	for len(messages) > 1 && messages[0].Role != provider.RoleUser {
		messages = messages[1:]
	}
	return messages
}

// estimateTokens uses the usual four characters per token rule.
func estimateTokens(messages []provider.Message) int {
	total := 0
	for _, msg := range messages {
		total += len(msg.Text)
	}
	return total / 4
}
