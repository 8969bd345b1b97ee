package tui

import (
	"context"
	"time"
	"unicode"
)

// Replay shows an already received reply word by word with delay between
// words, then calls TextDone. It is a display animation only: if ctx is done
// or delay is zero the rest of the text is emitted at once. The text passed
// through TextDelta always concatenates to text exactly.
func Replay(ctx context.Context, out IO, text string, delay time.Duration) {
	if delay <= 0 {
		if text != "" {
			out.TextDelta(text)
		}
		out.TextDone(text)
		return
	}

	words := splitWords(text)
	for i, w := range words {
		out.TextDelta(w)
		if i == len(words)-1 {
			break
		}
		select {
		case <-ctx.Done():
			for _, rest := range words[i+1:] {
				out.TextDelta(rest)
			}
			out.TextDone(text)
			return
		case <-time.After(delay):
		}
	}
	out.TextDone(text)
}

// splitWords cuts text after each run of whitespace, so every chunk is a
// word followed by the whitespace that trailed it.
func splitWords(text string) []string {
	var words []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if inSpace && !space {
			words = append(words, text[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(text) {
		words = append(words, text[start:])
	}
	return words
}
