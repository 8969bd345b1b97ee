// Package chat holds one conversation's ordered turn list and the
// append-user / commit-reply protocol that keeps questions and answers paired.
package chat

import (
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Text is opaque to the log and may
// carry markdown.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryMode selects which prior turns BeginReply forwards to the model.
type HistoryMode string

const (
	// HistoryFull forwards the whole alternating user/assistant history.
	HistoryFull HistoryMode = "full"

	// HistoryAssistantOnly forwards only earlier assistant turns plus the new
	// question. Some deployments of the tutor ran this way; it drops the
	// user's own earlier questions from the model's context.
	HistoryAssistantOnly HistoryMode = "assistant-only"
)

// ParseHistoryMode maps a config string to a HistoryMode. Empty means full.
func ParseHistoryMode(s string) (HistoryMode, error) {
	switch HistoryMode(s) {
	case "", HistoryFull:
		return HistoryFull, nil
	case HistoryAssistantOnly:
		return HistoryAssistantOnly, nil
	}
	return "", fmt.Errorf("unknown history mode %q (want %q or %q)", s, HistoryFull, HistoryAssistantOnly)
}

var (
	// ErrReplyPending is returned by AppendUser while an earlier question
	// still waits for its reply.
	ErrReplyPending = errors.New("a reply is still pending")

	// ErrAbandoned is returned by CommitReply when the exchange was abandoned
	// (or superseded) before the reply arrived. The reply is discarded.
	ErrAbandoned = errors.New("exchange abandoned")
)

// Ticket identifies one open exchange. Index is the position of the user
// turn in the log.
type Ticket struct {
	Index int
	seq   uint64
}

// Log is the ordered turn sequence of one conversation. New turns are
// always appended at the end, so storage order is display and export order.
// A Log is not safe for concurrent use.
type Log struct {
	turns   []Turn
	pending *Ticket
	seq     uint64
	now     func() time.Time
}

// NewLog returns a log holding a copy of turns.
func NewLog(turns []Turn) *Log {
	l := &Log{now: time.Now}
	if len(turns) > 0 {
		l.turns = append([]Turn(nil), turns...)
	}
	return l
}

// SetClock replaces the time source. Tests use it for fixed timestamps.
func (l *Log) SetClock(now func() time.Time) {
	l.now = now
}

// Len returns the number of stored turns, including an unanswered question.
func (l *Log) Len() int { return len(l.turns) }

// Pending reports whether a question is waiting for its reply.
func (l *Log) Pending() bool { return l.pending != nil }

// Turns returns a copy of every stored turn.
func (l *Log) Turns() []Turn {
	return append([]Turn(nil), l.turns...)
}

// Completed returns a copy of the turns that belong to finished exchanges.
// An unanswered question is left out so it never reaches durable storage.
func (l *Log) Completed() []Turn {
	end := len(l.turns)
	if l.pending != nil {
		end = l.pending.Index
	}
	return append([]Turn(nil), l.turns[:end]...)
}

// AppendUser records a new question and opens an exchange for it.
func (l *Log) AppendUser(text string) (Ticket, error) {
	if l.pending != nil {
		return Ticket{}, ErrReplyPending
	}
	l.seq++
	t := Ticket{Index: len(l.turns), seq: l.seq}
	l.turns = append(l.turns, Turn{Role: RoleUser, Text: text, CreatedAt: l.stamp()})
	l.pending = &t
	return t, nil
}

// BeginReply returns the turns to submit to the language model: the prior
// history selected by mode followed by the pending question. It returns the
// bare history when no exchange is open.
func (l *Log) BeginReply(mode HistoryMode) []Turn {
	history := l.Completed()
	if mode == HistoryAssistantOnly {
		filtered := history[:0]
		for _, t := range history {
			if t.Role == RoleAssistant {
				filtered = append(filtered, t)
			}
		}
		history = filtered
	}
	if l.pending != nil {
		history = append(history, l.turns[l.pending.Index])
	}
	return history
}

// CommitReply closes the exchange identified by t with an assistant turn.
// When replyErr is non-nil the turn carries ErrorNotice(replyErr) instead of
// text, so every question keeps exactly one answer. It returns the index of
// the assistant turn.
func (l *Log) CommitReply(t Ticket, text string, replyErr error) (int, error) {
	if l.pending == nil || l.pending.seq != t.seq {
		return -1, ErrAbandoned
	}
	if replyErr != nil {
		text = ErrorNotice(replyErr)
	}
	l.turns = append(l.turns, Turn{Role: RoleAssistant, Text: text, CreatedAt: l.stamp()})
	l.pending = nil
	return len(l.turns) - 1, nil
}

// Abandon drops the open exchange identified by t together with its
// question. A reply arriving later is rejected by CommitReply.
func (l *Log) Abandon(t Ticket) bool {
	if l.pending == nil || l.pending.seq != t.seq {
		return false
	}
	l.turns = l.turns[:l.pending.Index]
	l.pending = nil
	return true
}

// stamp returns the current UTC time, never earlier than the last turn.
func (l *Log) stamp() time.Time {
	ts := l.now().UTC()
	if n := len(l.turns); n > 0 && ts.Before(l.turns[n-1].CreatedAt) {
		ts = l.turns[n-1].CreatedAt
	}
	return ts
}

// ErrorNotice is the assistant text stored when the model call failed.
func ErrorNotice(err error) string {
	return fmt.Sprintf("Sorry, I couldn't get an answer this time (%v). Please try again.", err)
}
