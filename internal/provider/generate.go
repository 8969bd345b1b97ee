package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout is the cause of a RemoteError when the request deadline passed.
var ErrTimeout = errors.New("request timed out")

// ErrEmptyReply is the cause of a RemoteError when the model returned no text.
var ErrEmptyReply = errors.New("empty reply")

// RemoteError reports a failed call to the model. It is recoverable at the
// turn level: callers record a notice and let the user retry.
type RemoteError struct {
	Provider string
	Cause    error
}

func (e *RemoteError) Error() string {
	if e.Provider == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Cause)
}

func (e *RemoteError) Unwrap() error { return e.Cause }

// IsTimeout reports whether err is a RemoteError caused by a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Generate sends req to p and buffers the streamed reply into one string.
// Every failure is returned as a *RemoteError, except cancellation of ctx,
// which is returned as ctx.Err() so callers can tell abandonment apart.
func Generate(ctx context.Context, p Provider, req *ChatRequest) (string, *Usage, error) {
	ch, err := p.Chat(ctx, req)
	if err != nil {
		return "", nil, wrapRemote(ctx, p, err)
	}

	var (
		sb    strings.Builder
		usage *Usage
		fail  error
	)
	for ev := range ch {
		switch ev.Type {
		case EventTextDelta:
			sb.WriteString(ev.TextDelta)
		case EventDone:
			usage = ev.Usage
		case EventError:
			if fail == nil {
				fail = ev.Error
			}
		}
	}
	if fail != nil {
		return "", usage, wrapRemote(ctx, p, fail)
	}
	if err := ctx.Err(); err != nil {
		return "", usage, wrapRemote(ctx, p, err)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", usage, &RemoteError{Provider: p.Name(), Cause: ErrEmptyReply}
	}
	return sb.String(), usage, nil
}

func wrapRemote(ctx context.Context, p Provider, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return &RemoteError{Provider: p.Name(), Cause: ErrTimeout}
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Provider: p.Name(), Cause: err}
}
