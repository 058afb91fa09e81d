package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnavailable means no LLM client is configured.
	ErrUnavailable = errors.New("llm unavailable")
	// ErrUpstream means the provider returned an error (quota, auth, bad request, 5xx).
	ErrUpstream = errors.New("llm upstream error")
	// ErrTimeout means the call exceeded its deadline.
	ErrTimeout = errors.New("llm upstream timeout")

	errEmptyReply = errors.New("provider returned an empty reply")
)

// classify maps a raw provider error onto ErrTimeout or ErrUpstream.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUpstream) || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
