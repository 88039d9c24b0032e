// Package approval asks a human whether a destructive command may run.
package approval

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Choice is the option a human picked. NoDecision covers dismissal,
// timeout and cancellation; callers treat it as a rejection.
type Choice string

const (
	Approve    Choice = "Approve"
	Reject     Choice = "Reject"
	NoDecision Choice = ""
)

// Prompt is a single approval question.
type Prompt struct {
	SessionID string
	Message   string
	Command   string
	Options   []Choice
}

// CommandPrompt builds the prompt shown for a destructive command.
func CommandPrompt(sessionID, command string) Prompt {
	return Prompt{
		SessionID: sessionID,
		Message:   "Destructive command requested: " + command,
		Command:   command,
		Options:   []Choice{Approve, Reject},
	}
}

// Provider presents a prompt and blocks until a choice is made.
type Provider interface {
	Request(ctx context.Context, p Prompt) (Choice, error)
	// Name identifies the provider in logs.
	Name() string
}

// Approved reports whether c is the explicit approve signal.
func Approved(c Choice) bool {
	return c == Approve
}

// Static always answers with the same choice.
type Static struct {
	Choice Choice
}

func (s Static) Request(_ context.Context, _ Prompt) (Choice, error) { return s.Choice, nil }
func (s Static) Name() string                                        { return "static" }

type confirmedKey struct{}

// WithConfirmation records on ctx whether the caller already confirmed
// destructive commands for this request.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmedKey{}, confirmed)
}

// Preconfirmed answers from the confirmation carried on the request
// context. Remote callers collect consent before calling the gate.
type Preconfirmed struct{}

func (Preconfirmed) Request(ctx context.Context, _ Prompt) (Choice, error) {
	if confirmed, _ := ctx.Value(confirmedKey{}).(bool); confirmed {
		return Approve, nil
	}
	return Reject, nil
}

func (Preconfirmed) Name() string { return "preconfirmed" }

// timeoutProvider bounds how long a human may take to answer.
type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
	logger  *zap.Logger
}

// WithTimeout wraps p so that an unanswered prompt resolves to NoDecision
// after timeout. A non-positive timeout returns p unchanged.
func WithTimeout(p Provider, timeout time.Duration, logger *zap.Logger) Provider {
	if timeout <= 0 {
		return p
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &timeoutProvider{inner: p, timeout: timeout, logger: logger}
}

func (t *timeoutProvider) Name() string { return t.inner.Name() }

func (t *timeoutProvider) Request(ctx context.Context, p Prompt) (Choice, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type answer struct {
		choice Choice
		err    error
	}
	ch := make(chan answer, 1)
	go func() {
		c, err := t.inner.Request(ctx, p)
		ch <- answer{c, err}
	}()

	select {
	case a := <-ch:
		if a.err != nil && errors.Is(a.err, context.DeadlineExceeded) {
			return NoDecision, nil
		}
		return a.choice, a.err
	case <-ctx.Done():
		t.logger.Warn("approval timed out, denying",
			zap.String("provider", t.inner.Name()),
			zap.String("session_id", p.SessionID),
			zap.Duration("timeout", t.timeout),
		)
		return NoDecision, nil
	}
}
