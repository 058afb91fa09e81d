package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/capitalize-ai/alpine-chat/pkg/metrics"
	"github.com/capitalize-ai/alpine-chat/pkg/tracing"
)

// Guarded wraps a Client with a per-call timeout, error classification,
// metrics and a trace span. A nil inner client yields ErrUnavailable.
type Guarded struct {
	inner   Client
	timeout time.Duration
}

// NewGuarded wraps inner. inner may be nil.
func NewGuarded(inner Client, timeout time.Duration) *Guarded {
	return &Guarded{inner: inner, timeout: timeout}
}

// Configured reports whether an upstream client exists.
func (g *Guarded) Configured() bool {
	return g != nil && g.inner != nil
}

// Name returns the provider name, or "none".
func (g *Guarded) Name() string {
	if !g.Configured() {
		return "none"
	}
	return g.inner.Name()
}

// Models returns the wrapped client's models.
func (g *Guarded) Models() []string {
	if !g.Configured() {
		return nil
	}
	return g.inner.Models()
}

// Generate calls the wrapped client with a bounded deadline.
func (g *Guarded) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if !g.Configured() {
		return nil, ErrUnavailable
	}

	ctx, span := tracing.Tracer().Start(ctx, "llm.Generate", trace.WithAttributes(
		attribute.String("llm.provider", g.inner.Name()),
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.history_turns", len(req.History)),
	))
	defer span.End()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.inner.Generate(ctx, req)
	elapsed := time.Since(start)
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = errEmptyReply
	}

	model := req.Model
	if resp != nil && resp.Model != "" {
		model = resp.Model
	}

	if err != nil {
		err = classify(ctx, err)
		outcome := "error"
		if errors.Is(err, ErrTimeout) {
			outcome = "timeout"
		}
		metrics.RecordLLMCall(g.inner.Name(), model, outcome, elapsed.Seconds(), 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}

	resp.LatencyMs = elapsed.Milliseconds()
	metrics.RecordLLMCall(g.inner.Name(), model, "success", elapsed.Seconds(), resp.TokensIn, resp.TokensOut)
	span.SetAttributes(
		attribute.Int("llm.tokens_in", resp.TokensIn),
		attribute.Int("llm.tokens_out", resp.TokensOut),
	)
	return resp, nil
}
