// Package llm provides single-turn chat generation over several providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Request is one system + user exchange.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Generator produces a completion for a request.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// timed bounds every call of a Generator and logs its latency.
type timed struct {
	next    Generator
	timeout time.Duration
	logger  *slog.Logger
}

// WithTimeout wraps g so each Generate call runs under its own timeout.
func WithTimeout(g Generator, timeout time.Duration, logger *slog.Logger) Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &timed{next: g, timeout: timeout, logger: logger}
}

func (t *timed) Name() string { return t.next.Name() }

func (t *timed) Generate(ctx context.Context, req Request) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := t.next.Generate(ctx, req)
	if err != nil {
		t.logger.Error("generation failed", "provider", t.next.Name(), "error", err, "elapsed", time.Since(start))
		return "", fmt.Errorf("%s generation: %w", t.next.Name(), err)
	}
	if out == "" {
		return "", ErrEmptyResponse
	}
	t.logger.Debug("generation completed", "provider", t.next.Name(), "chars", len(out), "elapsed", time.Since(start))
	return out, nil
}
