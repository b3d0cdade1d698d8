// Package embedding turns text into dense vectors through a pluggable provider.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrEmptyEmbedding is returned when a provider answers without a vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// Provider produces one embedding per call.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tune an Embedder. Zero values pick the defaults.
type Options struct {
	// Dimension, when set, is checked against every returned vector.
	Dimension int
	// RequestsPerSecond paces provider calls; 0 disables pacing.
	RequestsPerSecond float64
	// Timeout bounds a single provider call. Default 30s.
	Timeout time.Duration
	// Concurrency bounds in-flight calls in EmbedBatch. Default 4.
	Concurrency int
	Logger      *slog.Logger
}

// Embedder wraps a Provider with pacing, per-call timeouts, dimension checks
// and bounded-concurrency batching.
type Embedder struct {
	provider    Provider
	limiter     *rate.Limiter
	dim         int
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

// New creates an Embedder over p.
func New(p Provider, opts Options) *Embedder {
	e := &Embedder{
		provider:    p,
		dim:         opts.Dimension,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
	if e.timeout <= 0 {
		e.timeout = 30 * time.Second
	}
	if e.concurrency <= 0 {
		e.concurrency = 4
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return e
}

// Dimension returns the configured vector size, or 0 when unchecked.
func (e *Embedder) Dimension() int { return e.dim }

// Provider returns the name of the underlying provider.
func (e *Embedder) Provider() string { return e.provider.Name() }

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for embedding rate limit: %w", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vec, err := e.provider.Embed(callCtx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text with %s: %w", e.provider.Name(), err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding text with %s: %w", e.provider.Name(), ErrEmptyEmbedding)
	}
	if e.dim > 0 && len(vec) != e.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dim, len(vec))
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently, in
// input order. Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.logger.Debug("embedded batch", "provider", e.provider.Name(), "count", len(texts))
	return results, nil
}
