package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/FlowMentor/internal/models"
)

var (
	// ErrAllProvidersFailed is returned by Chain.Generate when every provider failed.
	ErrAllProvidersFailed = errors.New("all LLM providers failed")
	// ErrNoProviders is returned by Chain.Generate on an empty chain.
	ErrNoProviders = errors.New("no LLM providers configured")
)

// Attempt is the tagged outcome of calling one provider.
type Attempt struct {
	Provider string
	Text     string
	Err      error
	Duration time.Duration
}

// OK reports whether the attempt succeeded.
func (a Attempt) OK() bool { return a.Err == nil }

// Describe formats a failed attempt as "<name> provider failed: <err>".
func (a Attempt) Describe() string {
	return fmt.Sprintf("%s provider failed: %v", a.Provider, a.Err)
}

// Result is the value produced by a Generate call.
type Result struct {
	// Text is the winning provider's raw completion.
	Text string
	// Provider is the name of the provider that produced Text.
	Provider string
	// Errors holds one description per failed attempt, in attempt order.
	Errors []string
}

// Observer is notified after every provider attempt.
type Observer func(a Attempt)

// Chain tries providers in registration order until one succeeds.
// A Chain is immutable after construction and safe for concurrent use.
type Chain struct {
	providers []Provider
	observer  Observer
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithObserver registers a callback invoked after each provider attempt.
func WithObserver(o Observer) ChainOption {
	return func(c *Chain) { c.observer = o }
}

// NewChain creates a chain over providers. Nil providers are ignored.
func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether any provider is registered.
func (c *Chain) Available() bool {
	return c != nil && len(c.providers) > 0
}

// Names returns the registered provider names in priority order.
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Generate calls each provider in order with the same messages, stopping at the
// first success. Failures are collected into Result.Errors whether or not a
// later provider succeeds. When every provider fails the returned error wraps
// ErrAllProvidersFailed and Result still carries the collected errors.
func (c *Chain) Generate(ctx context.Context, messages []models.ChatMessage) (Result, error) {
	if !c.Available() {
		return Result{}, ErrNoProviders
	}

	var res Result
	for _, p := range c.providers {
		a := c.attempt(ctx, p, messages)
		if c.observer != nil {
			c.observer(a)
		}
		if a.OK() {
			slog.Info("genai.Chain.Generate: provider succeeded", "provider", a.Provider, "duration", a.Duration, "failedBefore", len(res.Errors))
			res.Text = a.Text
			res.Provider = a.Provider
			return res, nil
		}
		slog.Warn("genai.Chain.Generate: provider failed", "provider", a.Provider, "error", a.Err, "duration", a.Duration)
		res.Errors = append(res.Errors, a.Describe())
	}
	return res, fmt.Errorf("%w: %d attempted", ErrAllProvidersFailed, len(res.Errors))
}

// attempt calls a single provider, converting a panic into a failed attempt.
func (c *Chain) attempt(ctx context.Context, p Provider, messages []models.ChatMessage) (a Attempt) {
	a.Provider = p.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.Text = ""
			a.Err = fmt.Errorf("panic: %v", r)
		}
		a.Duration = time.Since(start)
	}()
	a.Text, a.Err = p.Complete(ctx, messages)
	return a
}
