package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// retryInitialDelay is the initial delay for exponential backoff between
	// attempts.
	retryInitialDelay = 1 * time.Second
	// retryMaxInterval is the maximum delay between attempts.
	retryMaxInterval = 30 * time.Second
	// retryMultiplier is the multiplier for exponential backoff.
	retryMultiplier = 2.0
	// retryRandomizationFactor is the randomization factor for exponential
	// backoff.
	retryRandomizationFactor = 0.2
)

// Client is the provider boundary: one synchronous call and one streaming
// call. Implementations translate between the neutral Message model and their
// SDK, and never retry internally; retry policy lives in LLM.
type Client interface {
	Chat(ctx context.Context, cfg Config, messages []Message) (*Message, error)
	ChatStream(ctx context.Context, cfg Config, messages []Message) (Stream, error)
}

// LLM wraps a provider client with a resolved Config and bounded
// exponential-backoff retry.
type LLM struct {
	mu     sync.RWMutex
	cfg    Config
	client Client
	logger zerolog.Logger
}

// Option configures an LLM.
type Option func(*LLM)

// WithLogger sets the logger used for retry and request logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *LLM) {
		l.logger = logger
	}
}

// WithClient replaces the provider client. Intended for tests and for callers
// that bring their own transport.
func WithClient(client Client) Option {
	return func(l *LLM) {
		l.client = client
	}
}

// New creates an LLM for the given config. Blank config fields are filled
// from the provider table; an unknown provider name is a configuration error.
func New(cfg Config, opts ...Option) (*LLM, error) {
	resolved, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	l := &LLM{
		cfg:    resolved,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.client == nil {
		client, err := newClient(resolved)
		if err != nil {
			return nil, err
		}
		l.client = client
	}
	return l, nil
}

// newClient builds the provider client for a resolved config. Anthropic and
// Ollama have native clients; every other known provider speaks the OpenAI
// chat completions protocol.
func newClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicClient(cfg)
	case "ollama":
		return newOllamaClient(cfg)
	default:
		return newOpenAIClient(cfg)
	}
}

// Config returns a copy of the resolved config.
func (l *LLM) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// SetResponseFormat changes the response format for subsequent requests.
func (l *LLM) SetResponseFormat(f ResponseFormat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f == "" {
		f = ResponseFormatText
	}
	l.cfg.ResponseFormat = f
}

// Chat sends the conversation and returns the whole assistant response.
// Failed attempts are retried with exponential backoff up to
// Config.MaxRetries; after exhaustion the last failure is returned as a
// transport error carrying the attempt count.
func (l *LLM) Chat(ctx context.Context, messages []Message) (*Message, error) {
	cfg := l.Config()

	var lastErr error
	attempts := 0
	bo := newRetryBackoff(cfg.MaxRetries)
	for {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		msg, err := l.client.Chat(attemptCtx, cfg, messages)
		cancel()
		if err == nil {
			return msg, nil
		}
		lastErr = err

		next := bo.NextBackOff()
		if next == backoff.Stop {
			break
		}
		l.logger.Warn().
			Err(err).
			Str("provider", cfg.Provider).
			Int("attempt", attempts).
			Dur("next_delay", next).
			Msg("Chat attempt failed, retrying")
		select {
		case <-ctx.Done():
			return nil, NewTransportError("chat canceled", attempts, ctx.Err())
		case <-time.After(next):
		}
	}
	return nil, NewTransportError(
		fmt.Sprintf("chat with provider %s failed after %d attempts", cfg.Provider, attempts),
		attempts, lastErr,
	)
}

// Stream opens a streaming request and returns the lazy sequence of partial
// responses. Retry covers stream establishment only; once the stream is open,
// a mid-stream failure surfaces through Stream.Err.
func (l *LLM) Stream(ctx context.Context, messages []Message) (Stream, error) {
	cfg := l.Config()

	var lastErr error
	attempts := 0
	bo := newRetryBackoff(cfg.MaxRetries)
	for {
		attempts++
		stream, err := l.client.ChatStream(ctx, cfg, messages)
		if err == nil {
			return stream, nil
		}
		lastErr = err

		next := bo.NextBackOff()
		if next == backoff.Stop {
			break
		}
		l.logger.Warn().
			Err(err).
			Str("provider", cfg.Provider).
			Int("attempt", attempts).
			Dur("next_delay", next).
			Msg("Stream attempt failed, retrying")
		select {
		case <-ctx.Done():
			return nil, NewTransportError("stream canceled", attempts, ctx.Err())
		case <-time.After(next):
		}
	}
	return nil, NewTransportError(
		fmt.Sprintf("stream with provider %s failed after %d attempts", cfg.Provider, attempts),
		attempts, lastErr,
	)
}

// BatchResult is the outcome of one conversation in a Batch call.
type BatchResult struct {
	Message *Message
	Err     error
}

// Batch sends independent conversations concurrently, bounded by
// Config.MaxConcurrency, and returns results in input order. Each failure is
// captured in its slot; one failing conversation never aborts its siblings.
func (l *LLM) Batch(ctx context.Context, conversations [][]Message) []BatchResult {
	results := make([]BatchResult, len(conversations))
	sem := make(chan struct{}, l.Config().MaxConcurrency)
	var wg sync.WaitGroup
	for i, messages := range conversations {
		wg.Add(1)
		go func(i int, messages []Message) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			msg, err := l.Chat(ctx, messages)
			results[i] = BatchResult{Message: msg, Err: err}
		}(i, messages)
	}
	wg.Wait()
	return results
}

// newRetryBackoff builds the per-request backoff schedule. The schedule is
// bounded by attempt count rather than elapsed time.
func newRetryBackoff(maxRetries int) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInitialDelay
	eb.MaxInterval = retryMaxInterval
	eb.Multiplier = retryMultiplier
	eb.RandomizationFactor = retryRandomizationFactor
	eb.MaxElapsedTime = 0
	return backoff.WithMaxRetries(eb, uint64(maxRetries))
}
