package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/djsadd/bookchat-go/sources"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5"

// DefaultSystemPrompt frames answers as a university library assistant.
const DefaultSystemPrompt = "You are a university library assistant. Answer questions about books, " +
	"authors and study topics concisely, in the language of the question."

// ErrMissingAPIKey is returned by New without an API key.
var ErrMissingAPIKey = errors.New("anthropic API key is required")

// Source streams answers from Claude.
type Source struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	system    string
}

// Option configures a Source.
type Option func(*config)

type config struct {
	model      string
	maxTokens  int64
	system     string
	clientOpts []option.RequestOption
}

// WithModel selects the Claude model.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithMaxTokens bounds the answer length.
func WithMaxTokens(n int64) Option {
	return func(c *config) { c.maxTokens = n }
}

// WithSystemPrompt replaces the system prompt. An empty prompt sends none.
func WithSystemPrompt(s string) Option {
	return func(c *config) { c.system = s }
}

// WithClientOptions passes request options (base URL, retries, HTTP client) to the SDK client.
func WithClientOptions(opts ...option.RequestOption) Option {
	return func(c *config) { c.clientOpts = append(c.clientOpts, opts...) }
}

// New creates an Anthropic source with the given API key.
func New(apiKey string, opts ...Option) (*Source, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := config{
		model:     DefaultModel,
		maxTokens: 1024,
		system:    DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.clientOpts...)
	client := anthropic.NewClient(clientOpts...)

	return &Source{
		client:    &client,
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
		system:    cfg.system,
	}, nil
}

// Name returns the source identifier.
func (s *Source) Name() string {
	return "anthropic"
}

// Stream sends prompt as a single user turn and emits the text deltas of the answer.
func (s *Source) Stream(ctx context.Context, prompt string) (<-chan sources.Chunk, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if s.system != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: s.system,
			},
		}
	}

	out := make(chan sources.Chunk, 10)

	go func() {
		defer close(out)

		stream := s.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()

			e, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok || e.Delta.Type != "text_delta" || e.Delta.Text == "" {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- sources.Chunk{Text: e.Delta.Text}:
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case <-ctx.Done():
			case out <- sources.Chunk{Err: fmt.Errorf("anthropic streaming error: %w", err)}:
			}
		}
	}()

	return out, nil
}
