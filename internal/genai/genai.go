// Package genai provides the external text-generation providers used by FlowMentor
// and the ordered failover chain that tries them.
//
// Every provider speaks the same contract: a list of chat messages in, one
// block of text out. Adapters differ only in endpoint, credentials and model.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/FlowMentor/internal/models"
)

// Defaults shared by all provider adapters.
const (
	// DefaultTemperature is the fixed sampling temperature for every provider call.
	DefaultTemperature = 0.6
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 60 * time.Second
	// DefaultOpenAIModel is used when no model is configured for an OpenAI-compatible provider.
	DefaultOpenAIModel = "gpt-4o-mini"
)

var (
	// ErrAPIKeyNotSet is returned when a provider is constructed without credentials.
	ErrAPIKeyNotSet = errors.New("API key not set")
	// ErrNoChoicesReturned is returned when a completion carries no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
)

// Provider is a single external text-completion backend.
type Provider interface {
	// Name identifies the provider in logs, metrics and payload sources.
	Name() string
	// Complete sends the full message list and returns the completion text verbatim.
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// Opts holds configuration for provider adapters.
type Opts struct {
	Name        string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Option configures a provider adapter.
type Option func(*Opts)

// WithName sets the provider name.
func WithName(name string) Option {
	return func(o *Opts) { o.Name = name }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithTimeout bounds each call to the provider.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

func applyOptions(opts []Option) Opts {
	cfg := Opts{
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsService adapts the SDK's chat completion service to chatService.
type completionsService struct {
	svc openai.ChatCompletionService
}

func (s completionsService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint (OpenAI, Moonshot, Gemini's compatibility layer).
type OpenAIClient struct {
	chat        chatService
	name        string
	model       string
	temperature float64
}

// NewOpenAIClient initializes a new OpenAI-compatible client. An API key is required.
// SDK retries are disabled: the chain gives each provider exactly one attempt.
func NewOpenAIClient(opts ...Option) (*OpenAIClient, error) {
	cfg := applyOptions(opts)
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	cli := openai.NewClient(reqOpts...)

	slog.Debug("genai.NewOpenAIClient: provider client created", "name", cfg.Name, "model", cfg.Model, "baseURLSet", cfg.BaseURL != "", "timeout", cfg.Timeout)
	return &OpenAIClient{
		chat:        completionsService{svc: cli.Chat.Completions},
		name:        cfg.Name,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return c.name }

// Model returns the configured model identifier.
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends messages to the chat completion endpoint and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(c.temperature),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// toOpenAIMessages converts provider-neutral messages. Unknown roles are sent as user turns.
func toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
