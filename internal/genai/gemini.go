package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	googleai "google.golang.org/genai"

	"github.com/BTreeMap/FlowMentor/internal/models"
)

// DefaultGeminiModel is used when no model is configured for the Google provider.
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrNoCandidatesReturned is returned when a Gemini response carries no text.
var ErrNoCandidatesReturned = errors.New("no candidates returned")

// contentService is the subset of the Gemini models API used by GeminiClient.
type contentService interface {
	GenerateContent(ctx context.Context, model string, contents []*googleai.Content, config *googleai.GenerateContentConfig) (*googleai.GenerateContentResponse, error)
}

// GeminiClient calls the native Gemini API.
type GeminiClient struct {
	models      contentService
	name        string
	model       string
	temperature float32
	timeout     time.Duration
}

// NewGeminiClient creates a Gemini client. An API key is required.
func NewGeminiClient(ctx context.Context, opts ...Option) (*GeminiClient, error) {
	cfg := applyOptions(opts)
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.Name == "" {
		cfg.Name = "google"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	cc := &googleai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: googleai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = googleai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := googleai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	slog.Debug("genai.NewGeminiClient: provider client created", "name", cfg.Name, "model", cfg.Model, "baseURLSet", cfg.BaseURL != "", "timeout", cfg.Timeout)
	return &GeminiClient{
		models:      cli.Models,
		name:        cfg.Name,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
	}, nil
}

// Name returns the provider name.
func (c *GeminiClient) Name() string { return c.name }

// Model returns the configured model identifier.
func (c *GeminiClient) Model() string { return c.model }

// Complete sends messages to Gemini. System messages become the system
// instruction and assistant turns are sent with the model role.
func (c *GeminiClient) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	system, contents := toGeminiContents(messages)
	config := &googleai.GenerateContentConfig{
		Temperature: googleai.Ptr(c.temperature),
	}
	if system != "" {
		config.SystemInstruction = &googleai.Content{Parts: []*googleai.Part{{Text: system}}}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrNoCandidatesReturned
	}
	return resp.Text(), nil
}

// toGeminiContents splits system messages out and converts the remaining turns.
func toGeminiContents(messages []models.ChatMessage) (string, []*googleai.Content) {
	var system []string
	contents := make([]*googleai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, m.Content)
		case models.RoleAssistant:
			contents = append(contents, googleai.NewContentFromText(m.Content, googleai.RoleModel))
		default:
			contents = append(contents, googleai.NewContentFromText(m.Content, googleai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
