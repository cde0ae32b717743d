// Package providers wraps the hosted language model SDKs used by the SLM policy.
package providers

import (
	"context"
	"errors"
	"fmt"

	"clinicalGym/pkg/config"
	"clinicalGym/pkg/logger"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultOpenAIBaseURL = "https://api.openai.com/v1/"
)

var ErrEmptyCompletion = errors.New("model returned no content")

type ProviderParams struct {
	BaseURL string
	APIKey  string
}

type ProviderOption func(*ProviderParams)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *ProviderParams) {
		p.BaseURL = baseURL
	}
}

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *ProviderParams) {
		p.APIKey = apiKey
	}
}

// Completer is satisfied by every client in this package.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// New returns the client for the named provider.
func New(ctx context.Context, provider string, opts ...ProviderOption) (Completer, error) {
	switch provider {
	case ProviderOpenAI:
		return OpenAI(opts...), nil
	case ProviderGemini:
		return Gemini(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// FromConfig builds the client named by cfg.Provider. An empty provider yields
// a nil client and no error.
func FromConfig(ctx context.Context, cfg config.PolicyConfig) (Completer, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case ProviderOpenAI:
		opts := []ProviderOption{WithAPIKey(cfg.OpenAIKey)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.OpenAIBaseURL))
		}
		return New(ctx, ProviderOpenAI, opts...)
	default:
		return New(ctx, cfg.Provider, WithAPIKey(cfg.GeminiKey))
	}
}

type OpenAIClient struct {
	client *openai.Client
}

func OpenAI(opts ...ProviderOption) *OpenAIClient {
	params := &ProviderParams{}
	for _, opt := range opts {
		opt(params)
	}
	if params.BaseURL == "" {
		params.BaseURL = defaultOpenAIBaseURL
	}

	reqOpts := []option.RequestOption{option.WithBaseURL(params.BaseURL)}
	if params.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(params.APIKey))
	}
	logger.Debug("openai client configured", "base_url", params.BaseURL)
	return &OpenAIClient{client: openai.NewClient(reqOpts...)}
}

func (c *OpenAIClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
		Model: openai.F(model),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return completion.Choices[0].Message.Content, nil
}

type GeminiClient struct {
	client *genai.Client
}

func Gemini(ctx context.Context, opts ...ProviderOption) (*GeminiClient, error) {
	params := &ProviderParams{}
	for _, opt := range opts {
		opt(params)
	}
	if params.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  params.APIKey,
		Backend: genai.BackendGoogleAI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	parts := []*genai.Part{
		{Text: prompt},
	}
	result, err := c.client.Models.GenerateContent(ctx, model, []*genai.Content{{Parts: parts}}, nil)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyCompletion
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}
