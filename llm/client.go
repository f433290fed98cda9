// ABOUTME: Model client over any OpenAI-compatible chat completion endpoint,
// ABOUTME: translating transport failures into the structured error hierarchy.

package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client is the minimal completion surface the workflows depend on.
type Client interface {
	// Complete sends one system+user exchange and returns the model's text.
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is a single chat completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Response is the model's reply to a Request.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Config configures a ChatClient. BaseURL selects the provider: any
// OpenAI-compatible endpoint works, including DeepSeek's.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// DefaultConfig returns a Config targeting DeepSeek's chat endpoint.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		BaseURL:     "https://api.deepseek.com",
		Model:       "deepseek-chat",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// ChatClient implements Client over an OpenAI-compatible chat completion API.
type ChatClient struct {
	api         openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewChatClient builds a ChatClient from cfg. Transport-level retries are
// disabled: retry decisions belong to the workflow's retry policy.
func NewChatClient(cfg Config, extra ...option.RequestOption) (*ChatClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{ClientError{Message: "missing API key"}}
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, &ConfigurationError{ClientError{Message: "missing model name"}}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	return &ChatClient{
		api:         openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends the request and returns the first choice's text.
func (c *ChatClient) Complete(ctx context.Context, req Request) (Response, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return Response{}, classify(err)
	}

	if len(completion.Choices) == 0 {
		return Response{}, &MalformedOutputError{ClientError{Message: "completion has no choices"}}
	}

	return Response{
		Text:  completion.Choices[0].Message.Content,
		Model: completion.Model,
		Usage: Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}

// classify maps SDK errors into the structured hierarchy so the workflow
// retry policy can distinguish transient from permanent failures.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		msg := apierr.Message
		if msg == "" {
			msg = apierr.Error()
		}
		return ErrorFromStatusCode(apierr.StatusCode, msg)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &NetworkError{ClientError{Message: "model request failed", Cause: err}}
}
