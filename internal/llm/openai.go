package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient completes feedback prompts through the OpenAI chat API.
type OpenAIClient struct {
	client       *openai.Client
	apiKey       string
	defaultModel string
}

// CompletionParams carries one relayed completion request. Zero values
// fall back to the service defaults.
type CompletionParams struct {
	SystemPrompt string
	UserMessage  string
	Model        string
	MaxTokens    int
	Temperature  float32
}

func NewOpenAIClient(apiKey, defaultModel string) *OpenAIClient {
	return &OpenAIClient{
		client:       openai.NewClient(apiKey),
		apiKey:       apiKey,
		defaultModel: defaultModel,
	}
}

// NewOpenAIClientAt points the client at an alternate API base URL.
func NewOpenAIClientAt(apiKey, defaultModel, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(cfg),
		apiKey:       apiKey,
		defaultModel: defaultModel,
	}
}

func (c *OpenAIClient) HasKey() bool {
	return c.apiKey != ""
}

// Complete runs one chat completion and returns the assistant text.
func (c *OpenAIClient) Complete(ctx context.Context, p CompletionParams) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openai api key missing")
	}
	model := p.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1500
	}
	temperature := p.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: p.UserMessage},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
