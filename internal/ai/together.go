package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"chatrewind/internal/model"
)

var (
	ErrNoChoices    = errors.New("completion returned no choices")
	ErrEmptyContent = errors.New("completion returned empty content")
)

// ChatConfig carries the per-deployment generation settings.
type ChatConfig struct {
	BaseURL      string
	APIKey       string
	MaxTokens    int
	Temperature  float32
	TopP         float32
	SystemPrompt string
}

// TogetherClient talks to the Together chat completion API, which is
// OpenAI-compatible, through the go-openai client pointed at a custom base
// URL.
type TogetherClient struct {
	client *openai.Client
	cfg    ChatConfig
}

func NewTogetherClient(cfg ChatConfig) *TogetherClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &TogetherClient{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// Generate runs one chat completion: system prompt, prior transcript, then
// the current prompt as the final user message.
func (c *TogetherClient) Generate(ctx context.Context, modelID, prompt string, history []model.PromptMessage) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.cfg.SystemPrompt,
		})
	}
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    apiRole(msg.Role),
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return contentFromResponse(resp)
}

// contentFromResponse is the single point that unwraps a completion
// response. Anything other than a non-empty first choice is an explicit
// error; there is no fallback extraction path.
func contentFromResponse(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	return content, nil
}

// apiRole maps stored roles onto the chat completion API's role names: the
// stored "model" role is "assistant" on the wire.
func apiRole(r model.Role) string {
	if r == model.RoleModel {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}
