package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cedabot/app/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	maxReasonDuration = 30 * time.Second
	maxOutputTokens   = 1000
)

// Client is a single-model JSON completion client. Every classifier, resolver
// and planner talks to its oracle through one of these.
type Client struct {
	llm   *openai.LLM
	model string
}

func NewClient(cfg config.ModelConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithToken(cfg.Token),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{
			Timeout: 30 * time.Second,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	return &Client{
		llm:   llm,
		model: cfg.Model,
	}, nil
}

// LLM exposes the underlying model, used for embeddings.
func (c *Client) LLM() *openai.LLM {
	return c.llm
}

// Complete runs a plain completion and returns the trimmed text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, maxReasonDuration)
	defer cancel()

	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		},
		llms.WithTemperature(0),
		llms.WithMaxTokens(maxOutputTokens),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no chat completion found")
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// CompleteJSON runs a JSON-mode completion and unmarshals the single object
// the oracle must return into out.
func (c *Client) CompleteJSON(ctx context.Context, prompt string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, maxReasonDuration)
	defer cancel()

	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		},
		llms.WithTemperature(0),
		llms.WithMaxTokens(maxOutputTokens),
		llms.WithJSONMode(),
	)
	if err != nil {
		return fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return fmt.Errorf("no chat completion found")
	}

	result := StripFences(resp.Choices[0].Content)

	if err = json.Unmarshal([]byte(result), out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// StripFences removes markdown code fences some models wrap JSON output in.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}

// RenderTemplate substitutes {key} placeholders in a prompt template.
func RenderTemplate(template string, values map[string]any) string {
	for key, value := range values {
		template = strings.ReplaceAll(template, "{"+key+"}", fmt.Sprint(value))
	}
	return template
}
