// Package summary generates short AI summaries of email threads for
// the inbox sidebar.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"leadmap.app/server/internal/model"
)

const systemPrompt = `You summarize real-estate email threads for a busy agent.
Write at most three sentences: what the counterparty wants, any dates or
amounts mentioned, and the suggested next action. No preamble.`

// Truncate long threads instead of blowing the context window.
const maxThreadChars = 24000

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Summarizer interface {
	SummarizeThread(ctx context.Context, thread *model.EmailThread, messages []model.EmailMessage) (string, error)
}

type client struct {
	openai openai.Client
	model  string
}

func New(cfg Config) (Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &client{
		openai: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (c *client) SummarizeThread(ctx context.Context, thread *model.EmailThread, messages []model.EmailMessage) (string, error) {
	prompt := buildPrompt(thread, messages)

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(300),
	})
	if err != nil {
		return "", fmt.Errorf("openai thread summary: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	slog.DebugContext(ctx, "thread summary completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(thread *model.EmailThread, messages []model.EmailMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n\n", thread.Subject)

	for _, msg := range messages {
		body := msg.BodyText
		if body == "" {
			body = msg.Snippet
		}
		fmt.Fprintf(&b, "From %s (%s):\n%s\n\n",
			msg.FromName, msg.FromAddress, strings.TrimSpace(body))
		if b.Len() > maxThreadChars {
			break
		}
	}

	prompt := b.String()
	if len(prompt) > maxThreadChars {
		prompt = prompt[:maxThreadChars]
	}
	return prompt
}
