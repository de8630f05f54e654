package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/budgetqa/internal/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Generator produces an answer from a system prompt and a user message.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// ChatClient calls the chat completions endpoint of an OpenAI-compatible API.
type ChatClient struct {
	api         openai.Client
	model       string
	temperature float64
	retry       retry.Policy
	log         *slog.Logger
	stats       *LLMStats
}

type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Retry       retry.Policy
}

func NewChatClient(cfg ChatConfig, log *slog.Logger, stats *LLMStats) *ChatClient {
	return &ChatClient{
		api: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(120*time.Second),
		),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		retry:       cfg.Retry,
		log:         log,
		stats:       stats,
	}
}

func (c *ChatClient) Generate(ctx context.Context, system, user string) (string, error) {
	var answer string
	err := c.retry.Do(ctx, c.log, "chat", func(ctx context.Context) error {
		started := time.Now()
		resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			Temperature: openai.Float(c.temperature),
		})
		if c.stats != nil {
			c.stats.Record(OpChat, time.Since(started), err)
		}
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty response from %s", c.model)
		}
		answer = resp.Choices[0].Message.Content
		return nil
	})
	return answer, err
}
