package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/prepdesk/prepdesk-backend/internal/exam"
)

// Client generates exam questions through an OpenAI-compatible
// chat-completions API. It implements exam.Generator; everything it returns
// is untrusted and must pass the exam validator.
type Client struct {
	api   *openai.Client
	model string
	log   zerolog.Logger
}

// New creates a generator client. baseURL may be empty for the default
// OpenAI endpoint, or point at any compatible server.
func New(baseURL, apiKey, modelName string, log zerolog.Logger) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		log:   log.With().Str("component", "generator").Logger(),
	}
}

// Generate requests count questions for the topic. The error strings are
// surfaced verbatim to the user behind a retry action, so they are kept
// short and descriptive.
func (c *Client) Generate(ctx context.Context, topic string, count int) ([]exam.RawQuestion, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildGenerationPrompt(topic, count)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("question generation call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("question generation returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug().Str("topic", topic).Int("count", count).Msg("Generation response received")

	questions, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// parseQuestions decodes the model's JSON payload. Models occasionally wrap
// the object in a markdown code fence despite instructions; strip it before
// decoding.
func parseQuestions(raw string) ([]exam.RawQuestion, error) {
	cleaned := stripCodeFence(raw)

	var payload struct {
		Questions []exam.RawQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("parse generation response: %w", err)
	}
	return payload.Questions, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
