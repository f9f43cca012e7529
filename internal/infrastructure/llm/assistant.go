package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"SLRAutomation/internal/config"
	"SLRAutomation/internal/domain"
	"SLRAutomation/internal/ports"
)

const (
	questionSystemPrompt = "You are an expert researcher helping to automate Systematic Literature Reviews."
	querySystemPrompt    = "You are an expert in crafting search queries for Systematic Literature Reviews."

	maxItems = 3
)

// ErrNoChoices is returned when the chat API answers without any completion.
var ErrNoChoices = errors.New("llm returned no choices")

// Assistant drafts research questions and search queries through an
// OpenAI-compatible chat completion API.
type Assistant struct {
	sdk   *openai.Client
	model string
}

var _ ports.QuestionGenerator = (*Assistant)(nil)
var _ ports.QueryGenerator = (*Assistant)(nil)

// NewAssistant builds a client from configuration.
func NewAssistant(cfg config.LLMConfig) (*Assistant, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, fmt.Errorf("llm assistant misconfigured: api key and model are required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &Assistant{
		sdk:   openai.NewClientWithConfig(clientCfg),
		model: cfg.Model,
	}, nil
}

// GenerateQuestions asks for three research questions on topic.
func (a *Assistant) GenerateQuestions(ctx context.Context, topic string) (domain.QuestionSet, error) {
	prompt := fmt.Sprintf("Generate 3 concise research questions for a Systematic Literature Review on '%s'. "+
		"Format each question as a single sentence starting with 'How', 'What', or 'To what extent', separated by newlines.", topic)

	text, err := a.complete(ctx, questionSystemPrompt, prompt, 1, 4096)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	fallback := fmt.Sprintf("Fallback: What is the impact of %s on outcomes?", topic)
	return domain.QuestionSet(padLines(splitLines(text), fallback)), nil
}

// GenerateQueries converts research questions into boolean search queries.
func (a *Assistant) GenerateQueries(ctx context.Context, topic string, questions domain.QuestionSet) (domain.QuerySet, error) {
	prompt := "Convert the following research questions into Boolean search queries suitable for academic databases:\n" +
		strings.Join(questions, "\n") +
		". Format each query as a single line, using AND/OR/NOT operators, separated by newlines."

	text, err := a.complete(ctx, querySystemPrompt, prompt, 0.5, 150)
	if err != nil {
		return nil, fmt.Errorf("generate queries: %w", err)
	}

	subject := strings.TrimSpace(topic)
	if subject == "" {
		subject = "research"
	}
	fallback := fmt.Sprintf("Fallback: %s AND impact", subject)
	return domain.QuerySet(padLines(splitLines(text), fallback)), nil
}

func (a *Assistant) complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	resp, err := a.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// padLines keeps the first maxItems lines and pads a short answer with fallback.
func padLines(lines []string, fallback string) []string {
	if len(lines) >= maxItems {
		return lines[:maxItems]
	}
	for len(lines) < maxItems {
		lines = append(lines, fallback)
	}
	return lines
}
