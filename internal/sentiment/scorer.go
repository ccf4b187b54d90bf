package sentiment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = `You rate the market sentiment of social media posts about listed companies.
Reply with a single number between -1 (very negative) and 1 (very positive). No other text.`

// OpenAIConfig holds configuration for the OpenAI-compatible scorer.
type OpenAIConfig struct {
	Endpoint string // Base URL, e.g. "https://api.openai.com/v1"; empty uses the default
	Model    string
	APIKey   string
}

// OpenAIScorer scores texts with a chat completion model.
type OpenAIScorer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIScorer creates a scorer.
func NewOpenAIScorer(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIScorer, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	return &OpenAIScorer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.Named("sentiment"),
	}, nil
}

// Score implements Scorer.
func (s *OpenAIScorer) Score(ctx context.Context, text string) (float64, error) {
	start := time.Now()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
		MaxTokens:   8,
	})
	if err != nil {
		s.logger.Warn("Sentiment request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return 0, fmt.Errorf("score sentiment: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("score sentiment: no choices in response")
	}

	score, err := parseScore(resp.Choices[0].Message.Content)
	if err != nil {
		return 0, fmt.Errorf("score sentiment: %w", err)
	}

	s.logger.Debug("Sentiment scored",
		zap.Float64("score", score),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))
	return score, nil
}

func parseScore(content string) (float64, error) {
	field := strings.Trim(strings.TrimSpace(content), "\"'`.")
	score, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable score %q", content)
	}
	if score < -1 || score > 1 {
		return 0, fmt.Errorf("score %v out of range", score)
	}
	return score, nil
}
