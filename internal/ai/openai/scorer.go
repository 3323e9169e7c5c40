package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/ai"
	"github.com/spigell/interview-runner/internal/interview"
	"github.com/spigell/interview-runner/internal/logger"
	"github.com/spigell/interview-runner/internal/utils"
)

const (
	defaultModel     = goopenai.GPT3Dot5Turbo1106
	defaultMaxTokens = 1024
	maxLogLength     = 200
)

type completer interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Scorer asks an OpenAI chat model to analyse a finished interview.
type Scorer struct {
	client completer
	model  string
	logger *zap.Logger
}

// NewScorer builds a scorer for the OpenAI API. baseURL may point at any
// compatible endpoint.
func NewScorer(apiKey, baseURL, model string, log *zap.Logger) (*Scorer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return newScorer(goopenai.NewClientWithConfig(cfg), model, log), nil
}

func newScorer(client completer, model string, log *zap.Logger) *Scorer {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	s := &Scorer{client: client, model: model}
	s.logger = logger.WithCommonFields(log, s.Name(), model)
	return s
}

func (s *Scorer) Name() string { return "openai" }

func (s *Scorer) Score(ctx context.Context, iv *interview.Interview) (*interview.Analysis, error) {
	prompt, err := ai.BuildPrompt(iv)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("openai chat completion request",
		zap.String(logger.FieldInterviewID, iv.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	resp, err := s.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: defaultMaxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: ai.SystemInstruction},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}
	raw := resp.Choices[0].Message.Content

	s.logger.Debug("openai chat completion response",
		zap.String(logger.FieldInterviewID, iv.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.String("response_preview", utils.TruncateForLog(raw, maxLogLength)),
	)

	analysis, err := ai.ParseAnalysis(raw)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	return analysis, nil
}
