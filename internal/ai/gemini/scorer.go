package gemini

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/ai"
	"github.com/spigell/interview-runner/internal/interview"
	"github.com/spigell/interview-runner/internal/logger"
	"github.com/spigell/interview-runner/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Scorer asks Gemini to analyse a finished interview.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

const defaultMaxLogLength = 200

func NewScorer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	s := &Scorer{generator: generator, maxLogLen: maxLogLength}
	s.logger = logger.WithCommonFields(log, s.Name(), generator.Model())

	return s
}

func (s *Scorer) Name() string { return "gemini" }

func (s *Scorer) Score(ctx context.Context, iv *interview.Interview) (*interview.Analysis, error) {
	prompt, err := ai.BuildPrompt(iv)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini generate content request",
		zap.String(logger.FieldInterviewID, iv.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, ai.SystemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini generate content response",
		zap.String(logger.FieldInterviewID, iv.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	analysis, err := ai.ParseAnalysis(raw)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	return analysis, nil
}
