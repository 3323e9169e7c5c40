package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/interview"
	"github.com/spigell/interview-runner/internal/logger"
)

// Scorer analyses a finished interview.
type Scorer interface {
	Score(ctx context.Context, iv *interview.Interview) (*interview.Analysis, error)
	Name() string
}

// Fallback tries Primary and falls back to Secondary when it fails.
type Fallback struct {
	Primary   Scorer
	Secondary Scorer
	Logger    *zap.Logger
}

func (f *Fallback) Name() string {
	return f.Primary.Name()
}

func (f *Fallback) Score(ctx context.Context, iv *interview.Interview) (*interview.Analysis, error) {
	analysis, err := f.Primary.Score(ctx, iv)
	if err == nil {
		return analysis, nil
	}

	if ctx.Err() != nil || f.Secondary == nil {
		return nil, fmt.Errorf("%s scorer: %w", f.Primary.Name(), err)
	}

	logger.WithFields(f.Logger, logger.CommonFields(f.Primary.Name(), "")...).Warn(
		"scorer failed, falling back",
		zap.String("fallback", f.Secondary.Name()),
		zap.String(logger.FieldInterviewID, iv.ID),
		zap.Error(err),
	)

	return f.Secondary.Score(ctx, iv)
}
