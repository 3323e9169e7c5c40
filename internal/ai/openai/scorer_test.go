package openai

import (
	"context"
	"errors"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/ai"
	"github.com/spigell/interview-runner/internal/interview"
)

type stubCompleter struct {
	reply string
	err   error
	req   goopenai.ChatCompletionRequest
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	s.req = req
	if s.err != nil {
		return goopenai.ChatCompletionResponse{}, s.err
	}
	return goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{
			Message: goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: s.reply},
		}},
	}, nil
}

func TestScorerScore(t *testing.T) {
	stub := &stubCompleter{reply: `{"overallScore": 64.5, "communicationScore": 70, "cheatingRiskLevel": "medium", "cheatingIndicators": ["looked away"]}`}
	s := newScorer(stub, "", zap.NewNop())

	iv := &interview.Interview{ID: "iv-2", Questions: []interview.Question{{Question: "Why us?"}}}
	analysis, err := s.Score(context.Background(), iv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *analysis.OverallScore != 64.5 || analysis.CheatingRiskLevel != "medium" {
		t.Fatalf("unexpected analysis %+v", analysis)
	}
	if stub.req.Model != defaultModel {
		t.Fatalf("expected default model, got %q", stub.req.Model)
	}
	if len(stub.req.Messages) != 2 || stub.req.Messages[0].Content != ai.SystemInstruction {
		t.Fatalf("unexpected messages %+v", stub.req.Messages)
	}
	if stub.req.ResponseFormat == nil || stub.req.ResponseFormat.Type != goopenai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatalf("expected json response format")
	}
}

func TestScorerErrors(t *testing.T) {
	iv := &interview.Interview{ID: "iv-3"}

	if _, err := newScorer(&stubCompleter{err: errors.New("rate limited")}, "gpt-4o", zap.NewNop()).Score(context.Background(), iv); err == nil {
		t.Fatalf("expected client error")
	}
	if _, err := newScorer(&stubCompleter{reply: "sorry"}, "", zap.NewNop()).Score(context.Background(), iv); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := NewScorer(" ", "", "", zap.NewNop()); err == nil {
		t.Fatalf("expected missing key error")
	}
}
