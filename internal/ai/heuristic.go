package ai

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spigell/interview-runner/internal/interview"
)

const (
	fullAnswerWords = 60
	minAnswerScore  = 30.0
)

// Heuristic scores answers by coverage and length and rates cheating risk from
// the recorded integrity events. The result depends only on the interview.
type Heuristic struct{}

func (Heuristic) Name() string { return "heuristic" }

func (Heuristic) Score(_ context.Context, iv *interview.Interview) (*interview.Analysis, error) {
	if iv == nil {
		return nil, fmt.Errorf("interview is required")
	}

	answers := make(map[int]string, len(iv.Responses))
	for _, r := range iv.Responses {
		answers[r.QuestionID] = r.Response
	}

	var technical, behavioral, all []float64
	var words, answered int
	for i, q := range iv.Questions {
		text, ok := answers[i]
		score := 0.0
		if ok {
			n := len(strings.Fields(text))
			words += n
			answered++
			score = answerScore(n)
		}

		all = append(all, score)
		switch strings.ToLower(q.Category) {
		case "technical":
			technical = append(technical, score)
		case "behavioral", "behavioural":
			behavioral = append(behavioral, score)
		}
	}

	communication := mean(all)
	if communication != nil && answered > 0 {
		// Average length across answered questions drives the clarity component.
		clarity := answerScore(words / answered)
		v := round1((*communication + clarity) / 2)
		communication = &v
	}

	analysis := &interview.Analysis{
		TechnicalScore:     mean(technical),
		BehavioralScore:    mean(behavioral),
		CommunicationScore: communication,
	}
	analysis.OverallScore = meanOf(analysis.TechnicalScore, analysis.BehavioralScore, analysis.CommunicationScore)

	analysis.CheatingRiskLevel, analysis.CheatingIndicators = riskLevel(iv.EyeTrackingEvents)
	analysis.Strengths, analysis.Weaknesses, analysis.Recommendations = feedback(analysis, answered, len(iv.Questions))

	analysis.KeyInsights = []string{
		fmt.Sprintf("Answered %d of %d questions", answered, len(iv.Questions)),
	}
	if answered > 0 {
		analysis.KeyInsights = append(analysis.KeyInsights,
			fmt.Sprintf("Average answer length is %d words", words/answered))
	}

	return analysis, nil
}

func answerScore(words int) float64 {
	if words <= 0 {
		return 0
	}
	if words > fullAnswerWords {
		words = fullAnswerWords
	}
	return round1(minAnswerScore + (100-minAnswerScore)*float64(words)/fullAnswerWords)
}

func riskLevel(events []interview.EyeTrackingEvent) (string, []string) {
	var away float64
	count := 0
	for _, ev := range events {
		if ev.Type == interview.EventLookAway {
			count++
			away += ev.Duration
		}
	}

	var indicators []string
	if count > 0 {
		indicators = append(indicators,
			fmt.Sprintf("Looked away from the screen %d times for %.0f seconds in total", count, away))
	}

	switch {
	case count >= 6 || away >= 20:
		return "high", indicators
	case count >= 3 || away >= 8:
		return "medium", indicators
	default:
		return "low", indicators
	}
}

func feedback(a *interview.Analysis, answered, total int) (strengths, weaknesses, recommendations []string) {
	check := func(score *float64, area string) {
		if score == nil {
			return
		}
		switch {
		case *score >= 80:
			strengths = append(strengths, fmt.Sprintf("Detailed %s answers", area))
		case *score < 60:
			weaknesses = append(weaknesses, fmt.Sprintf("Brief %s answers", area))
			recommendations = append(recommendations,
				fmt.Sprintf("Give concrete examples when answering %s questions", area))
		}
	}

	check(a.TechnicalScore, "technical")
	check(a.BehavioralScore, "behavioral")
	check(a.CommunicationScore, "communication")

	if answered < total {
		weaknesses = append(weaknesses, fmt.Sprintf("%d questions left unanswered", total-answered))
		recommendations = append(recommendations, "Answer every question, even briefly")
	}

	return strengths, weaknesses, recommendations
}

func mean(scores []float64) *float64 {
	if len(scores) == 0 {
		return nil
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	v := round1(sum / float64(len(scores)))
	return &v
}

func meanOf(scores ...*float64) *float64 {
	var present []float64
	for _, s := range scores {
		if s != nil {
			present = append(present, *s)
		}
	}
	return mean(present)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
