package interview

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusNotStarted Status = "notstarted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus maps the values seen on the wire to a Status.
// An empty value means the interview was never started.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "notstarted", "not_started", "pending":
		return StatusNotStarted, nil
	case "in_progress", "inprogress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("unknown interview status %q", raw)
	}
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}

func (s Status) String() string {
	return string(s)
}

type Interview struct {
	ID                string             `json:"id" mapstructure:"id"`
	Status            Status             `json:"status" mapstructure:"status"`
	Questions         []Question         `json:"questions" mapstructure:"questions"`
	Responses         []Response         `json:"responses" mapstructure:"responses"`
	Analysis          *Analysis          `json:"analysis,omitempty" mapstructure:"analysis"`
	TotalDuration     *int               `json:"totalDuration,omitempty" mapstructure:"totalDuration"`
	JobDescription    string             `json:"jobDescription" mapstructure:"jobDescription"`
	Company           string             `json:"company" mapstructure:"company"`
	EyeTrackingEvents []EyeTrackingEvent `json:"eyeTrackingEvents,omitempty" mapstructure:"eyeTrackingEvents"`
	StartedAt         *time.Time         `json:"startedAt,omitempty" mapstructure:"startedAt"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty" mapstructure:"completedAt"`
}

type Question struct {
	Question string `json:"question" mapstructure:"question"`
	Category string `json:"category" mapstructure:"category"`
	Order    int    `json:"order" mapstructure:"order"`
}

// Response is a single submitted answer. QuestionID is the index of the question
// in Interview.Questions, not a server-issued identifier.
type Response struct {
	QuestionID int       `json:"questionId" mapstructure:"questionId"`
	Question   string    `json:"question" mapstructure:"question"`
	Response   string    `json:"response" mapstructure:"response"`
	StartTime  time.Time `json:"startTime" mapstructure:"startTime"`
	EndTime    time.Time `json:"endTime" mapstructure:"endTime"`
	// Duration in whole seconds.
	Duration int `json:"duration" mapstructure:"duration"`
}

// Analysis is produced by the backend when an interview is completed.
// Scores are optional; a nil score is rendered as not available.
type Analysis struct {
	OverallScore       *float64 `json:"overallScore,omitempty" mapstructure:"overallScore"`
	TechnicalScore     *float64 `json:"technicalScore,omitempty" mapstructure:"technicalScore"`
	CommunicationScore *float64 `json:"communicationScore,omitempty" mapstructure:"communicationScore"`
	BehavioralScore    *float64 `json:"behavioralScore,omitempty" mapstructure:"behavioralScore"`
	Strengths          []string `json:"strengths" mapstructure:"strengths"`
	Weaknesses         []string `json:"weaknesses" mapstructure:"weaknesses"`
	Recommendations    []string `json:"recommendations" mapstructure:"recommendations"`
	KeyInsights        []string `json:"keyInsights" mapstructure:"keyInsights"`
	CheatingRiskLevel  string   `json:"cheatingRiskLevel" mapstructure:"cheatingRiskLevel"`
	CheatingIndicators []string `json:"cheatingIndicators" mapstructure:"cheatingIndicators"`
}

const EventLookAway = "look_away"

type EyeTrackingEvent struct {
	Type string `json:"type" mapstructure:"type"`
	// Duration in seconds.
	Duration  float64   `json:"duration" mapstructure:"duration"`
	Timestamp time.Time `json:"timestamp" mapstructure:"timestamp"`
}

// NewResponse builds the response for the question at index. Duration is the
// wall-clock delta between start and end, truncated to whole seconds.
func NewResponse(index int, question, answer string, start, end time.Time) Response {
	duration := int(end.Sub(start) / time.Second)
	if duration < 0 {
		duration = 0
	}

	return Response{
		QuestionID: index,
		Question:   question,
		Response:   answer,
		StartTime:  start,
		EndTime:    end,
		Duration:   duration,
	}
}

// CanAppend reports whether another response fits: responses never outnumber questions.
func (i *Interview) CanAppend() bool {
	return len(i.Responses) < len(i.Questions)
}

// ResumeIndex is the index of the first unanswered question.
// It equals len(Questions) when every question has a response.
func (i *Interview) ResumeIndex() int {
	idx := len(i.Responses)
	if idx > len(i.Questions) {
		idx = len(i.Questions)
	}
	return idx
}

func (i *Interview) Score() float64 {
	if i.Analysis == nil || i.Analysis.OverallScore == nil {
		return 0
	}
	return *i.Analysis.OverallScore
}
