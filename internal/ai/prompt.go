package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	_ "embed"

	"github.com/spigell/interview-runner/internal/interview"
)

// SystemInstruction is sent to chat-style providers ahead of the prompt.
const SystemInstruction = "You are an experienced technical recruiter. You answer with strict JSON only."

//go:embed prompt.md
var promptTemplate string

type transcriptEntry struct {
	Order    int    `json:"order"`
	Category string `json:"category,omitempty"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Seconds  int    `json:"seconds"`
}

// BuildPrompt renders the scoring prompt for a finished interview.
func BuildPrompt(iv *interview.Interview) (string, error) {
	if iv == nil {
		return "", fmt.Errorf("interview is required")
	}

	answers := make(map[int]interview.Response, len(iv.Responses))
	for _, r := range iv.Responses {
		answers[r.QuestionID] = r
	}

	entries := make([]transcriptEntry, 0, len(iv.Questions))
	for i, q := range iv.Questions {
		entry := transcriptEntry{Order: i + 1, Category: q.Category, Question: q.Question}
		if r, ok := answers[i]; ok {
			entry.Answer = r.Response
			entry.Seconds = r.Duration
		}
		entries = append(entries, entry)
	}

	transcript, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}

	replacer := strings.NewReplacer(
		"{{COMPANY}}", orNone(iv.Company),
		"{{JOB_DESCRIPTION}}", orNone(iv.JobDescription),
		"{{TRANSCRIPT_JSON}}", string(transcript),
		"{{INTEGRITY_SUMMARY}}", integritySummary(iv.EyeTrackingEvents),
	)

	return replacer.Replace(promptTemplate), nil
}

func integritySummary(events []interview.EyeTrackingEvent) string {
	if len(events) == 0 {
		return "- none"
	}

	counts := make(map[string]int)
	seconds := make(map[string]float64)
	var order []string
	for _, ev := range events {
		if _, seen := counts[ev.Type]; !seen {
			order = append(order, ev.Type)
		}
		counts[ev.Type]++
		seconds[ev.Type] += ev.Duration
	}

	var b strings.Builder
	for i, kind := range order {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %d events, %.0f seconds total", kind, counts[kind], seconds[kind])
	}
	return b.String()
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "not provided"
	}
	return s
}

// ParseAnalysis reads a model reply into an Analysis. It tolerates code fences,
// numbers sent as strings and missing fields.
func ParseAnalysis(raw string) (*interview.Analysis, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}

	analysis := &interview.Analysis{
		OverallScore:       coerceScore(data["overallScore"]),
		TechnicalScore:     coerceScore(data["technicalScore"]),
		CommunicationScore: coerceScore(data["communicationScore"]),
		BehavioralScore:    coerceScore(data["behavioralScore"]),
		Strengths:          coerceStrings(data["strengths"]),
		Weaknesses:         coerceStrings(data["weaknesses"]),
		Recommendations:    coerceStrings(data["recommendations"]),
		KeyInsights:        coerceStrings(data["keyInsights"]),
		CheatingRiskLevel:  strings.ToLower(coerceString(data["cheatingRiskLevel"])),
		CheatingIndicators: coerceStrings(data["cheatingIndicators"]),
	}

	if analysis.OverallScore == nil {
		analysis.OverallScore = meanOf(analysis.TechnicalScore, analysis.BehavioralScore, analysis.CommunicationScore)
	}

	return analysis, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Some models wrap the object in prose.
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}

	return raw
}

func coerceScore(v any) *float64 {
	f := coerceFloat(v)
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return nil
}
