package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spigell/interview-runner/internal/interview"
)

// Renderer writes a text report. Output depends only on the interview and Color.
type Renderer struct {
	Color bool
}

type scoreLine struct {
	label string
	score *float64
}

func scoreLines(a *interview.Analysis) []scoreLine {
	return []scoreLine{
		{"Overall", a.OverallScore},
		{"Technical", a.TechnicalScore},
		{"Communication", a.CommunicationScore},
		{"Behavioral", a.BehavioralScore},
	}
}

type section struct {
	title string
	items []string
}

func sections(a *interview.Analysis) []section {
	return []section{
		{"Strengths", a.Strengths},
		{"Weaknesses", a.Weaknesses},
		{"Key insights", a.KeyInsights},
		{"Recommendations", a.Recommendations},
	}
}

func (r Renderer) paint(b Band, text string) string {
	if !r.Color {
		return text
	}
	return b.Style()(text)
}

func (r Renderer) Render(w io.Writer, iv *interview.Interview) error {
	ew := &errWriter{w: w}

	ew.printf("Interview results\n")
	if iv.Company != "" {
		ew.printf("Company: %s\n", iv.Company)
	}
	ew.printf("Total duration: %s\n", FormatDuration(iv.TotalDuration))

	a := iv.Analysis
	if a == nil {
		ew.printf("\nAnalysis: %s\n", notAvailable)
		return ew.err
	}

	ew.printf("\nScores\n")
	for _, line := range scoreLines(a) {
		ew.printf("  %-15s %s\n", line.label+":", r.paint(ScoreBand(line.score), FormatScore(line.score)))
	}

	risk := a.CheatingRiskLevel
	if strings.TrimSpace(risk) == "" {
		risk = notAvailable
	}
	ew.printf("\nCheating risk: %s\n", r.paint(RiskBand(a.CheatingRiskLevel), risk))
	for _, indicator := range a.CheatingIndicators {
		ew.printf("  - %s\n", indicator)
	}

	for _, s := range sections(a) {
		if len(s.items) == 0 {
			continue
		}
		ew.printf("\n%s\n", s.title)
		for _, item := range s.items {
			ew.printf("  - %s\n", item)
		}
	}

	return ew.err
}

// Progress describes an interview that is not completed yet.
func Progress(w io.Writer, iv *interview.Interview) error {
	ew := &errWriter{w: w}
	ew.printf("Interview %s\n", iv.ID)
	ew.printf("Status: %s\n", iv.Status)
	ew.printf("Answered %d of %d questions\n", len(iv.Responses), len(iv.Questions))
	return ew.err
}

// FormatDuration renders whole seconds, or N/A when unknown.
func FormatDuration(seconds *int) string {
	if seconds == nil {
		return notAvailable
	}
	return FormatElapsed(time.Duration(*seconds) * time.Second)
}

// FormatElapsed renders a duration as mm:ss, or h:mm:ss past an hour.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
