package report

import (
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// Band is the colour class of a score or a risk level.
type Band int

const (
	BandUnknown Band = iota
	BandPoor
	BandMedium
	BandGood
)

const notAvailable = "N/A"

func (b Band) String() string {
	switch b {
	case BandGood:
		return "good"
	case BandMedium:
		return "medium"
	case BandPoor:
		return "poor"
	default:
		return "unknown"
	}
}

// Style returns the terminal styler for the band.
func (b Band) Style() func(interface{}) string {
	switch b {
	case BandGood:
		return promptui.Styler(promptui.FGGreen)
	case BandMedium:
		return promptui.Styler(promptui.FGYellow)
	case BandPoor:
		return promptui.Styler(promptui.FGRed)
	default:
		return promptui.Styler(promptui.FGFaint)
	}
}

// RGB is the band colour used in PDF exports.
func (b Band) RGB() (int, int, int) {
	switch b {
	case BandGood:
		return 22, 163, 74
	case BandMedium:
		return 202, 138, 4
	case BandPoor:
		return 220, 38, 38
	default:
		return 107, 114, 128
	}
}

// ScoreBand classifies a 0-100 score: 80 and above is good, 60 and above is
// medium, anything lower is poor. A missing score is unknown.
func ScoreBand(score *float64) Band {
	switch {
	case score == nil:
		return BandUnknown
	case *score >= 80:
		return BandGood
	case *score >= 60:
		return BandMedium
	default:
		return BandPoor
	}
}

// RiskBand maps a cheating risk level onto the colour bands. Low risk is good.
func RiskBand(level string) Band {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return BandGood
	case "medium":
		return BandMedium
	case "high":
		return BandPoor
	default:
		return BandUnknown
	}
}

// FormatScore prints a score without trailing zeros, or N/A.
func FormatScore(score *float64) string {
	if score == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}
