package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/spigell/interview-runner/internal/interview"
)

// WritePDF exports the results report as an A4 document.
func WritePDF(w io.Writer, iv *interview.Interview) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Interview %s", iv.ID), true)
	pdf.SetCreator("interview-runner", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr("Interview results"))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	if iv.Company != "" {
		pdf.Cell(0, 6, tr("Company: "+iv.Company))
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, "Total duration: "+FormatDuration(iv.TotalDuration))
	pdf.Ln(10)

	a := iv.Analysis
	if a == nil {
		pdf.Cell(0, 6, "Analysis: "+notAvailable)
		return pdf.Output(w)
	}

	heading := func(title string) {
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, tr(title))
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
	}

	coloured := func(label, value string, band Band) {
		pdf.SetTextColor(0, 0, 0)
		pdf.Cell(45, 6, tr(label))
		pdf.SetTextColor(band.RGB())
		pdf.Cell(0, 6, tr(value))
		pdf.Ln(6)
	}

	heading("Scores")
	for _, line := range scoreLines(a) {
		coloured(line.label, FormatScore(line.score), ScoreBand(line.score))
	}
	pdf.Ln(4)

	risk := a.CheatingRiskLevel
	if strings.TrimSpace(risk) == "" {
		risk = notAvailable
	}
	coloured("Cheating risk", risk, RiskBand(a.CheatingRiskLevel))
	pdf.SetTextColor(0, 0, 0)
	for _, indicator := range a.CheatingIndicators {
		pdf.MultiCell(0, 6, tr("- "+indicator), "", "L", false)
	}
	pdf.Ln(4)

	for _, s := range sections(a) {
		if len(s.items) == 0 {
			continue
		}
		heading(s.title)
		for _, item := range s.items {
			pdf.MultiCell(0, 6, tr("- "+item), "", "L", false)
		}
		pdf.Ln(4)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
