package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

// maxPDFEntries bounds the detail section; larger runs are summarized.
const maxPDFEntries = 200

// WritePDF writes an A4 PDF report.
func WritePDF(w io.Writer, run *scan.Run) error {
	doc := Build(run)
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Scan report "+doc.RunID, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr("Scan Report: "+doc.Target), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Run ID: "+doc.RunID, "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, tr("Operator: "+doc.Operator), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, "Status: "+doc.Status, "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, "Started: "+doc.StartedAt.Format(time.RFC3339), "", 1, "", false, 0, "")
	if doc.Duration != "" {
		pdf.CellFormat(0, 6, "Duration: "+doc.Duration, "", 1, "", false, 0, "")
	}
	pdf.MultiCell(0, 6, "Checks: "+strings.Join(doc.Checks, ", "), "", "", false)
	pdf.Ln(5)

	s := doc.Summary
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Issues: %d | With findings: %d | Fatal: %d | Passed: %d | Cancelled: %d",
		s.Issues, s.Findings, s.Fatal, s.Passed, s.Cancelled), "", 1, "", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Findings", "", 1, "", false, 0, "")
	pdf.Ln(2)
	if len(doc.Entries) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 6, "No findings.", "", 1, "", false, 0, "")
	}

	for i, e := range doc.Entries {
		if i == maxPDFEntries {
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 6, fmt.Sprintf("... %d additional entries omitted ...", len(doc.Entries)-maxPDFEntries), "", 1, "", false, 0, "")
			break
		}
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(0, 7, tr(fmt.Sprintf("%s - %s", e.Check, e.Outcome)), "", 1, "", true, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, tr("Target: "+e.Target), "", "", false)
		if e.Error != "" {
			pdf.SetFont("Arial", "I", 9)
			pdf.MultiCell(0, 5, tr("Error: "+e.Error), "", "", false)
		}
		for _, issue := range e.Issues {
			if pdf.GetY() > 270 {
				pdf.AddPage()
			}
			label := issue.Ref
			if issue.MaybeFalsePositive {
				label += " (may be a false positive)"
			}
			pdf.SetFont("Arial", "B", 8)
			pdf.MultiCell(0, 4, tr("  - "+label), "", "", false)
			pdf.SetFont("Arial", "", 8)
			if issue.Position != "" {
				pdf.MultiCell(0, 4, tr("    at "+issue.Position), "", "", false)
			}
			pdf.MultiCell(0, 4, tr("    "+issue.Content), "", "", false)
		}
		pdf.Ln(3)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}
	return nil
}
