package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

// WriteText writes a plain-text report.
func WriteText(w io.Writer, run *scan.Run) error {
	doc := Build(run)
	var b strings.Builder

	fmt.Fprintf(&b, "Scan %s\n", doc.RunID)
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Target:\t%s\n", doc.Target)
	fmt.Fprintf(tw, "Operator:\t%s\n", doc.Operator)
	fmt.Fprintf(tw, "Status:\t%s\n", doc.Status)
	fmt.Fprintf(tw, "Started:\t%s\n", doc.StartedAt.Format(time.RFC3339))
	if doc.Duration != "" {
		fmt.Fprintf(tw, "Duration:\t%s\n", doc.Duration)
	}
	fmt.Fprintf(tw, "Checks:\t%s\n", strings.Join(doc.Checks, ", "))
	if len(doc.Pages) > 0 {
		fmt.Fprintf(tw, "Pages:\t%d discovered\n", len(doc.Pages))
	}
	_ = tw.Flush()

	s := doc.Summary
	fmt.Fprintf(&b, "\nSummary: %d issue(s); %d check(s) with findings, %d fatal, %d passed, %d cancelled\n",
		s.Issues, s.Findings, s.Fatal, s.Passed, s.Cancelled)

	if len(doc.Entries) == 0 {
		b.WriteString("\nNo findings.\n")
	}
	for _, e := range doc.Entries {
		fmt.Fprintf(&b, "\n[%s] %s on %s\n", strings.ToUpper(e.Outcome), e.Check, e.Target)
		if e.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", e.Error)
		}
		for _, issue := range e.Issues {
			marker := ""
			if issue.MaybeFalsePositive {
				marker = " (may be a false positive)"
			}
			fmt.Fprintf(&b, "  - %s%s\n", issue.Ref, marker)
			if issue.Position != "" {
				fmt.Fprintf(&b, "    at: %s\n", issue.Position)
			}
			fmt.Fprintf(&b, "    %s\n", issue.Content)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
