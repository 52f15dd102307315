// Package report renders a scan run for the operator. Only checks that
// reported issues or failed are listed; passed and cancelled checks appear
// in the summary counts.
package report

import (
	"time"

	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

// Document is the rendering-neutral view of a run.
type Document struct {
	RunID       string    `json:"run_id"`
	Target      string    `json:"target"`
	Operator    string    `json:"operator"`
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Duration    string    `json:"duration"`
	Checks      []string  `json:"checks"`
	Pages       []string  `json:"pages,omitempty"`
	Summary     Summary   `json:"summary"`
	Entries     []Entry   `json:"entries"`
}

// Summary counts outcomes over the whole run.
type Summary struct {
	Passed    int `json:"passed"`
	Findings  int `json:"findings_reported"`
	Cancelled int `json:"cancelled"`
	Fatal     int `json:"fatal_errors"`
	Issues    int `json:"issues"`
}

// Entry is one reportable check outcome.
type Entry struct {
	Check    string          `json:"check"`
	Target   string          `json:"target"`
	Category string          `json:"category"`
	Outcome  string          `json:"outcome"`
	Issues   []checker.Issue `json:"issues,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Build converts a run into a Document.
func Build(run *scan.Run) Document {
	counts := run.Counts()
	doc := Document{
		RunID:       run.ID(),
		Target:      run.Target(),
		Operator:    run.Operator(),
		Status:      string(run.Status()),
		StartedAt:   run.StartedAt(),
		CompletedAt: run.CompletedAt(),
		Checks:      run.Checks(),
		Pages:       run.Pages(),
		Summary: Summary{
			Passed:    counts[checker.OutcomePassed],
			Findings:  counts[checker.OutcomeFailedWithIssues],
			Cancelled: counts[checker.OutcomeCancelled],
			Fatal:     counts[checker.OutcomeFatalError],
			Issues:    run.IssueCount(),
		},
		Entries: []Entry{},
	}
	if !run.CompletedAt().IsZero() {
		doc.Duration = run.Duration().Round(time.Millisecond).String()
	}
	for _, res := range run.Reportable() {
		doc.Entries = append(doc.Entries, Entry{
			Check:    res.Check(),
			Target:   res.Target(),
			Category: string(res.Category()),
			Outcome:  string(res.Outcome()),
			Issues:   res.Issues(),
			Error:    res.ErrorText(),
		})
	}
	return doc
}
