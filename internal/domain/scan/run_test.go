package scan

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/checker"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
)

func outcome(t *testing.T, name string, kind checker.OutcomeKind, issues ...checker.Issue) checker.Outcome {
	t.Helper()
	u, _ := url.Parse("https://shop.example/")
	target, err := checker.NewTarget(u, checker.TargetPage)
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	out := checker.Outcome{
		Identity: checker.Identity{Name: name, TargetType: checker.TargetPage, Family: checker.FamilySecurity},
		Target:   target,
		Kind:     kind,
		Issues:   issues,
	}
	if kind == checker.OutcomeFatalError {
		out.Err = errors.New("boom")
	}
	return out
}

func TestNewRunValidation(t *testing.T) {
	if _, err := NewRun("", "alice", []string{"csrf"}); !errors.Is(err, sharedErrors.ErrEmptyTarget) {
		t.Fatalf("expected ErrEmptyTarget, got %v", err)
	}
	if _, err := NewRun("https://shop.example/", "", []string{"csrf"}); !errors.Is(err, sharedErrors.ErrMissingRequired) {
		t.Fatalf("expected ErrMissingRequired, got %v", err)
	}
	if _, err := NewRun("https://shop.example/", "alice", nil); !errors.Is(err, sharedErrors.ErrNoChecksSelected) {
		t.Fatalf("expected ErrNoChecksSelected, got %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	run, err := NewRun("https://shop.example/", "alice", []string{"csrf"})
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	if run.Status() != RunStatusPending {
		t.Fatalf("expected pending, got %s", run.Status())
	}
	if err := run.AddResult(ResultFromOutcome(outcome(t, "csrf", checker.OutcomePassed))); !errors.Is(err, sharedErrors.ErrScanRunNotStarted) {
		t.Fatalf("expected ErrScanRunNotStarted, got %v", err)
	}

	if err := run.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := run.Start(); !errors.Is(err, sharedErrors.ErrScanRunAlreadyStarted) {
		t.Fatalf("expected ErrScanRunAlreadyStarted, got %v", err)
	}

	issue := checker.NewIssue("csrf-no-protection", "POST /save", "no token", true)
	for _, out := range []checker.Outcome{
		outcome(t, "csrf", checker.OutcomeFailedWithIssues, issue),
		outcome(t, "tls", checker.OutcomeFatalError),
		outcome(t, "cors", checker.OutcomeCancelled),
		outcome(t, "seo-metadata", checker.OutcomePassed),
	} {
		if err := run.AddResult(ResultFromOutcome(out)); err != nil {
			t.Fatalf("AddResult: %v", err)
		}
	}

	if err := run.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := run.Complete(); !errors.Is(err, sharedErrors.ErrScanRunAlreadyCompleted) {
		t.Fatalf("expected ErrScanRunAlreadyCompleted, got %v", err)
	}
	if err := run.AddResult(ResultFromOutcome(outcome(t, "csrf", checker.OutcomePassed))); !errors.Is(err, sharedErrors.ErrScanRunAlreadyCompleted) {
		t.Fatalf("expected ErrScanRunAlreadyCompleted, got %v", err)
	}

	if run.Status() != RunStatusCancelled {
		t.Fatalf("expected cancelled, got %s", run.Status())
	}
	if got := len(run.Results()); got != 4 {
		t.Fatalf("partial results must be kept, got %d", got)
	}
	if !run.HasFatal() {
		t.Fatal("expected HasFatal")
	}
	if run.IssueCount() != 1 {
		t.Fatalf("expected 1 issue, got %d", run.IssueCount())
	}

	reportable := run.Reportable()
	if len(reportable) != 2 || reportable[0].Check() != "csrf" || reportable[1].Check() != "tls" {
		t.Fatalf("unexpected reportable results: %+v", reportable)
	}
	if reportable[1].ErrorText() != "boom" {
		t.Fatalf("expected error text, got %q", reportable[1].ErrorText())
	}

	counts := run.Counts()
	for _, kind := range []checker.OutcomeKind{
		checker.OutcomePassed, checker.OutcomeFailedWithIssues, checker.OutcomeCancelled, checker.OutcomeFatalError,
	} {
		if counts[kind] != 1 {
			t.Errorf("count for %s = %d, want 1", kind, counts[kind])
		}
	}
}

func TestReconstructRejectsBadData(t *testing.T) {
	var timeZero time.Time
	if _, err := Reconstruct("not-a-uuid", "t", "op", nil, nil, timeZero, timeZero, RunStatusCompleted, nil); !errors.Is(err, sharedErrors.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
	id := "2f1c7c57-5d0e-4d43-9f1b-2c4f0c0c0b7e"
	if _, err := Reconstruct(id, "t", "op", nil, nil, timeZero, timeZero, RunStatus("exploded"), nil); !errors.Is(err, sharedErrors.ErrInvalidScanStatus) {
		t.Fatalf("expected ErrInvalidScanStatus, got %v", err)
	}
}
