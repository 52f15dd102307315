package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/checker"
)

func TestProgressPrinterCountsOutcomes(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, "scan")
	p.Plan(checker.Target{}, 1)
	p.Plan(checker.Target{}, 3)

	p.Record(checker.Outcome{Kind: checker.OutcomePassed, Duration: time.Second})
	p.Record(checker.Outcome{Kind: checker.OutcomeFailedWithIssues, Duration: 2 * time.Second})
	p.Record(checker.Outcome{Kind: checker.OutcomeFatalError, Duration: 3 * time.Second})
	p.Record(checker.Outcome{Kind: checker.OutcomeCancelled})

	line := p.line()
	for _, want := range []string{"4/4", "Passed:1", "Findings:1", "Fatal:1", "Cancelled:1", "Avg:1.50s"} {
		if !strings.Contains(line, want) {
			t.Fatalf("progress line %q missing %q", line, want)
		}
	}

	p.Stop()
	p.Stop()
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatalf("Stop should end the progress line, got %q", buf.String())
	}
}

func TestProgressPrinterTotalFollowsPlannedTargets(t *testing.T) {
	p := newProgressPrinter(&bytes.Buffer{}, "scan")
	if line := p.line(); !strings.Contains(line, "0/0 (0.0%)") {
		t.Fatalf("expected an empty total before planning, got %q", line)
	}

	p.Plan(checker.Target{}, 2)
	p.Plan(checker.Target{}, 3)
	for i := 0; i < 4; i++ {
		p.Record(checker.Outcome{Kind: checker.OutcomePassed})
	}

	if line := p.line(); !strings.Contains(line, "4/5 (80.0%)") {
		t.Fatalf("expected 4 of 5 planned checks, got %q", line)
	}
}
