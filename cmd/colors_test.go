package cmd

import (
	"testing"

	"github.com/fatih/color"
	"github.com/khanhnv2901/seca-probe/internal/checker"
)

func TestFormatOutcomeWithColor(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	tests := []struct {
		kind checker.OutcomeKind
		want string
	}{
		{checker.OutcomePassed, "passed"},
		{checker.OutcomeFailedWithIssues, "failed_with_issues"},
		{checker.OutcomeFatalError, "fatal_error"},
		{checker.OutcomeCancelled, "cancelled"},
		{checker.OutcomeKind("other"), "other"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := formatOutcomeWithColor(tt.kind); got != tt.want {
				t.Fatalf("formatOutcomeWithColor(%q) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}
