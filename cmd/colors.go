package cmd

import (
	"github.com/fatih/color"
	"github.com/khanhnv2901/seca-probe/internal/checker"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

func formatOutcomeWithColor(kind checker.OutcomeKind) string {
	label := string(kind)
	switch kind {
	case checker.OutcomePassed:
		return colorSuccess(label)
	case checker.OutcomeFailedWithIssues:
		return colorWarn(label)
	case checker.OutcomeFatalError:
		return colorError(label)
	case checker.OutcomeCancelled:
		return colorInfo(label)
	default:
		return label
	}
}
