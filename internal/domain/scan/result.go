package scan

import (
	"time"

	"github.com/khanhnv2901/seca-probe/internal/checker"
)

// Result is the stored outcome of one check on one target.
type Result struct {
	target   string
	category checker.TargetType
	check    string
	family   checker.Family
	outcome  checker.OutcomeKind
	issues   []checker.Issue
	err      string
	duration time.Duration
}

// ResultFromOutcome converts a runner outcome into a result.
func ResultFromOutcome(out checker.Outcome) *Result {
	res := &Result{
		target:   out.Target.String(),
		category: out.Target.Category(),
		check:    out.Identity.Name,
		family:   out.Identity.Family,
		outcome:  out.Kind,
		issues:   append([]checker.Issue(nil), out.Issues...),
		duration: out.Duration,
	}
	if out.Err != nil {
		res.err = out.Err.Error()
	}
	return res
}

// ReconstructResult rebuilds a result from persisted data.
func ReconstructResult(target string, category checker.TargetType, check string, family checker.Family,
	outcome checker.OutcomeKind, issues []checker.Issue, errText string, duration time.Duration) *Result {
	return &Result{
		target:   target,
		category: category,
		check:    check,
		family:   family,
		outcome:  outcome,
		issues:   issues,
		err:      errText,
		duration: duration,
	}
}

func (r *Result) Target() string { return r.target }
func (r *Result) Category() checker.TargetType { return r.category }
func (r *Result) Check() string { return r.check }
func (r *Result) Family() checker.Family { return r.family }
func (r *Result) Outcome() checker.OutcomeKind { return r.outcome }
func (r *Result) ErrorText() string { return r.err }
func (r *Result) Duration() time.Duration { return r.duration }

// Issues returns a copy of the findings.
func (r *Result) Issues() []checker.Issue {
	return append([]checker.Issue(nil), r.issues...)
}
