package checker

import (
	"errors"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// OutcomeFunc observes each outcome as soon as its check settles. It is
// called from the check's goroutine.
type OutcomeFunc func(Outcome)

// PlanFunc learns how many checks RunChecks is about to start on a target.
type PlanFunc func(target Target, checks int)

// Runner runs the applicable checks of a target concurrently.
type Runner struct {
	Concurrency  int           // Maximum number of concurrent checks, 0 for all at once
	RateLimit    int           // Check starts per second, 0 disables pacing
	CheckTimeout time.Duration // Time budget of each check, 0 for none
	Logger       *zap.Logger
	OnPlan       PlanFunc
	OnOutcome    OutcomeFunc
}

// RunChecks starts every check against target and waits for all of them to
// settle. One check failing never stops the others. Every check runs under
// its own dependent of tok, so cancelling tok reaches every in-flight check
// while a check timing out affects only itself. Outcomes are returned in the
// order of checks.
func (r *Runner) RunChecks(tok *cancel.Token, target Target, checks []Check) Batch {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	batch := Batch{Target: target, Outcomes: make([]Outcome, len(checks))}
	if r.OnPlan != nil {
		r.OnPlan(target, len(checks))
	}

	var limiter *rate.Limiter
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), r.RateLimit)
	}

	var g errgroup.Group
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}
	for i, chk := range checks {
		i, chk := i, chk
		g.Go(func() error {
			batch.Outcomes[i] = r.runOne(tok, chk, target, limiter, logger)
			if r.OnOutcome != nil {
				r.OnOutcome(batch.Outcomes[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	counts := batch.Counts()
	logger.Info("checks settled",
		zap.String("target", target.String()),
		zap.String("category", string(target.Category())),
		zap.Int("passed", counts[OutcomePassed]),
		zap.Int("failed", counts[OutcomeFailedWithIssues]),
		zap.Int("cancelled", counts[OutcomeCancelled]),
		zap.Int("fatal", counts[OutcomeFatalError]),
	)
	return batch
}

func (r *Runner) runOne(tok *cancel.Token, chk Check, target Target, limiter *rate.Limiter, logger *zap.Logger) Outcome {
	if tok == nil {
		return Run(nil, chk, target, logger)
	}
	child := tok.NewDependent()
	// Releases the child's registration on tok once the check settled.
	defer child.Cancel(nil)

	if limiter != nil {
		if err := limiter.Wait(child.Context()); err != nil {
			out := Outcome{Target: target, Kind: OutcomeCancelled, Err: child.Err()}
			if chk != nil {
				out.Identity = chk.Identity()
			}
			if out.Err == nil {
				out.Err = err
			}
			return out
		}
	}
	if r.CheckTimeout > 0 {
		timer := time.AfterFunc(r.CheckTimeout, func() { child.Cancel(ErrCheckTimeout) })
		defer timer.Stop()
	}
	return Run(child, chk, target, logger)
}

// Batch is the settled result of one RunChecks call.
type Batch struct {
	Target   Target
	Outcomes []Outcome
}

// Fatal joins the errors of every check that ended in OutcomeFatalError, or
// returns nil.
func (b Batch) Fatal() error {
	var errs []error
	for _, o := range b.Outcomes {
		if o.Kind == OutcomeFatalError {
			errs = append(errs, fmt.Errorf("%s on %s: %w", o.Identity.Name, b.Target, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Findings returns the outcomes that reported issues.
func (b Batch) Findings() []Outcome {
	var out []Outcome
	for _, o := range b.Outcomes {
		if o.Kind == OutcomeFailedWithIssues {
			out = append(out, o)
		}
	}
	return out
}

// Issues flattens the issues of every outcome.
func (b Batch) Issues() []Issue {
	var issues []Issue
	for _, o := range b.Outcomes {
		issues = append(issues, o.Issues...)
	}
	return issues
}

// Counts tallies outcomes by kind.
func (b Batch) Counts() map[OutcomeKind]int {
	counts := make(map[OutcomeKind]int, 4)
	for _, o := range b.Outcomes {
		counts[o.Kind]++
	}
	return counts
}

// SelectOptions describes the scan context a check must fit.
type SelectOptions struct {
	Authenticated bool // credentials are configured
	DuringCrawl   bool // the target is a page found by discovery
}

// SelectApplicable keeps the checks that apply to target.
func SelectApplicable(checks []Check, target Target, opts SelectOptions) []Check {
	var selected []Check
	for _, chk := range checks {
		if chk == nil {
			continue
		}
		id := chk.Identity()
		if id.TargetType != target.Category() {
			continue
		}
		if id.RequiresAuthorization && !opts.Authenticated {
			continue
		}
		if opts.DuringCrawl && !id.CanRunDuringCrawl {
			continue
		}
		selected = append(selected, chk)
	}
	return selected
}
