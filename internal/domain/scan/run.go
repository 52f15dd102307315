// Package scan holds the scan run aggregate: one operator-initiated execution
// of checks against a target and the results it produced.
package scan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
)

// Run is the aggregate root of a scan. It owns its Results.
type Run struct {
	id          string
	target      string
	operator    string
	checks      []string
	pages       []string
	startedAt   time.Time
	completedAt time.Time
	status      RunStatus
	results     []*Result
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusCancelled:
		return true
	}
	return false
}

// Finished reports whether no more results can be added.
func (s RunStatus) Finished() bool {
	return s == RunStatusCompleted || s == RunStatusCancelled
}

// NewRun creates a pending run against target.
func NewRun(target, operator string, checks []string) (*Run, error) {
	if target == "" {
		return nil, sharedErrors.ErrEmptyTarget
	}
	if operator == "" {
		return nil, fmt.Errorf("%w: operator", sharedErrors.ErrMissingRequired)
	}
	if len(checks) == 0 {
		return nil, sharedErrors.ErrNoChecksSelected
	}

	return &Run{
		id:        uuid.NewString(),
		target:    target,
		operator:  operator,
		checks:    append([]string(nil), checks...),
		startedAt: time.Now().UTC(),
		status:    RunStatusPending,
	}, nil
}

// Reconstruct rebuilds a run from persisted data.
func Reconstruct(id, target, operator string, checks, pages []string, startedAt, completedAt time.Time,
	status RunStatus, results []*Result) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: run id %q", sharedErrors.ErrInvalidData, id)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", sharedErrors.ErrInvalidScanStatus, status)
	}
	return &Run{
		id:          id,
		target:      target,
		operator:    operator,
		checks:      checks,
		pages:       pages,
		startedAt:   startedAt,
		completedAt: completedAt,
		status:      status,
		results:     results,
	}, nil
}

// Start moves a pending run to running.
func (r *Run) Start() error {
	if r.status != RunStatusPending {
		return sharedErrors.ErrScanRunAlreadyStarted
	}
	r.status = RunStatusRunning
	r.startedAt = time.Now().UTC()
	return nil
}

// SetPages records the pages discovered for the run.
func (r *Run) SetPages(pages []string) {
	r.pages = append([]string(nil), pages...)
}

// AddResult records the outcome of one check on one target.
func (r *Run) AddResult(result *Result) error {
	switch {
	case r.status == RunStatusPending:
		return sharedErrors.ErrScanRunNotStarted
	case r.status.Finished():
		return sharedErrors.ErrScanRunAlreadyCompleted
	}
	r.results = append(r.results, result)
	return nil
}

// Complete ends a running run normally.
func (r *Run) Complete() error {
	return r.finish(RunStatusCompleted)
}

// Cancel ends a running run that the operator aborted. The results recorded
// so far are kept.
func (r *Run) Cancel() error {
	return r.finish(RunStatusCancelled)
}

func (r *Run) finish(status RunStatus) error {
	switch {
	case r.status == RunStatusPending:
		return sharedErrors.ErrScanRunNotStarted
	case r.status.Finished():
		return sharedErrors.ErrScanRunAlreadyCompleted
	}
	r.status = status
	r.completedAt = time.Now().UTC()
	return nil
}

// Counts tallies results per outcome.
func (r *Run) Counts() map[checker.OutcomeKind]int {
	counts := make(map[checker.OutcomeKind]int, 4)
	for _, res := range r.results {
		counts[res.Outcome()]++
	}
	return counts
}

// IssueCount is the number of findings over all results.
func (r *Run) IssueCount() int {
	n := 0
	for _, res := range r.results {
		n += len(res.Issues())
	}
	return n
}

// HasFatal reports whether any check ended in a fatal error.
func (r *Run) HasFatal() bool {
	for _, res := range r.results {
		if res.Outcome() == checker.OutcomeFatalError {
			return true
		}
	}
	return false
}

// Reportable returns the results shown to the operator, in recording order.
func (r *Run) Reportable() []*Result {
	var out []*Result
	for _, res := range r.results {
		if res.Outcome().Reportable() {
			out = append(out, res)
		}
	}
	return out
}

func (r *Run) ID() string { return r.id }
func (r *Run) Target() string { return r.target }
func (r *Run) Operator() string { return r.operator }
func (r *Run) Checks() []string { return append([]string(nil), r.checks...) }
func (r *Run) Pages() []string { return append([]string(nil), r.pages...) }
func (r *Run) StartedAt() time.Time { return r.startedAt }
func (r *Run) CompletedAt() time.Time { return r.completedAt }
func (r *Run) Status() RunStatus { return r.status }
func (r *Run) Duration() time.Duration { return r.completedAt.Sub(r.startedAt) }

// Results returns a copy of the recorded results.
func (r *Run) Results() []*Result {
	return append([]*Result(nil), r.results...)
}
