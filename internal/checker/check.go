package checker

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"go.uber.org/zap"
)

var (
	// ErrNilToken is a programming error: a check was started without a token.
	ErrNilToken = errors.New("check started without a cancellation token")
	// ErrNilCheck is a programming error: a nil check was scheduled.
	ErrNilCheck = errors.New("nil check")
	// ErrCheckTimeout is the cancellation reason of a check that overran its
	// time budget.
	ErrCheckTimeout = errors.New("check exceeded its time budget")
	// ErrCheckPanic wraps a panic recovered from a probe.
	ErrCheckPanic = errors.New("check panicked")
)

// Check is one self-contained probe.
type Check interface {
	Identity() Identity
	// Probe inspects the target, recording findings on rec. A returned error
	// is fatal to the check unless it wraps cancel.ErrCancelled. Transport
	// failures that are not findings go through rec.HandleTransportError.
	Probe(tok *cancel.Token, target Target, rec *Recorder) error
}

// OutcomeKind is the terminal state of one check execution.
type OutcomeKind string

const (
	OutcomePassed           OutcomeKind = "passed"
	OutcomeFailedWithIssues OutcomeKind = "failed_with_issues"
	OutcomeCancelled        OutcomeKind = "cancelled"
	OutcomeFatalError       OutcomeKind = "fatal_error"
)

// Reportable reports whether the outcome is shown to the operator.
func (k OutcomeKind) Reportable() bool {
	return k == OutcomeFailedWithIssues || k == OutcomeFatalError
}

// Outcome is the result of running one check against one target.
type Outcome struct {
	Identity Identity
	Target   Target
	Kind     OutcomeKind
	Issues   []Issue
	Err      error
	Duration time.Duration
}

// Recorder collects the findings of one check execution and classifies the
// transport errors the probe runs into.
type Recorder struct {
	tok    *cancel.Token
	check  string
	logger *zap.Logger

	mu     sync.Mutex
	issues []Issue
}

func newRecorder(tok *cancel.Token, check string, logger *zap.Logger) *Recorder {
	return &Recorder{tok: tok, check: check, logger: logger.With(zap.String("check", check))}
}

// RaiseFinding appends an issue. It does nothing else.
func (r *Recorder) RaiseFinding(ref, position, content string, maybeFalsePositive bool) {
	r.mu.Lock()
	r.issues = append(r.issues, NewIssue(ref, position, content, maybeFalsePositive))
	r.mu.Unlock()
}

// HandleTransportError sorts a failed request. A cancellation is returned so
// the probe can stop and end Cancelled. Any other failure is logged with
// fields and absorbed: an unreachable host is not a security finding.
func (r *Recorder) HandleTransportError(err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	if cancel.IsCancelled(err) || r.tok.Triggered() {
		return err
	}
	r.logger.Warn("request failed", append(fields, zap.Error(err))...)
	return nil
}

// Logger returns the check's logger.
func (r *Recorder) Logger() *zap.Logger {
	return r.logger
}

// Issues returns a copy of the recorded issues.
func (r *Recorder) Issues() []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Issue(nil), r.issues...)
}

// Run executes chk against target and returns its terminal state. Run never
// panics and never leaves an error unclassified: a triggered token yields
// OutcomeCancelled, a probe error OutcomeFatalError, otherwise the outcome
// depends on whether issues were recorded. A token cancelled with
// ErrCheckTimeout counts as a fatal error.
func Run(tok *cancel.Token, chk Check, target Target, logger *zap.Logger) Outcome {
	start := time.Now()
	if chk == nil {
		return Outcome{Target: target, Kind: OutcomeFatalError, Err: ErrNilCheck}
	}
	id := chk.Identity()
	out := Outcome{Identity: id, Target: target}
	if tok == nil {
		out.Kind = OutcomeFatalError
		out.Err = ErrNilToken
		return out
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		mu        sync.Mutex
		completed bool
		reason    error
	)
	stop := tok.Register(func(r error) {
		mu.Lock()
		if !completed {
			reason = r
		}
		mu.Unlock()
	})
	defer stop()

	rec := newRecorder(tok, id.Name, logger)
	var err error
	if !tok.Triggered() {
		err = probe(chk, tok, target, rec)
	}

	mu.Lock()
	completed = true
	cancelled := reason
	mu.Unlock()
	out.Duration = time.Since(start)

	if cancelled == nil && cancel.IsCancelled(err) {
		cancelled = err
	}
	switch {
	case cancelled != nil && errors.Is(cancelled, ErrCheckTimeout):
		out.Kind = OutcomeFatalError
		out.Err = fmt.Errorf("%s: %w", id.Name, ErrCheckTimeout)
	case cancelled != nil:
		out.Kind = OutcomeCancelled
		out.Err = cancelled
	case err != nil:
		out.Kind = OutcomeFatalError
		out.Err = err
	default:
		out.Issues = rec.Issues()
		if len(out.Issues) == 0 {
			out.Kind = OutcomePassed
		} else {
			out.Kind = OutcomeFailedWithIssues
		}
	}

	logger.Debug("check settled",
		zap.String("check", id.Name),
		zap.String("target", target.String()),
		zap.String("outcome", string(out.Kind)),
		zap.Int("issues", len(out.Issues)),
		zap.Duration("duration", out.Duration),
	)
	return out
}

func probe(chk Check, tok *cancel.Token, target Target, rec *Recorder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			rec.Logger().Error("check panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrCheckPanic, r)
		}
	}()
	return chk.Probe(tok, target, rec)
}
