package checker

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/testutil"
	"github.com/khanhnv2901/seca-probe/internal/transport"
	"go.uber.org/zap/zaptest"
)

// probeFunc adapts a function to the Check interface.
type probeFunc struct {
	id Identity
	fn func(tok *cancel.Token, target Target, rec *Recorder) error
}

func (p probeFunc) Identity() Identity { return p.id }

func (p probeFunc) Probe(tok *cancel.Token, target Target, rec *Recorder) error {
	return p.fn(tok, target, rec)
}

func newProbe(name string, fn func(*cancel.Token, Target, *Recorder) error) probeFunc {
	return probeFunc{
		id: Identity{Name: name, TargetType: TargetPage, Family: FamilySecurity, CanRunDuringCrawl: true},
		fn: fn,
	}
}

func mustTarget(t *testing.T, raw string, category TargetType) Target {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	target, err := NewTarget(u, category)
	if err != nil {
		t.Fatalf("NewTarget(%s): %v", raw, err)
	}
	return target
}

func TestRunPassed(t *testing.T) {
	target := mustTarget(t, "https://example.test/", TargetPage)
	chk := newProbe("noop", func(*cancel.Token, Target, *Recorder) error { return nil })

	out := Run(cancel.New(), chk, target, zaptest.NewLogger(t))

	if out.Kind != OutcomePassed {
		t.Fatalf("expected passed, got %s (%v)", out.Kind, out.Err)
	}
	if out.Identity.Name != "noop" || out.Target.String() != target.String() {
		t.Errorf("outcome does not describe the check: %+v", out)
	}
}

func TestRunFailedWithIssues(t *testing.T) {
	target := mustTarget(t, "https://example.test/", TargetPage)
	chk := newProbe("finder", func(_ *cancel.Token, _ Target, rec *Recorder) error {
		rec.RaiseFinding("ref-a", "/form", "evidence", true)
		rec.RaiseFinding("ref-b", "", "more", false)
		return nil
	})

	out := Run(cancel.New(), chk, target, zaptest.NewLogger(t))

	if out.Kind != OutcomeFailedWithIssues {
		t.Fatalf("expected failed_with_issues, got %s", out.Kind)
	}
	if len(out.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(out.Issues))
	}
	if out.Issues[0] != NewIssue("ref-a", "/form", "evidence", true) {
		t.Errorf("unexpected first issue %+v", out.Issues[0])
	}
}

func TestRunFatalError(t *testing.T) {
	target := mustTarget(t, "https://example.test/", TargetPage)
	boom := errors.New("primary request failed")
	chk := newProbe("broken", func(_ *cancel.Token, _ Target, rec *Recorder) error {
		rec.RaiseFinding("ignored", "", "", false)
		return boom
	})

	out := Run(cancel.New(), chk, target, zaptest.NewLogger(t))

	if out.Kind != OutcomeFatalError || !errors.Is(out.Err, boom) {
		t.Fatalf("expected fatal error wrapping boom, got %s (%v)", out.Kind, out.Err)
	}
	if len(out.Issues) != 0 {
		t.Errorf("fatal outcome must not carry issues")
	}
}

func TestRunRecoversPanic(t *testing.T) {
	target := mustTarget(t, "https://example.test/", TargetPage)
	chk := newProbe("panicky", func(*cancel.Token, Target, *Recorder) error {
		var m map[string]int
		m["x"] = 1
		return nil
	})

	out := Run(cancel.New(), chk, target, zaptest.NewLogger(t))

	if out.Kind != OutcomeFatalError || !errors.Is(out.Err, ErrCheckPanic) {
		t.Fatalf("expected recovered panic, got %s (%v)", out.Kind, out.Err)
	}
}

func TestRunContractViolations(t *testing.T) {
	target := mustTarget(t, "https://example.test/", TargetPage)

	out := Run(nil, newProbe("x", func(*cancel.Token, Target, *Recorder) error { return nil }), target, nil)
	if out.Kind != OutcomeFatalError || !errors.Is(out.Err, ErrNilToken) {
		t.Fatalf("expected ErrNilToken, got %s (%v)", out.Kind, out.Err)
	}

	out = Run(cancel.New(), nil, target, nil)
	if out.Kind != OutcomeFatalError || !errors.Is(out.Err, ErrNilCheck) {
		t.Fatalf("expected ErrNilCheck, got %s (%v)", out.Kind, out.Err)
	}
}

func TestRunCancelledWinsOverFindings(t *testing.T) {
	target := mustTarget(t, "https://example.test/", TargetPage)
	tok := cancel.New()
	chk := newProbe("interrupted", func(tok *cancel.Token, _ Target, rec *Recorder) error {
		rec.RaiseFinding("partial", "", "", false)
		tok.Cancel(nil)
		return nil
	})

	out := Run(tok, chk, target, zaptest.NewLogger(t))

	if out.Kind != OutcomeCancelled {
		t.Fatalf("expected cancelled, got %s", out.Kind)
	}
	if len(out.Issues) != 0 {
		t.Error("cancelled outcome must not carry issues")
	}
}

func TestRunOnTriggeredTokenSkipsProbe(t *testing.T) {
	target := mustTarget(t, "https://example.test/", TargetPage)
	tok := cancel.New()
	tok.Cancel(nil)
	called := false
	chk := newProbe("skipped", func(*cancel.Token, Target, *Recorder) error {
		called = true
		return nil
	})

	out := Run(tok, chk, target, zaptest.NewLogger(t))

	if out.Kind != OutcomeCancelled || called {
		t.Fatalf("expected cancelled without probing, got %s (called=%v)", out.Kind, called)
	}
}

func TestRunCancelledMidRequest(t *testing.T) {
	app := testutil.NewWebApp(t, testutil.WebAppOptions{})
	client := transport.NewClientWithTransport(app.Client().Transport, transport.Options{Timeout: 5 * time.Second})
	target := mustTarget(t, app.SlowURL(), TargetPage)
	chk := newProbe("slow", func(tok *cancel.Token, target Target, rec *Recorder) error {
		_, err := client.Get(tok, target.String(), nil)
		if err != nil {
			if err := rec.HandleTransportError(err); err != nil {
				return err
			}
		}
		rec.RaiseFinding("never", "", "", false)
		return nil
	})

	tok := cancel.New()
	go func() {
		<-app.SlowStarted()
		tok.Cancel(nil)
	}()
	out := Run(tok, chk, target, zaptest.NewLogger(t))

	if out.Kind != OutcomeCancelled {
		t.Fatalf("expected cancelled, got %s (%v)", out.Kind, out.Err)
	}
}

func TestHandleTransportErrorAbsorbsNetworkFailures(t *testing.T) {
	rec := newRecorder(cancel.New(), "test", zaptest.NewLogger(t))

	if err := rec.HandleTransportError(&transport.NetworkError{Method: "GET", URL: "http://x", Err: errors.New("refused")}); err != nil {
		t.Fatalf("network failure should be absorbed, got %v", err)
	}
	if err := rec.HandleTransportError(transport.ErrTimeout); err != nil {
		t.Fatalf("timeout should be absorbed, got %v", err)
	}
	if err := rec.HandleTransportError(cancel.ErrCancelled); !errors.Is(err, cancel.ErrCancelled) {
		t.Fatalf("cancellation should be returned, got %v", err)
	}
	if len(rec.Issues()) != 0 {
		t.Fatal("transport failures must never become findings")
	}
}

func TestNewTargetRejectsRelativeURI(t *testing.T) {
	for _, raw := range []string{"/relative", "example.test/path", "ftp://example.test/"} {
		u, _ := url.Parse(raw)
		if _, err := NewTarget(u, TargetPage); err == nil {
			t.Errorf("expected %q to be rejected", raw)
		}
	}
	if _, err := NewTarget(nil, TargetPage); err == nil {
		t.Error("expected nil URI to be rejected")
	}
	u, _ := url.Parse("https://example.test/")
	if _, err := NewTarget(u, TargetType("CLIENT")); err == nil {
		t.Error("expected unknown category to be rejected")
	}
}

func TestParseTarget(t *testing.T) {
	tests := map[string]string{
		"example.test":               "http://example.test/",
		"example.test:8080":          "http://example.test:8080/",
		"https://example.test/a?b=c": "https://example.test/a?b=c",
		"http://example.test#frag":   "http://example.test/",
	}
	for in, want := range tests {
		got, err := ParseTarget(in)
		if err != nil {
			t.Errorf("ParseTarget(%q) returned error: %v", in, err)
			continue
		}
		if got.String() != want {
			t.Errorf("ParseTarget(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseTarget("   "); err == nil {
		t.Error("expected empty target to be rejected")
	}
}

func TestIdentityValidate(t *testing.T) {
	valid := Identity{Name: "csrf", TargetType: TargetPage, Family: FamilySecurity}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Identity{Name: "x", TargetType: "NOPE", Family: FamilySEO}).Validate(); err == nil {
		t.Error("expected invalid target type to fail")
	}
	if err := (Identity{Name: "x", TargetType: TargetServer, Family: "OTHER"}).Validate(); err == nil {
		t.Error("expected invalid family to fail")
	}
}
