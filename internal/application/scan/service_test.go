package scan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/auth"
	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/checks"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/infrastructure/persistence/json"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"github.com/khanhnv2901/seca-probe/internal/testutil"
	"github.com/khanhnv2901/seca-probe/internal/transport"
	"go.uber.org/zap/zaptest"
)

func newService(t *testing.T) (*Service, *json.ScanRunRepository) {
	t.Helper()
	env := testutil.NewTestEnv(t)
	repo, err := json.NewScanRunRepository(env.ResultsDir)
	if err != nil {
		t.Fatalf("NewScanRunRepository: %v", err)
	}
	return NewService(repo, zaptest.NewLogger(t)), repo
}

func buildChecks(t *testing.T, client *transport.Client, sessions *auth.Manager, names ...string) []checker.Check {
	t.Helper()
	built, err := checks.NewRegistry().Build(names, checks.Deps{Client: client, Sessions: sessions})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return built
}

func resultsByCheck(run *scan.Run) map[string][]*scan.Result {
	out := make(map[string][]*scan.Result)
	for _, res := range run.Results() {
		out[res.Check()] = append(out[res.Check()], res)
	}
	return out
}

func TestExecute_AuthenticatedScan(t *testing.T) {
	svc, repo := newService(t)
	app := testutil.NewWebApp(t, testutil.WebAppOptions{ExtraHidden: []string{"blabla"}})
	logger := zaptest.NewLogger(t)
	client := transport.NewClientWithTransport(app.Client().Transport, transport.Options{Timeout: 2 * time.Second})
	sessions := auth.NewManager(
		auth.NewFormLogin(client, logger),
		auth.Credentials{LoginURL: app.LoginURL(), Username: "alice", Password: "alice-pass"},
		auth.Credentials{},
		logger,
	)

	run, err := svc.Execute(cancel.New(), Request{
		Target:   app.AccountURL(),
		Operator: "tester",
		Checks:   buildChecks(t, client, sessions, "csrf", "cookie-flags"),
		Client:   client,
		Sessions: sessions,
		Runner:   &checker.Runner{Concurrency: 2, Logger: logger},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.Status() != scan.RunStatusCompleted {
		t.Fatalf("expected completed run, got %s", run.Status())
	}

	byCheck := resultsByCheck(run)
	csrf := byCheck["csrf"]
	if len(csrf) != 1 || csrf[0].Outcome() != checker.OutcomeFailedWithIssues {
		t.Fatalf("unexpected csrf results: %+v", csrf)
	}
	if issues := csrf[0].Issues(); len(issues) != 1 || issues[0].Ref != checks.RefCSRFNoProtection {
		t.Fatalf("unexpected csrf issues: %+v", issues)
	}
	if cookie := byCheck["cookie-flags"]; len(cookie) != 1 || cookie[0].Category() != checker.TargetServer {
		t.Fatalf("cookie-flags should run once on the server target: %+v", cookie)
	}

	stored, err := repo.FindByID(context.Background(), run.ID())
	if err != nil {
		t.Fatalf("run was not saved: %v", err)
	}
	if len(stored.Results()) != len(run.Results()) {
		t.Fatalf("stored %d results, ran %d", len(stored.Results()), len(run.Results()))
	}
}

func TestExecute_SkipsAuthorizedChecksWithoutCredentials(t *testing.T) {
	svc, _ := newService(t)
	app := testutil.NewWebApp(t, testutil.WebAppOptions{})
	client := transport.NewClientWithTransport(app.Client().Transport, transport.Options{Timeout: 2 * time.Second})

	run, err := svc.Execute(cancel.New(), Request{
		Target:   app.AccountURL(),
		Operator: "tester",
		Checks:   buildChecks(t, client, nil, "csrf", "seo-metadata"),
		Client:   client,
		Runner:   &checker.Runner{},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	byCheck := resultsByCheck(run)
	if _, ran := byCheck["csrf"]; ran {
		t.Fatal("csrf requires credentials and must not run")
	}
	if len(byCheck["seo-metadata"]) != 1 {
		t.Fatalf("expected seo-metadata on the root page, got %+v", byCheck)
	}
}

func TestExecute_AllPages(t *testing.T) {
	svc, _ := newService(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><head><title>Home</title></head><body><h1>Home</h1><a href="/about">About</a><a href="/contact">Contact</a></body></html>`)
		default:
			fmt.Fprint(w, `<html><head><title>Sub</title></head><body><h1>Sub</h1></body></html>`)
		}
	}))
	t.Cleanup(server.Close)
	client := transport.NewClientWithTransport(server.Client().Transport, transport.Options{Timeout: 2 * time.Second})

	run, err := svc.Execute(cancel.New(), Request{
		Target:   server.URL,
		Operator: "tester",
		Checks:   buildChecks(t, client, nil, "seo-metadata", "security-headers"),
		Client:   client,
		Runner:   &checker.Runner{},
		AllPages: true,
		Crawl:    checker.CrawlOptions{MaxDepth: 1, MaxPages: 10},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := len(run.Pages()); got != 2 {
		t.Fatalf("expected 2 discovered pages, got %v", run.Pages())
	}
	byCheck := resultsByCheck(run)
	if got := len(byCheck["seo-metadata"]); got != 3 {
		t.Fatalf("seo-metadata should run on root and 2 pages, ran %d times", got)
	}
	if got := len(byCheck["security-headers"]); got != 1 {
		t.Fatalf("security-headers runs only on the server target, ran %d times", got)
	}
}

func TestExecute_CancelledMidScanKeepsPartialResults(t *testing.T) {
	svc, repo := newService(t)
	app := testutil.NewWebApp(t, testutil.WebAppOptions{})
	client := transport.NewClientWithTransport(app.Client().Transport, transport.Options{Timeout: 5 * time.Second})
	tok := cancel.New()
	go func() {
		<-app.SlowStarted()
		tok.Cancel(errors.New("interrupt"))
	}()

	run, err := svc.Execute(tok, Request{
		Target:   app.SlowURL(),
		Operator: "tester",
		Checks:   buildChecks(t, client, nil, "security-headers", "js-libraries"),
		Client:   client,
		Runner:   &checker.Runner{},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.Status() != scan.RunStatusCancelled {
		t.Fatalf("expected cancelled run, got %s", run.Status())
	}

	byCheck := resultsByCheck(run)
	if headers := byCheck["security-headers"]; len(headers) != 1 || headers[0].Outcome() == checker.OutcomeCancelled {
		t.Fatalf("server check finished before the interrupt: %+v", headers)
	}
	if js := byCheck["js-libraries"]; len(js) != 1 || js[0].Outcome() != checker.OutcomeCancelled {
		t.Fatalf("page check should be cancelled: %+v", js)
	}
	if run.HasFatal() {
		t.Fatal("a cancelled check must not count as fatal")
	}

	if _, err := repo.FindByID(context.Background(), run.ID()); err != nil {
		t.Fatalf("cancelled run was not saved: %v", err)
	}
}

func TestExecute_InvalidRequest(t *testing.T) {
	svc, _ := newService(t)
	client := transport.NewClient(transport.Options{})
	built := buildChecks(t, client, nil, "tls")

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"empty target", Request{Operator: "op", Checks: built, Client: client, Runner: &checker.Runner{}}, sharedErrors.ErrEmptyTarget},
		{"bad scheme", Request{Target: "ftp://files.example", Operator: "op", Checks: built, Client: client, Runner: &checker.Runner{}}, sharedErrors.ErrInvalidTarget},
		{"no checks", Request{Target: "https://shop.example", Operator: "op", Client: client, Runner: &checker.Runner{}}, sharedErrors.ErrNoChecksSelected},
		{"no operator", Request{Target: "https://shop.example", Checks: built, Client: client, Runner: &checker.Runner{}}, sharedErrors.ErrMissingRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Execute(cancel.New(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
