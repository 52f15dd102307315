// Package scan coordinates one scan: target validation, page discovery,
// running the applicable checks per target and persisting the run.
package scan

import (
	"context"
	"fmt"
	"net/url"

	"github.com/khanhnv2901/seca-probe/internal/auth"
	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"github.com/khanhnv2901/seca-probe/internal/transport"
	"go.uber.org/zap"
)

// Request describes one scan.
type Request struct {
	Target   string
	Operator string
	Checks   []checker.Check

	Client   *transport.Client
	Sessions *auth.Manager
	Runner   *checker.Runner

	// AllPages discovers same-host pages and runs the crawl-capable checks
	// on each of them.
	AllPages bool
	Crawl    checker.CrawlOptions
}

// Service runs scans and gives access to stored runs.
type Service struct {
	repo   scan.Repository
	logger *zap.Logger
}

// NewService creates a scan service.
func NewService(repo scan.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Execute runs the scan described by req and saves the run. A triggered tok
// ends the run as cancelled; the results gathered until then are kept and
// saved. The returned error reports an invalid request or a failed save,
// never a failing check: those are recorded in the run.
func (s *Service) Execute(tok *cancel.Token, req Request) (*scan.Run, error) {
	if tok == nil {
		return nil, checker.ErrNilToken
	}
	if len(req.Checks) == 0 {
		return nil, sharedErrors.ErrNoChecksSelected
	}
	if req.Client == nil || req.Runner == nil {
		return nil, fmt.Errorf("%w: client and runner", sharedErrors.ErrMissingRequired)
	}
	start, err := checker.ParseTarget(req.Target)
	if err != nil {
		return nil, err
	}
	serverTarget, err := checker.NewTarget(checker.ServerRoot(start), checker.TargetServer)
	if err != nil {
		return nil, err
	}
	rootPage, err := checker.NewTarget(start, checker.TargetPage)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(req.Checks))
	for _, chk := range req.Checks {
		names = append(names, chk.Identity().Name)
	}
	run, err := scan.NewRun(start.String(), req.Operator, names)
	if err != nil {
		return nil, err
	}
	if err := run.Start(); err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("run_id", run.ID()), zap.String("target", run.Target()))
	logger.Info("scan started", zap.Strings("checks", names))

	authenticated := req.Sessions.Configured()
	s.runTarget(tok, req, run, serverTarget, checker.SelectOptions{Authenticated: authenticated}, logger)
	s.runTarget(tok, req, run, rootPage, checker.SelectOptions{Authenticated: authenticated}, logger)

	if req.AllPages && !tok.Triggered() {
		pages := s.discover(tok, req, start, logger)
		run.SetPages(pages)
		for _, page := range pages {
			if tok.Triggered() {
				break
			}
			u, err := checker.ParseTarget(page)
			if err != nil {
				continue
			}
			target, err := checker.NewTarget(u, checker.TargetPage)
			if err != nil {
				continue
			}
			s.runTarget(tok, req, run, target, checker.SelectOptions{Authenticated: authenticated, DuringCrawl: true}, logger)
		}
	}

	if tok.Triggered() {
		err = run.Cancel()
	} else {
		err = run.Complete()
	}
	if err != nil {
		return run, err
	}

	// The token may be cancelled by now; the partial run is saved regardless.
	if err := s.repo.Save(context.WithoutCancel(tok.Context()), run); err != nil {
		return run, fmt.Errorf("save scan run: %w", err)
	}
	counts := run.Counts()
	logger.Info("scan finished",
		zap.String("status", string(run.Status())),
		zap.Int("issues", run.IssueCount()),
		zap.Int("fatal", counts[checker.OutcomeFatalError]),
		zap.Int("cancelled", counts[checker.OutcomeCancelled]),
	)
	return run, nil
}

func (s *Service) runTarget(tok *cancel.Token, req Request, run *scan.Run, target checker.Target, opts checker.SelectOptions, logger *zap.Logger) {
	if tok.Triggered() {
		return
	}
	applicable := checker.SelectApplicable(req.Checks, target, opts)
	if len(applicable) == 0 {
		return
	}
	batch := req.Runner.RunChecks(tok, target, applicable)
	for _, out := range batch.Outcomes {
		if err := run.AddResult(scan.ResultFromOutcome(out)); err != nil {
			logger.Error("dropping result", zap.String("check", out.Identity.Name), zap.Error(err))
		}
	}
	if err := batch.Fatal(); err != nil {
		logger.Warn("checks failed", zap.String("page", target.String()), zap.Error(err))
	}
}

func (s *Service) discover(tok *cancel.Token, req Request, start *url.URL, logger *zap.Logger) []string {
	opts := req.Crawl
	opts.Logger = logger
	if req.Sessions.Configured() && opts.Jar == nil {
		session, err := req.Sessions.Shared(tok)
		switch {
		case err == nil:
			opts.Jar = session.Jar
		case cancel.IsCancelled(err):
			return nil
		default:
			logger.Warn("crawling anonymously", zap.Error(err))
		}
	}

	pages, err := checker.DiscoverPages(tok, req.Client, start, opts)
	if err != nil && !cancel.IsCancelled(err) {
		logger.Warn("page discovery failed", zap.Error(err))
	}
	logger.Info("pages discovered", zap.Int("count", len(pages)))
	return pages
}

// Get loads a stored run.
func (s *Service) Get(ctx context.Context, id string) (*scan.Run, error) {
	run, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan run: %w", err)
	}
	return run, nil
}

// List returns every stored run, newest first.
func (s *Service) List(ctx context.Context) ([]*scan.Run, error) {
	runs, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	return runs, nil
}
