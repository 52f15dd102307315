package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	scanapp "github.com/khanhnv2901/seca-probe/internal/application/scan"
	"github.com/khanhnv2901/seca-probe/internal/auth"
	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/checks"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Run the selected checks against a target",
	Long: `Run the selected checks against a target URL.

Server-wide checks run once against the target's origin; page checks run
against the given URL and, with --all-pages, against every same-host page
discovered from it. Interrupting the scan (Ctrl-C) cancels in-flight checks;
the partial run is still saved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		run, err := runScan(cancel.FromContext(ctx), appCtx, args[0], cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if err := sealAuditTrail(context.WithoutCancel(ctx), cmd.ErrOrStderr(), appCtx, run); err != nil {
			return err
		}
		if err := emitReport(cmd.OutOrStdout(), appCtx, run, appCtx.Config.Scan.Format, appCtx.Config.Scan.Output); err != nil {
			return err
		}
		printScanSummary(cmd.ErrOrStderr(), run)
		if run.Status() == scan.RunStatusCancelled {
			fmt.Fprintln(cmd.ErrOrStderr(), colorWarn("Scan interrupted; partial results saved as run "+run.ID()))
		}
		return fatalChecks(run)
	},
}

// runScan builds the transport, sessions and checks from the runtime config
// and executes one scan.
func runScan(tok *cancel.Token, appCtx *AppContext, target string, progressOut io.Writer) (*scan.Run, error) {
	cfg := appCtx.Config
	logger := appCtx.zapLogger()

	if err := validateFormat(cfg.Scan.Format); err != nil {
		return nil, err
	}

	client := transport.NewClient(transport.Options{
		Timeout:   time.Duration(cfg.Scan.TimeoutSecs) * time.Second,
		RateLimit: cfg.Scan.RateLimit,
		UserAgent: userAgent(),
		Insecure:  cfg.Scan.Insecure,
		Logger:    logger,
	})
	sessions := newSessionManager(client, cfg.Auth, logger)

	built, err := appCtx.Services.Registry.Build(cfg.Scan.Checks, checks.Deps{
		Client:   client,
		Sessions: sessions,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	runner := &checker.Runner{
		Concurrency:  cfg.Scan.Concurrency,
		CheckTimeout: time.Duration(cfg.Scan.CheckTimeoutSecs) * time.Second,
		Logger:       logger,
	}
	if cfg.Scan.ProgressEnabled {
		progress := newProgressPrinter(progressOut, "scan")
		runner.OnPlan = progress.Plan
		runner.OnOutcome = progress.Record
		progress.Start()
		defer progress.Stop()
	}

	if sessions.Configured() {
		appCtx.Logger.Infof("authenticated scan as %s via %s", cfg.Auth.Username, cfg.Auth.LoginURL)
	}

	return appCtx.Services.ScanService.Execute(tok, scanapp.Request{
		Target:   target,
		Operator: appCtx.Operator,
		Checks:   built,
		Client:   client,
		Sessions: sessions,
		Runner:   runner,
		AllPages: cfg.Scan.AllPages,
		Crawl: checker.CrawlOptions{
			MaxDepth: cfg.Scan.MaxDepth,
			MaxPages: cfg.Scan.MaxPages,
			Logger:   logger,
		},
	})
}

// newSessionManager returns nil when no login is configured; checks that
// require authorization are then skipped.
func newSessionManager(client *transport.Client, cfg AuthConfig, logger *zap.Logger) *auth.Manager {
	if cfg.LoginURL == "" || cfg.Username == "" {
		return nil
	}
	primary := auth.Credentials{LoginURL: cfg.LoginURL, Username: cfg.Username, Password: cfg.Password}
	var secondary auth.Credentials
	if cfg.SecondUsername != "" {
		secondary = auth.Credentials{LoginURL: cfg.LoginURL, Username: cfg.SecondUsername, Password: cfg.SecondPassword}
	}
	return auth.NewManager(auth.NewFormLogin(client, logger), primary, secondary, logger)
}

func sealAuditTrail(ctx context.Context, out io.Writer, appCtx *AppContext, run *scan.Run) error {
	algorithm := appCtx.Config.Defaults.HashAlgorithm
	hash, err := appCtx.Services.AuditService.RecordRun(ctx, run, algorithm)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Audit trail sealed (%s): %s\n", algorithm, hash)
	return nil
}

func printScanSummary(out io.Writer, run *scan.Run) {
	counts := run.Counts()
	fmt.Fprintf(out, "Run %s:", run.ID())
	for _, kind := range []checker.OutcomeKind{
		checker.OutcomePassed,
		checker.OutcomeFailedWithIssues,
		checker.OutcomeFatalError,
		checker.OutcomeCancelled,
	} {
		fmt.Fprintf(out, " %s=%d", formatOutcomeWithColor(kind), counts[kind])
	}
	fmt.Fprintf(out, " issues=%d\n", run.IssueCount())
}

func fatalChecks(run *scan.Run) error {
	var errs []error
	for _, res := range run.Results() {
		if res.Outcome() == checker.OutcomeFatalError {
			errs = append(errs, fmt.Errorf("%s on %s: %s", res.Check(), res.Target(), res.ErrorText()))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &FatalChecksError{RunID: run.ID(), Count: len(errs), Err: errors.Join(errs...)}
}

func init() {
	flags := scanCmd.Flags()
	sc := &cliConfig.Scan
	ac := &cliConfig.Auth

	flags.StringSliceVar(&sc.Checks, "checks", nil, "comma-separated checks to run (default: all, see 'seca-probe checks')")
	flags.BoolVar(&sc.AllPages, "all-pages", sc.AllPages, "discover same-host pages and run page checks on each")
	flags.IntVar(&sc.MaxPages, "max-pages", sc.MaxPages, "maximum number of discovered pages")
	flags.IntVar(&sc.MaxDepth, "max-depth", sc.MaxDepth, "maximum link depth during discovery")
	flags.IntVar(&sc.Concurrency, "concurrency", sc.Concurrency, "maximum checks running at once (0 for all)")
	flags.IntVar(&sc.RateLimit, "rate-limit", sc.RateLimit, "maximum requests per second (0 for unlimited)")
	flags.IntVar(&sc.TimeoutSecs, "timeout", sc.TimeoutSecs, "per-request timeout in seconds")
	flags.IntVar(&sc.CheckTimeoutSecs, "check-timeout", sc.CheckTimeoutSecs, "time budget of each check in seconds (0 for none)")
	flags.BoolVar(&sc.Insecure, "insecure", false, "skip TLS certificate verification")
	flags.StringVar(&sc.Format, "format", sc.Format, "report format: text, json or pdf")
	flags.StringVar(&sc.Output, "output", "", "write the report to this file instead of stdout")
	flags.BoolVar(&sc.ProgressEnabled, "progress", false, "show progress on stderr")

	flags.StringVar(&ac.LoginURL, "login-url", "", "URL of the login form")
	flags.StringVar(&ac.Username, "username", "", "primary account user name")
	flags.StringVar(&ac.Password, "password", "", "primary account password (or SECA_PROBE_AUTH_PASSWORD)")
	flags.StringVar(&ac.SecondUsername, "second-username", "", "second account user name, for cross-session checks")
	flags.StringVar(&ac.SecondPassword, "second-password", "", "second account password (or SECA_PROBE_AUTH_SECOND_PASSWORD)")
}
