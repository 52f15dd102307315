package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"github.com/spf13/cobra"
)

var errAuditTampered = errors.New("audit trail integrity check failed")

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and verify the audit trail of a scan run",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <run-id>",
	Short: "Verify audit trail integrity using its cryptographic hash",
	Long: `Verify that the audit trail of a run has not been tampered with.

Every scan writes audit.csv next to the saved run and seals it with a SHA256
or SHA512 digest stored in a companion file. This command recomputes the
digest and compares it with the stored value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return verifyAuditTrail(commandContext(cmd), cmd.OutOrStdout(), getAppContext(cmd), args[0])
	},
}

var auditListCmd = &cobra.Command{
	Use:   "list <run-id>",
	Short: "List the audit trail entries of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listAuditTrail(commandContext(cmd), cmd.OutOrStdout(), getAppContext(cmd), args[0])
	},
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func verifyAuditTrail(ctx context.Context, out io.Writer, appCtx *AppContext, runID string) error {
	valid, err := appCtx.Services.AuditService.VerifyIntegrity(ctx, runID)
	if err != nil {
		if errors.Is(err, sharedErrors.ErrAuditTrailNotFound) {
			return fmt.Errorf("no sealed audit trail found for run %s", runID)
		}
		return err
	}
	if !valid {
		fmt.Fprintf(out, "%s Audit trail of run %s FAILED verification; it may have been tampered with\n", colorError("✗"), runID)
		return errAuditTampered
	}
	fmt.Fprintf(out, "%s Audit trail of run %s verified\n", colorSuccess("✓"), runID)
	return nil
}

func listAuditTrail(ctx context.Context, out io.Writer, appCtx *AppContext, runID string) error {
	trail, err := appCtx.Services.AuditService.GetAuditTrail(ctx, runID)
	if err != nil {
		if errors.Is(err, sharedErrors.ErrAuditTrailNotFound) {
			return fmt.Errorf("no audit trail found for run %s", runID)
		}
		return err
	}

	fmt.Fprintf(out, "Audit trail for run %s (%d entries)\n", runID, len(trail.Entries()))
	if trail.IsSealed() {
		fmt.Fprintf(out, "Status: %s (%s)\n\n", colorSuccess("Sealed"), trail.HashAlgorithm())
	} else {
		fmt.Fprintf(out, "Status: %s\n\n", colorWarn("Unsealed"))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Timestamp\tOperator\tCheck\tTarget\tOutcome\tIssues\tDuration")
	for _, entry := range trail.Entries() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.2fs\n",
			entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
			entry.Operator,
			entry.Check,
			entry.Target,
			entry.Outcome,
			entry.Issues,
			entry.DurationSeconds,
		)
	}
	return w.Flush()
}

func init() {
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditListCmd)
}
