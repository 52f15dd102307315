package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/report"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	"github.com/khanhnv2901/seca-probe/internal/shared/security"
	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatPDF  = "pdf"
)

var reportFormat string
var reportOutput string

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Render a saved scan run, or list saved runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		ctx := commandContext(cmd)

		if len(args) == 0 {
			return listRuns(ctx, cmd.OutOrStdout(), appCtx)
		}
		if err := validateFormat(reportFormat); err != nil {
			return err
		}
		run, err := appCtx.Services.ScanService.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load run %s: %w", args[0], err)
		}
		return emitReport(cmd.OutOrStdout(), appCtx, run, reportFormat, reportOutput)
	},
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatPDF:
		return nil
	}
	return fmt.Errorf("unsupported format %q (use text, json or pdf)", format)
}

func renderReport(w io.Writer, run *scan.Run, format string) error {
	switch format {
	case formatJSON:
		return report.WriteJSON(w, run)
	case formatPDF:
		return report.WritePDF(w, run)
	case formatText:
		return report.WriteText(w, run)
	}
	return validateFormat(format)
}

// emitReport writes the report to output, or to out when output is empty.
// PDF reports are never written to the terminal; without --output they land
// next to the saved run.
func emitReport(out io.Writer, appCtx *AppContext, run *scan.Run, format, output string) error {
	if output == "" && format == formatPDF {
		path, err := security.ResolveRunFile(appCtx.ResultsDir, run.ID(), "report.pdf")
		if err != nil {
			return err
		}
		output = path
	}
	if output == "" {
		return renderReport(out, run, format)
	}

	var buf bytes.Buffer
	if err := renderReport(&buf, run, format); err != nil {
		return err
	}
	if err := os.WriteFile(output, buf.Bytes(), consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(out, "%s Report written to %s\n", colorSuccess("✓"), output)
	return nil
}

func listRuns(ctx context.Context, out io.Writer, appCtx *AppContext) error {
	runs, err := appCtx.Services.ScanService.List(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No saved runs.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTATUS\tISSUES\tFATAL\tTARGET")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			run.ID(),
			run.StartedAt().Local().Format(time.DateTime),
			run.Status(),
			run.IssueCount(),
			yesNo(run.HasFatal()),
			run.Target(),
		)
	}
	return tw.Flush()
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", formatText, "report format: text, json or pdf")
	reportCmd.Flags().StringVar(&reportOutput, "output", "", "write the report to this file instead of stdout")
}
