package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/khanhnv2901/seca-probe/internal/checks"
	"github.com/spf13/cobra"
)

var checksCmd = &cobra.Command{
	Use:              "checks",
	Short:            "List the available checks",
	Args:             cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	RunE: func(cmd *cobra.Command, args []string) error {
		return printCatalog(cmd.OutOrStdout(), checks.NewRegistry())
	},
}

func printCatalog(out io.Writer, registry *checks.Registry) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTARGET\tFAMILY\tLOGIN\tPAGES\tDESCRIPTION")
	for _, id := range registry.Catalog() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			id.Name,
			id.TargetType,
			id.Family,
			yesNo(id.RequiresAuthorization),
			yesNo(id.CanRunDuringCrawl),
			id.Description,
		)
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
