package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rcliao/wip-ledger/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Billable totals per client and project",
		Run:   runReport,
	}

	cmd.Flags().String("from", "", "Earliest day (inclusive)")
	cmd.Flags().String("to", "", "Latest day (inclusive)")
	cmd.Flags().StringP("client", "c", "", "Only this client")

	RootCmd.AddCommand(cmd)
}

func runReport(cmd *cobra.Command, args []string) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	client, _ := cmd.Flags().GetString("client")

	s, err := openStore(resolveConfig())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rep, err := s.Report(cmd.Context(), store.ReportParams{From: from, To: to, Client: client})
	if err != nil {
		exitErr("report", err)
	}

	if formatFlag == "text" {
		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "CLIENT\tPROJECT\tRECORDS\tHOURS\tAMOUNT")
		for _, l := range rep.Lines {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", l.Client, l.Project, l.Records, l.Hours.StringFixed(2), l.Amount.StringFixed(2))
		}
		fmt.Fprintf(w, "TOTAL\t\t\t%d min\t%s\n", rep.TotalMinutes, rep.TotalAmount.StringFixed(2))
		w.Flush()
		return
	}
	printJSON(rep)
}
