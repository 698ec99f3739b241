package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rcliao/wip-ledger/internal/model"
	"github.com/rcliao/wip-ledger/internal/store"
	"github.com/rcliao/wip-ledger/internal/textutil"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger records",
		Run:   runList,
	}

	cmd.Flags().String("date", "", "Filter by day (YYYY-MM-DD)")
	cmd.Flags().String("from", "", "Earliest day (inclusive)")
	cmd.Flags().String("to", "", "Latest day (inclusive)")
	cmd.Flags().StringP("client", "c", "", "Filter by client")
	cmd.Flags().StringP("project", "p", "", "Filter by project")
	cmd.Flags().Bool("all", false, "Include retired records")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0 = no limit)")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	date, _ := cmd.Flags().GetString("date")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	client, _ := cmd.Flags().GetString("client")
	project, _ := cmd.Flags().GetString("project")
	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore(resolveConfig())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := s.List(cmd.Context(), store.ListParams{
		Date:           date,
		From:           from,
		To:             to,
		Client:         client,
		Project:        project,
		IncludeRetired: all,
		Limit:          limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	if formatFlag == "text" {
		printRecords(records)
		return
	}
	if records == nil {
		records = []model.Record{}
	}
	printJSON(records)
}

func printRecords(records []model.Record) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tCLIENT\tPROJECT\tMIN\tAMOUNT\tDESCRIPTION")
	for _, r := range records {
		id := r.ID
		if r.RetiredAt != nil {
			id += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			id, r.Date, r.ClientName, r.ProjectName, r.TimeInMinutes, r.Amount().StringFixed(2),
			textutil.Truncate(r.Description, 60))
	}
	w.Flush()
}
