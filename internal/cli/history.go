package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/wip-ledger/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show merge history",
		Long: `Show the merge links touching a record, or the most recent merge runs when no ID is given.

Links marked "partial" were accepted without evaluating every signal, so
their confidence covers only the client and project checks.`,
		Args:  cobra.MaximumNArgs(1),
		Run:   runHistory,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max runs when listing runs")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore(resolveConfig())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if len(args) == 0 {
		runs, err := s.Runs(cmd.Context(), limit)
		if err != nil {
			exitErr("history", err)
		}
		if runs == nil {
			runs = []store.Run{}
		}
		printJSON(runs)
		return
	}

	if _, err := s.Get(cmd.Context(), args[0]); err != nil {
		exitErr("history", err)
	}
	links, err := s.History(cmd.Context(), args[0])
	if err != nil {
		exitErr("history", err)
	}
	if links == nil {
		links = []store.Link{}
	}
	printJSON(links)
}
