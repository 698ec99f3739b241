package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/wip-ledger/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger as JSON",
		Long:  "Export ledger records as a JSON array. Retired records are included with --all.",
		Run:   runExport,
	}

	cmd.Flags().Bool("all", false, "Include retired records")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")

	s, err := openStore(resolveConfig())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := s.ExportAll(cmd.Context(), all)
	if err != nil {
		exitErr("export", err)
	}
	if records == nil {
		records = []model.Record{}
	}
	printJSON(records)
}
