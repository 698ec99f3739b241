package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Merge records that describe the same work",
		Long:  "Cluster each day's active records and consolidate every cluster into one record. Days are never merged together.",
		Run:   runNormalize,
	}

	cmd.Flags().String("date", "", "Only normalize this day (YYYY-MM-DD)")
	cmd.Flags().Bool("dry-run", false, "Print the plan without applying it")

	RootCmd.AddCommand(cmd)
}

func runNormalize(cmd *cobra.Command, args []string) {
	date, _ := cmd.Flags().GetString("date")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg := resolveConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := newTracker(cfg, s).Normalize(cmd.Context(), date, dryRun)
	if err != nil {
		exitErr("normalize", err)
	}

	if formatFlag == "text" {
		for _, r := range results {
			state := "unchanged"
			switch {
			case r.Applied:
				state = "applied run " + r.Run.ID
			case !r.Plan.Empty():
				state = "dry run"
			}
			fmt.Printf("%s  %d records, %d clusters, %d retired  (%s)\n",
				r.Date, r.Plan.Input, r.Plan.Clusters, len(r.Plan.Retire), state)
			for _, a := range r.Plan.Absorbed {
				fmt.Printf("  %s -> %s  (%.1f)\n", a.From, a.Into, a.Confidence)
			}
		}
		return
	}
	printJSON(results)
}
