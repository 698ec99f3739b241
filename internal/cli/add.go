package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rcliao/wip-ledger/internal/model"
	"github.com/rcliao/wip-ledger/internal/settings"
	"github.com/rcliao/wip-ledger/internal/textutil"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [description]",
		Short: "Insert a ledger record as-is",
		Long:  "Insert a ledger record without merging. The description can be a positional arg or piped via stdin.",
		Run:   runAdd,
	}

	cmd.Flags().StringP("client", "c", "", "Client name (default: Unknown)")
	cmd.Flags().StringP("project", "p", "", "Project name")
	cmd.Flags().String("category", "", "Work category")
	cmd.Flags().IntP("minutes", "m", 0, "Minutes worked (required)")
	cmd.Flags().String("date", "", "Day, YYYY-MM-DD (default: today)")
	cmd.Flags().String("rate", "", "Hourly rate (default: settings)")
	cmd.Flags().String("adjustment", "", "Amount adjustment, may be negative")
	cmd.Flags().Bool("retainer", false, "Covered by a retainer")

	cmd.MarkFlagRequired("minutes")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	client, _ := cmd.Flags().GetString("client")
	project, _ := cmd.Flags().GetString("project")
	cat, _ := cmd.Flags().GetString("category")
	minutes, _ := cmd.Flags().GetInt("minutes")
	date, _ := cmd.Flags().GetString("date")
	rateStr, _ := cmd.Flags().GetString("rate")
	adjStr, _ := cmd.Flags().GetString("adjustment")
	retainer, _ := cmd.Flags().GetBool("retainer")

	description := readText(args)
	if strings.TrimSpace(description) == "" {
		exitErr("add", fmt.Errorf("description is required (positional arg or stdin)"))
	}
	if minutes <= 0 {
		exitErr("add", fmt.Errorf("--minutes must be positive"))
	}

	cfg := resolveConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	billing := settings.Resolve(cmd.Context(), settingsSource(cfg, s))
	rate := billing.DefaultRate
	if rateStr != "" {
		if rate, err = decimal.NewFromString(rateStr); err != nil {
			exitErr("parse --rate", err)
		}
	}
	adjustment := decimal.Zero
	if adjStr != "" {
		if adjustment, err = decimal.NewFromString(adjStr); err != nil {
			exitErr("parse --adjustment", err)
		}
	}

	r, err := s.Put(cmd.Context(), model.Record{
		ClientName:    strings.TrimSpace(client),
		ProjectName:   strings.TrimSpace(project),
		Description:   textutil.Normalize(description),
		Category:      cat,
		TimeInMinutes: minutes,
		HourlyRate:    rate,
		Partner:       billing.Partner,
		Date:          date,
		Retainer:      retainer,
		Adjustment:    adjustment,
	})
	if err != nil {
		exitErr("add", err)
	}
	printJSON(r)
}
