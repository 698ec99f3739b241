package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/wip-ledger/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "track [description]",
		Short: "Record one activity observation",
		Long:  "Record one observation and fold it into today's ledger. The description can be a positional arg or piped via stdin.",
		Run:   runTrack,
	}

	cmd.Flags().StringP("client", "c", "", "Client name (default: Unknown)")
	cmd.Flags().String("client-id", "", "Client identifier")
	cmd.Flags().StringP("project", "p", "", "Project name")
	cmd.Flags().String("category", "", "Work category (default: classified)")
	cmd.Flags().StringSlice("entity", nil, "Entities mentioned (repeatable)")
	cmd.Flags().IntP("minutes", "m", 1, "Minutes observed")
	cmd.Flags().String("at", "", "Observation time, RFC3339 (default: now)")

	RootCmd.AddCommand(cmd)
}

func runTrack(cmd *cobra.Command, args []string) {
	client, _ := cmd.Flags().GetString("client")
	clientID, _ := cmd.Flags().GetString("client-id")
	project, _ := cmd.Flags().GetString("project")
	cat, _ := cmd.Flags().GetString("category")
	entities, _ := cmd.Flags().GetStringSlice("entity")
	minutes, _ := cmd.Flags().GetInt("minutes")
	atStr, _ := cmd.Flags().GetString("at")

	description := readText(args)
	if strings.TrimSpace(description) == "" {
		exitErr("track", fmt.Errorf("description is required (positional arg or stdin)"))
	}

	var at time.Time
	if atStr != "" {
		t, err := time.Parse(time.RFC3339, atStr)
		if err != nil {
			exitErr("parse --at", err)
		}
		at = t
	}

	cfg := resolveConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	inc, err := newTracker(cfg, s).Track(cmd.Context(), model.Observation{
		ClientName:  client,
		ClientID:    clientID,
		ProjectName: project,
		Description: description,
		Category:    cat,
		Entities:    entities,
		Minutes:     minutes,
		ObservedAt:  at,
	})
	if err != nil {
		exitErr("track", err)
	}
	printJSON(inc)
}

// readText returns args joined, or stdin when it is piped.
func readText(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return string(b)
	}
	return ""
}
