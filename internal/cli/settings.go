package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/wip-ledger/internal/settings"
)

func init() {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change billing settings",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show the effective default rate and partner",
		Run:   runSettingsGet,
	}
	set := &cobra.Command{
		Use:   "set <default_rate|partner> <value>",
		Short: "Store a billing setting",
		Args:  cobra.ExactArgs(2),
		Run:   runSettingsSet,
	}

	cmd.AddCommand(get, set)
	RootCmd.AddCommand(cmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) {
	cfg := resolveConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	printJSON(settings.Resolve(cmd.Context(), settingsSource(cfg, s)))
}

func runSettingsSet(cmd *cobra.Command, args []string) {
	s, err := openStore(resolveConfig())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.SetSetting(cmd.Context(), args[0], args[1]); err != nil {
		exitErr("settings set", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"key":%q}`+"\n", args[0])
}
