package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		Run: func(cmd *cobra.Command, args []string) {
			printJSON(resolveConfig())
		},
	}

	RootCmd.AddCommand(cmd)
}
