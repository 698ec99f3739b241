package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/wip-ledger/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "List clients with record counts",
		Run:   runClients,
	}

	RootCmd.AddCommand(cmd)
}

func runClients(cmd *cobra.Command, args []string) {
	s, err := openStore(resolveConfig())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	clients, err := s.Clients(cmd.Context())
	if err != nil {
		exitErr("clients", err)
	}
	if clients == nil {
		clients = []store.ClientStats{}
	}
	printJSON(clients)
}
