package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/airchains-network/dualledger-harness/scenario"
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available scenarios",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range scenario.All() {
			fmt.Printf("%-36s %s\n", s.Name, s.Description)
		}
	},
}
