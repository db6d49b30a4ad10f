package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/airchains-network/dualledger-harness/cmd/harness/commands"
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "dualledger-harness",
		Short: "End-to-end checks for a substrate ledger with an EVM sidechain",
		Long: `End-to-end checks for a substrate ledger with an EVM sidechain.
Scenarios submit to both ledgers, wait for completion and verify state on either side.
Results are kept in a local journal and can be served over HTTP.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.dualledger-harness/config.toml)")

	// Add commands
	rootCmd.AddCommand(commands.InitCmd)
	rootCmd.AddCommand(commands.CreateAccountCmd)
	rootCmd.AddCommand(commands.AddressCmd)
	rootCmd.AddCommand(commands.ListCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ReportCmd)

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
