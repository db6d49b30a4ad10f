package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/airchains-network/dualledger-harness/config"
)

// InitCmd represents the init command
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the harness configuration",
	Long: `Initialize the harness with the required configuration.
This command creates the harness directory, the journal directory and config.toml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(cmd)
	},
}

func init() {
	defaults := config.DefaultConfig()

	InitCmd.Flags().String("network", defaults.General.Network, "Target network (local/test/dev/main)")
	InitCmd.Flags().String("sub.url", "", "Native ledger websocket URL for the selected network")
	InitCmd.Flags().String("eth.rpc-url", defaults.Endpoints.EthRPCURL, "EVM JSON-RPC URL")
	InitCmd.Flags().String("admin.uri", defaults.Admin.SecretURI, "Secret URI of the administrative signer")
	InitCmd.Flags().Int64("waiter.timeout-ms", defaults.Waiter.TimeoutMs, "Completion wait timeout in milliseconds")
	InitCmd.Flags().String("waiter.terminal", defaults.Waiter.Terminal, "Status that completes a native submission (finalized/in_block)")
	InitCmd.Flags().String("balance.max-fee", defaults.Balance.MaxFee, "Fee tolerance in rao")
	InitCmd.Flags().String("report.listen", defaults.Report.ListenAddr, "Report server listen address")
	InitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

func initCommand(cmd *cobra.Command) error {
	network, _ := cmd.Flags().GetString("network")
	subURL, _ := cmd.Flags().GetString("sub.url")
	ethURL, _ := cmd.Flags().GetString("eth.rpc-url")
	adminURI, _ := cmd.Flags().GetString("admin.uri")
	timeoutMs, _ := cmd.Flags().GetInt64("waiter.timeout-ms")
	terminal, _ := cmd.Flags().GetString("waiter.terminal")
	maxFee, _ := cmd.Flags().GetString("balance.max-fee")
	listen, _ := cmd.Flags().GetString("report.listen")
	force, _ := cmd.Flags().GetBool("force")

	log := newLogger(logrus.InfoLevel)

	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s, use --force to overwrite", path)
	}

	cfg := config.DefaultConfig()
	cfg.General.Network = network
	cfg.Endpoints.EthRPCURL = ethURL
	cfg.Admin.SecretURI = adminURI
	cfg.Waiter.TimeoutMs = timeoutMs
	cfg.Waiter.Terminal = terminal
	cfg.Balance.MaxFee = maxFee
	cfg.Report.ListenAddr = listen
	if subURL != "" {
		switch network {
		case "local":
			cfg.Endpoints.LocalWS = subURL
		case "test":
			cfg.Endpoints.TestWS = subURL
		case "dev":
			cfg.Endpoints.DevWS = subURL
		case "main":
			cfg.Endpoints.MainWS = subURL
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	dir := filepath.Dir(path)
	journalDir := cfg.JournalPath(dir)
	if err := os.MkdirAll(journalDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %v", journalDir, err)
	}

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to create config file: %v", err)
	}
	log.Infof("Created config file at: %s", path)

	substrateURL, _ := cfg.SubstrateURL()
	fmt.Println("\n=== Configuration Summary ===")
	fmt.Printf("Network: %s\n", cfg.General.Network)
	fmt.Printf("Native ledger: %s\n", substrateURL)
	fmt.Printf("EVM RPC URL: %s\n", cfg.Endpoints.EthRPCURL)
	fmt.Printf("Waiter: %dms, terminal %s\n", cfg.Waiter.TimeoutMs, cfg.Waiter.Terminal)
	fmt.Printf("Max fee: %s rao\n", cfg.Balance.MaxFee)
	fmt.Printf("Journal: %s\n", journalDir)
	fmt.Printf("Config File: %s\n", path)

	log.Info("Initialization completed successfully!")
	log.Info("List the scenarios with: dualledger-harness list")
	return nil
}
