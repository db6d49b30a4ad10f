package commands

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/dualledger-harness/config"
)

func TestCommands(t *testing.T) {
	root := &cobra.Command{Use: "dualledger-harness", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String("config", "", "")
	root.AddCommand(InitCmd, AddressCmd, ListCmd)

	exec := func(args ...string) error {
		root.SetArgs(args)
		return root.Execute()
	}

	path := filepath.Join(t.TempDir(), "harness", "config.toml")
	require.NoError(t, exec("init", "--config", path, "--sub.url", "ws://10.0.0.1:9944", "--balance.max-fee", "5000"))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.1:9944", cfg.Endpoints.LocalWS)
	assert.Equal(t, "5000", cfg.Balance.MaxFee)
	assert.DirExists(t, cfg.JournalPath(filepath.Dir(path)))

	assert.ErrorContains(t, exec("init", "--config", path), "already exists")
	require.NoError(t, exec("init", "--config", path, "--force", "--waiter.terminal", "in_block"))
	cfg, err = config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "in_block", cfg.Waiter.Terminal)

	assert.ErrorContains(t, exec("init", "--config", path, "--force", "--waiter.terminal", "soon"), "invalid configuration")

	require.NoError(t, exec("address", "0x709099751C9D8c88b0E07c05A2e1B4e4fC5c8a4D"))
	require.NoError(t, exec("address", "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"))
	assert.ErrorContains(t, exec("address", "nonsense"), "neither an EVM nor an SS58 address")

	require.NoError(t, exec("list"))
}
