package scenario

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/dualledger-harness/config"
	"github.com/airchains-network/dualledger-harness/eth"
	"github.com/airchains-network/dualledger-harness/journal"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/substrate"
)

// TestLive runs scenarios against a local node pair. HARNESS_SCENARIOS selects a comma separated
// subset, all scenarios run otherwise.
func TestLive(t *testing.T) {
	subURL, ethURL := os.Getenv("HARNESS_SUB_URL"), os.Getenv("HARNESS_ETH_URL")
	if subURL == "" || ethURL == "" {
		t.Skip("HARNESS_SUB_URL and HARNESS_ETH_URL not set")
	}
	log := logrus.New()

	cfg := config.DefaultConfig()
	cfg.Endpoints.LocalWS = subURL
	cfg.Endpoints.EthRPCURL = ethURL

	ledger, err := substrate.Dial(subURL, log)
	require.NoError(t, err)
	defer ledger.Close()
	ethClient, err := eth.NewClient(ethURL, log)
	require.NoError(t, err)
	defer ethClient.Close()
	ethClient.SetPolling(cfg.PollInterval(), cfg.Waiter.Confirmations)

	admin, err := keys.FromURI(cfg.Admin.SecretURI)
	require.NoError(t, err)
	j, err := journal.OpenMemory(log)
	require.NoError(t, err)
	defer j.Close()

	var names []string
	if s := os.Getenv("HARNESS_SCENARIOS"); s != "" {
		names = strings.Split(s, ",")
	}
	scenarios, err := Lookup(names...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	run, results, err := NewRunner(cfg, ethClient, ledger, admin, j, log).Run(ctx, scenarios)
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Passed, "%s: %s", r.Scenario, r.Error)
	}
	assert.Equal(t, journal.RunPassed, run.Status)
}
