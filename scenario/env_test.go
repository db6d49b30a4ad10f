package scenario

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/dualledger-harness/config"
	"github.com/airchains-network/dualledger-harness/contracts"
	"github.com/airchains-network/dualledger-harness/eth"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// newSlowEnv returns an Env on a simulated chain that seals a block every 300ms while the
// waiter gives up after 50ms, so every wait times out before its transaction is mined.
func newSlowEnv(t *testing.T) (*Env, *keys.Wallet) {
	t.Helper()
	funded, err := keys.NewRandomWallet()
	require.NoError(t, err)
	sim := simulated.NewBackend(types.GenesisAlloc{
		funded.Address.Common(): {Balance: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))},
	})
	t.Cleanup(func() { _ = sim.Close() })

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(300 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				sim.Commit()
			}
		}
	}()
	t.Cleanup(func() { close(done) })

	log := quietLogger()
	client := eth.NewClientFromBackend(sim.Client(), log)
	client.SetPolling(10*time.Millisecond, 0)
	return &Env{
		Config: config.DefaultConfig(),
		Log:    log,
		Eth:    client,
		Waiter: waiter.New(log, waiter.WithTimeout(50*time.Millisecond)),
	}, funded
}

func TestEnvSendValueWaitsForReceipt(t *testing.T) {
	e, funded := newSlowEnv(t)
	ctx := context.Background()

	before, err := e.Eth.BalanceAt(ctx, funded.Address.Common())
	require.NoError(t, err)
	to, err := keys.NewRandomWallet()
	require.NoError(t, err)
	amount := big.NewInt(1e18)

	receipt, err := e.SendValue(ctx, funded, to.Address.Common(), amount)
	require.NoError(t, err)
	require.NotNil(t, receipt)

	got, err := e.Eth.BalanceAt(ctx, to.Address.Common())
	require.NoError(t, err)
	assert.Equal(t, amount, got)

	left, err := e.Eth.BalanceAt(ctx, funded.Address.Common())
	require.NoError(t, err)
	want := new(big.Int).Sub(new(big.Int).Sub(before, amount), eth.ReceiptFee(receipt))
	assert.Equal(t, want, left)
}

func TestEnvTransactWaitsForReceipt(t *testing.T) {
	e, funded := newSlowEnv(t)
	ctx := context.Background()
	incABI := contracts.MustParse(contracts.IncrementalABI)
	bytecode, err := e.IncrementalBytecode()
	require.NoError(t, err)

	addr, err := e.Deploy(ctx, funded, incABI, bytecode)
	require.NoError(t, err)

	_, err = e.Transact(ctx, funded, addr, incABI, nil, "store", big.NewInt(77))
	require.NoError(t, err)
	out, err := e.Eth.Call(ctx, addr, incABI, "retrieve")
	require.NoError(t, err)
	stored, err := firstBig(out)
	require.NoError(t, err)
	assert.Equal(t, int64(77), stored.Int64())

	// The demo contract has no such method.
	_, err = e.Transact(ctx, funded, addr, contracts.MustParse(contracts.SubnetABI), nil, "getServingRateLimit", uint16(1))
	assert.Error(t, err)
}
