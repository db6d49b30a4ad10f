package eth

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/dualledger-harness/contracts"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/waiter"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

type simEnv struct {
	sim    *simulated.Backend
	client *Client
	funded *keys.Wallet
}

func newSimEnv(t *testing.T) *simEnv {
	t.Helper()
	funded, err := keys.NewRandomWallet()
	require.NoError(t, err)

	sim := simulated.NewBackend(types.GenesisAlloc{
		funded.Address.Common(): {Balance: ether(100)},
	})
	t.Cleanup(func() { _ = sim.Close() })

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	c := NewClientFromBackend(sim.Client(), log)
	c.SetPolling(10*time.Millisecond, 0)
	return &simEnv{sim: sim, client: c, funded: funded}
}

// autoCommit seals a block every 20ms until the returned func is called.
func (e *simEnv) autoCommit() func() { return e.autoCommitEvery(20 * time.Millisecond) }

func (e *simEnv) autoCommitEvery(interval time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.sim.Commit()
			}
		}
	}()
	return func() { close(done) }
}

func TestSendValueAccounting(t *testing.T) {
	env := newSimEnv(t)
	ctx := context.Background()

	to, err := keys.NewRandomWallet()
	require.NoError(t, err)

	before, err := env.client.BalanceAt(ctx, env.funded.Address.Common())
	require.NoError(t, err)

	estimate, err := env.client.EstimateTransferFee(ctx, env.funded.Address.Common(), to.Address.Common(), ether(1))
	require.NoError(t, err)
	assert.Positive(t, estimate.Sign())

	tx, err := env.client.SendValue(ctx, env.funded, to.Address.Common(), ether(1))
	require.NoError(t, err)
	env.sim.Commit()

	receipt, err := env.client.WaitMined(ctx, tx)
	require.NoError(t, err)

	received, err := env.client.BalanceAt(ctx, to.Address.Common())
	require.NoError(t, err)
	assert.Equal(t, ether(1), received)

	after, err := env.client.BalanceAt(ctx, env.funded.Address.Common())
	require.NoError(t, err)
	spent := new(big.Int).Sub(before, after)
	assert.Equal(t, new(big.Int).Add(ether(1), ReceiptFee(receipt)), spent)

	nonce, err := env.client.NonceAt(ctx, env.funded.Address.Common())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestIncrementalContract(t *testing.T) {
	env := newSimEnv(t)
	ctx := context.Background()
	incremental := contracts.MustParse(contracts.IncrementalABI)

	addr, tx, err := env.client.Deploy(ctx, env.funded, incremental, common.FromHex(contracts.IncrementalBytecode))
	require.NoError(t, err)
	env.sim.Commit()
	_, err = env.client.WaitMined(ctx, tx)
	require.NoError(t, err)

	code, err := env.client.Rpc.GetCode(ctx, addr)
	require.NoError(t, err)
	assert.Len(t, code, 50)

	out, err := env.client.Call(ctx, addr, incremental, "retrieve")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(0), out[0].(*big.Int).Int64())

	tx, err = env.client.Transact(ctx, env.funded, addr, incremental, nil, "store", big.NewInt(1234))
	require.NoError(t, err)
	env.sim.Commit()
	_, err = env.client.WaitMined(ctx, tx)
	require.NoError(t, err)

	out, err = env.client.Call(ctx, addr, incremental, "retrieve")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), out[0].(*big.Int).Int64())

	slot, err := env.client.Rpc.GetStorageAt(ctx, addr, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), slot.Big().Int64())
}

func TestWaiterWithTxOperation(t *testing.T) {
	env := newSimEnv(t)
	ctx := context.Background()
	stop := env.autoCommit()
	defer stop()

	to, err := keys.NewRandomWallet()
	require.NoError(t, err)

	w := waiter.New(logrus.New(), waiter.WithTimeout(5*time.Second))
	op := env.client.Operation("transfer", func(ctx context.Context) (*types.Transaction, error) {
		return env.client.SendValue(ctx, env.funded, to.Address.Common(), ether(2))
	})
	pending, err := w.Wait(ctx, op, env.client.NonceSource(env.funded.Address))
	require.NoError(t, err)
	assert.Contains(t, []waiter.State{waiter.StateFinalized, waiter.StateSideEffectObserved}, pending.State)
	assert.Equal(t, op.Tx.Hash().Hex(), pending.Ref)
	assert.Equal(t, waiter.EVM, pending.Ledger)

	require.Eventually(t, func() bool {
		b, err := env.client.BalanceAt(ctx, to.Address.Common())
		return err == nil && b.Cmp(ether(2)) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

// indexingBackend fails the first reads of receipts and the block number the way a node does
// while its transaction index is being built.
type indexingBackend struct {
	Backend
	receiptFailures atomic.Int32
	headFailures    atomic.Int32
}

var errIndexing = errors.New("transaction indexing is in progress")

func (b *indexingBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if b.receiptFailures.Add(-1) >= 0 {
		return nil, errIndexing
	}
	return b.Backend.TransactionReceipt(ctx, hash)
}

func (b *indexingBackend) BlockNumber(ctx context.Context) (uint64, error) {
	if b.headFailures.Add(-1) >= 0 {
		return 0, errIndexing
	}
	return b.Backend.BlockNumber(ctx)
}

func TestTxOperationRetriesTransientReadErrors(t *testing.T) {
	env := newSimEnv(t)
	ctx := context.Background()

	backend := &indexingBackend{Backend: env.sim.Client()}
	backend.receiptFailures.Store(5)
	backend.headFailures.Store(3)
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	c := NewClientFromBackend(backend, log)
	c.SetPolling(10*time.Millisecond, 1)

	stop := env.autoCommitEvery(300 * time.Millisecond)
	defer stop()

	to, err := keys.NewRandomWallet()
	require.NoError(t, err)
	op := c.Operation("slow transfer", func(ctx context.Context) (*types.Transaction, error) {
		return c.SendValue(ctx, env.funded, to.Address.Common(), ether(3))
	})
	w := waiter.New(logrus.New(), waiter.WithTimeout(10*time.Second))
	pending, err := w.Wait(ctx, op, nil)
	require.NoError(t, err)
	assert.Equal(t, waiter.StateFinalized, pending.State)
	assert.LessOrEqual(t, backend.receiptFailures.Load(), int32(0))
	assert.LessOrEqual(t, backend.headFailures.Load(), int32(0))

	receipt, err := c.WaitMined(ctx, op.Tx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	received, err := c.BalanceAt(ctx, to.Address.Common())
	require.NoError(t, err)
	assert.Equal(t, ether(3), received)
}

func TestWaiterReportsRevertAsInvalid(t *testing.T) {
	env := newSimEnv(t)
	ctx := context.Background()
	incremental := contracts.MustParse(contracts.IncrementalABI)

	addr, tx, err := env.client.Deploy(ctx, env.funded, incremental, common.FromHex(contracts.IncrementalBytecode))
	require.NoError(t, err)
	env.sim.Commit()
	_, err = env.client.WaitMined(ctx, tx)
	require.NoError(t, err)

	stop := env.autoCommit()
	defer stop()

	op := env.client.Operation("unknown selector", func(ctx context.Context) (*types.Transaction, error) {
		chainID, err := env.client.ChainID(ctx)
		if err != nil {
			return nil, err
		}
		nonce, err := env.client.Eth.PendingNonceAt(ctx, env.funded.Address.Common())
		if err != nil {
			return nil, err
		}
		head, err := env.client.Eth.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, err
		}
		raw := types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: big.NewInt(1),
			GasFeeCap: new(big.Int).Add(big.NewInt(1), new(big.Int).Mul(head.BaseFee, big.NewInt(2))),
			Gas:       100000,
			To:        &addr,
			Data:      []byte{0xde, 0xad, 0xbe, 0xef},
		})
		signed, err := types.SignTx(raw, types.LatestSignerForChainID(chainID), env.funded.Key)
		if err != nil {
			return nil, err
		}
		return signed, env.client.Eth.SendTransaction(ctx, signed)
	})

	w := waiter.New(logrus.New(), waiter.WithTimeout(5*time.Second))
	pending, err := w.Wait(ctx, op, nil)
	require.ErrorIs(t, err, waiter.ErrOperationFailed)
	assert.Equal(t, waiter.StateFailed, pending.State)
	require.NotEmpty(t, pending.Events)
	assert.Equal(t, waiter.Invalid, pending.Events[len(pending.Events)-1].Kind)
}

func TestWaitForBlocks(t *testing.T) {
	env := newSimEnv(t)
	stop := env.autoCommit()
	defer stop()

	w := waiter.New(logrus.New(), waiter.WithTimeout(5*time.Second))
	state, err := w.WaitForBlocks(context.Background(), env.client, 2)
	require.NoError(t, err)
	assert.Equal(t, waiter.StateFinalized, state)
}

func TestHexToBigInt(t *testing.T) {
	assert.Equal(t, int64(0), HexToBigInt("").Int64())
	assert.Equal(t, int64(21000), HexToBigInt("0x5208").Int64())
}
