package subtensor

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/dualledger-harness/address"
	"github.com/airchains-network/dualledger-harness/balance"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/waiter"
)

func TestSetTempoIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.admin.SetTempo(ctx, 1, 100))
	assert.Equal(t, 1, fx.ledger.submissions())

	require.NoError(t, fx.admin.SetTempo(ctx, 1, 100))
	assert.Equal(t, 1, fx.ledger.submissions(), "second call must not submit")

	tempo, err := Tempo(ctx, fx.ledger, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), tempo)
}

func TestInvalidSignerLeavesValueUnchanged(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.admin.SetWeightsSetRateLimit(ctx, 2, 0))

	intruder, err := keys.NewRandom()
	require.NoError(t, err)

	err = fx.admin.As(intruder).SetWeightsSetRateLimit(ctx, 2, 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValueMismatch))
	var mismatch *ValueMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, uint64(50), mismatch.Want)
	assert.Equal(t, uint64(0), mismatch.Got)

	limit, err := WeightsSetRateLimit(ctx, fx.ledger, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), limit)
}

func TestSubmissionFailureIsTolerated(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.ledger.failNext = waiter.Invalid
	require.NoError(t, fx.admin.SetCommitRevealWeightsEnabled(ctx, 3, true))

	enabled, err := CommitRevealWeightsEnabled(ctx, fx.ledger, 3)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestRejectedSubmissionSurfacesAsMismatch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.ledger.rejectOn["sudo(AdminUtils.sudo_set_evm_chain_id)"] = true
	err := fx.admin.ForceSetChainID(ctx, 42)
	assert.ErrorIs(t, err, ErrValueMismatch)
	assert.Equal(t, 1, fx.ledger.submissions())
}

func TestOtherParameters(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.admin.ForceSetChainID(ctx, 945))
	require.NoError(t, fx.admin.DisableWhitelistCheck(ctx, true))
	require.NoError(t, fx.admin.SetCommitRevealWeightsInterval(ctx, 1, 2))

	id, err := ChainID(ctx, fx.ledger)
	require.NoError(t, err)
	assert.Equal(t, uint64(945), id)

	disabled, err := WhitelistCheckDisabled(ctx, fx.ledger)
	require.NoError(t, err)
	assert.True(t, disabled)

	interval, err := RevealPeriodEpochs(ctx, fx.ledger, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), interval)
}

func TestForceSetBalanceToEthAddress(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	wallet, err := keys.NewRandomWallet()
	require.NoError(t, err)
	require.NoError(t, fx.admin.ForceSetBalanceToEthAddress(ctx, wallet.Address, balance.MustTao(123)))

	free, err := Free(ctx, fx.ledger, wallet.Mirror().AccountID())
	require.NoError(t, err)
	assert.Equal(t, balance.MustTao(123), free)
}

func TestForceSetBalanceOnAdminAllowsFee(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.ledger.fee = big.NewInt(125_000)

	require.NoError(t, fx.admin.ForceSetBalance(ctx, fx.alice.AccountID(), balance.MustTao(1000)))

	free, err := Free(ctx, fx.ledger, fx.alice.AccountID())
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Sub(balance.MustTao(1000), big.NewInt(125_000)), free)

	strict := NewAdmin(fx.ledger, fx.alice, fx.admin.waiter, big.NewInt(10), fx.admin.log)
	err = strict.ForceSetBalance(ctx, fx.alice.AccountID(), balance.MustTao(2000))
	var exceeded *balance.ToleranceExceeded
	assert.ErrorAs(t, err, &exceeded)
}

func TestForceSetBalanceOnAdminUsesEstimatedFee(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.ledger.fee = big.NewInt(125_000)

	// A charge above the estimate fails even though it is far below the max fee.
	fx.ledger.estimate = func() (*big.Int, error) { return big.NewInt(100), nil }
	err := fx.admin.ForceSetBalance(ctx, fx.alice.AccountID(), balance.MustTao(1000))
	var exceeded *balance.ToleranceExceeded
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, big.NewInt(101), exceeded.MaxFee)

	// Without an estimate the max fee applies.
	fx.ledger.estimate = func() (*big.Int, error) { return nil, errors.New("payment_queryInfo unavailable") }
	require.NoError(t, fx.admin.ForceSetBalance(ctx, fx.alice.AccountID(), balance.MustTao(3000)))

	fx.ledger.estimate = nil
	require.NoError(t, fx.admin.ForceSetBalance(ctx, fx.alice.AccountID(), balance.MustTao(4000)))
	free, err := Free(ctx, fx.ledger, fx.alice.AccountID())
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Sub(balance.MustTao(4000), big.NewInt(125_000)), free)
}

func TestSetWhitelist(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, err := keys.NewRandomWallet()
	require.NoError(t, err)
	second, err := keys.NewRandomWallet()
	require.NoError(t, err)
	members := []address.EvmAddress{first.Address, second.Address}

	require.NoError(t, fx.admin.SetWhitelist(ctx, members))
	assert.Equal(t, 1, fx.ledger.submissions())
	require.NoError(t, fx.admin.SetWhitelist(ctx, members))
	assert.Equal(t, 1, fx.ledger.submissions(), "unchanged whitelist must not submit")

	got, err := WhitelistedCreators(ctx, fx.ledger)
	require.NoError(t, err)
	assert.Equal(t, members, got)

	outsider, err := keys.NewRandom()
	require.NoError(t, err)
	err = fx.admin.As(outsider).SetWhitelist(ctx, members[:1])
	assert.ErrorIs(t, err, ErrValueMismatch)
}

func TestSubnetParameterReaders(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.ledger.set(netQuery("MaxWeightsLimit", 4), types.NewU16(106))
	fx.ledger.set(netQuery("MaxDifficulty", 4), types.NewU64(102))
	fx.ledger.set(netQuery("LiquidAlphaOn", 4), types.NewBool(true))
	fx.ledger.set(netQuery("PendingEmission", 4), types.NewU64(9))
	fx.ledger.set(netQuery("AlphaValues", 4), struct{ Low, High types.U16 }{118, 52429})

	u16, err := SubnetU16(ctx, fx.ledger, "MaxWeightsLimit", 4)
	require.NoError(t, err)
	assert.Equal(t, uint16(106), u16)
	u64, err := SubnetU64(ctx, fx.ledger, "MaxDifficulty", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(102), u64)
	on, err := SubnetBool(ctx, fx.ledger, "LiquidAlphaOn", 4)
	require.NoError(t, err)
	assert.True(t, on)
	emission, err := PendingEmission(ctx, fx.ledger, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), emission)
	low, high, err := AlphaValues(ctx, fx.ledger, 4)
	require.NoError(t, err)
	assert.Equal(t, uint16(118), low)
	assert.Equal(t, uint16(52429), high)

	unset, err := SubnetU64(ctx, fx.ledger, "MaxDifficulty", 5)
	require.NoError(t, err)
	assert.Zero(t, unset)
}

func TestAddNewSubnetworkAndBurnedRegister(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.ledger.set(networkRateLimitQuery, uint64(7200))

	coldkey, err := keys.NewRandom()
	require.NoError(t, err)
	hotkey, err := keys.NewRandom()
	require.NoError(t, err)

	netuid, err := fx.admin.AddNewSubnetwork(ctx, hotkey.AccountID(), coldkey)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), netuid)

	limit, err := NetworkRateLimit(ctx, fx.ledger)
	require.NoError(t, err)
	assert.Zero(t, limit)

	second, err := fx.admin.AddNewSubnetwork(ctx, hotkey.AccountID(), coldkey)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), second)

	neuron, err := keys.NewRandom()
	require.NoError(t, err)
	uid, err := fx.admin.BurnedRegister(ctx, netuid, neuron.AccountID(), coldkey)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), uid)

	registered, ok, err := Hotkey(ctx, fx.ledger, netuid, uid)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, neuron.AccountID(), registered)
}

func TestTransferKeepAlive(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	sender, err := keys.NewRandom()
	require.NoError(t, err)
	require.NoError(t, fx.admin.ForceSetBalance(ctx, sender.AccountID(), balance.MustTao(10)))

	var receiver address.AccountID
	receiver[0] = 0x42
	require.NoError(t, fx.admin.TransferKeepAlive(ctx, sender, receiver, balance.MustTao(3)))

	got, err := Free(ctx, fx.ledger, receiver)
	require.NoError(t, err)
	assert.Equal(t, balance.MustTao(3), got)
}
