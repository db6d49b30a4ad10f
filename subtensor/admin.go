package subtensor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/dualledger-harness/address"
	"github.com/airchains-network/dualledger-harness/balance"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/substrate"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// Ledger is the native ledger surface the helpers need. *substrate.Client implements it.
type Ledger interface {
	GetValue(ctx context.Context, q substrate.Query, target interface{}) (bool, error)
	Account(ctx context.Context, id address.AccountID) (types.AccountInfo, error)
	Operation(call substrate.Call, signer *keys.Keypair) waiter.Operation
	NonceSource(id address.AccountID) waiter.NonceSource
	PaymentInfo(ctx context.Context, call substrate.Call, signer *keys.Keypair) (*big.Int, error)
}

// ErrValueMismatch is matched by every *ValueMismatch.
var ErrValueMismatch = errors.New("value mismatch after update")

// ValueMismatch reports a post-condition failure: the value read back after submission differs
// from the requested one.
type ValueMismatch struct {
	Item string
	Want interface{}
	Got  interface{}
}

func (e *ValueMismatch) Error() string {
	return fmt.Sprintf("%s: want %v, got %v", e.Item, e.Want, e.Got)
}

func (e *ValueMismatch) Is(target error) bool { return target == ErrValueMismatch }

// Admin runs privileged updates with one administrative signer. Updates are serialized.
type Admin struct {
	mu     *sync.Mutex
	ledger Ledger
	signer *keys.Keypair
	waiter *waiter.Waiter
	log    *logrus.Logger
	maxFee *big.Int
}

// NewAdmin creates the helper set. maxFee bounds the fee accepted when the admin funds itself.
func NewAdmin(ledger Ledger, signer *keys.Keypair, w *waiter.Waiter, maxFee *big.Int, log *logrus.Logger) *Admin {
	return &Admin{
		mu:     &sync.Mutex{},
		ledger: ledger,
		signer: signer,
		waiter: w,
		log:    log,
		maxFee: maxFee,
	}
}

// As returns helpers that submit with signer instead of the administrative key. The returned
// Admin shares the serialization lock with a.
func (a *Admin) As(signer *keys.Keypair) *Admin {
	clone := *a
	clone.signer = signer
	return &clone
}

func (a *Admin) Signer() *keys.Keypair { return a.signer }

func (a *Admin) Ledger() Ledger { return a.ledger }

// submit sends call signed by signer and waits for it. A failed submission is logged and
// tolerated; callers verify the outcome by reading state.
func (a *Admin) submit(ctx context.Context, call substrate.Call, signer *keys.Keypair) *waiter.PendingOperation {
	op := a.ledger.Operation(call, signer)
	pending, err := a.waiter.Wait(ctx, op, a.ledger.NonceSource(signer.AccountID()))
	if err != nil {
		a.log.Warnf("%s submitted by %s did not complete: %v", call, signer.Address(), err)
	}
	return pending
}

// ensure reads the current value, short-circuits when it already equals want, submits call and
// verifies the value read back.
func ensure[T any](ctx context.Context, a *Admin, item string, want T, equal func(a, b T) bool, read func(context.Context) (T, error), call substrate.Call) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	log := a.log.WithField("item", item)
	current, err := read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", item, err)
	}
	if equal(current, want) {
		log.Debugf("Already %v, skipping", want)
		return nil
	}

	a.submit(ctx, call, a.signer)

	got, err := read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read back %s: %w", item, err)
	}
	if !equal(got, want) {
		return &ValueMismatch{Item: item, Want: want, Got: got}
	}
	log.Infof("Set to %v", want)
	return nil
}

func eq[T comparable](a, b T) bool { return a == b }

func bigEq(a, b *big.Int) bool { return a.Cmp(b) == 0 }

// feeTolerance returns the estimated fee of call plus one unit, capped at maxFee. Without an
// estimate the tolerance is maxFee.
func (a *Admin) feeTolerance(ctx context.Context, call substrate.Call) *big.Int {
	fee, err := a.ledger.PaymentInfo(ctx, call, a.signer)
	if err != nil {
		a.log.Warnf("Failed to estimate fee of %s, using max fee %s: %v", call, a.maxFee, err)
		return a.maxFee
	}
	tolerance := new(big.Int).Add(fee, big.NewInt(1))
	if tolerance.Cmp(a.maxFee) > 0 {
		return a.maxFee
	}
	return tolerance
}

// ForceSetBalance sets the free balance of id to amount native units. When id is the signer
// itself the transaction fee is charged from the new balance, so the read back only has to be
// within the estimated fee, bounded by the configured max fee.
func (a *Admin) ForceSetBalance(ctx context.Context, id address.AccountID, amount *big.Int) error {
	dest, err := types.NewMultiAddressFromAccountID(id[:])
	if err != nil {
		return fmt.Errorf("failed to encode destination: %w", err)
	}
	call := substrate.Sudo(substrate.NewCall("Balances.force_set_balance", dest, types.NewUCompact(amount)))
	item := fmt.Sprintf("System.Account(%s).free", address.MustTextAddress(id))
	read := func(ctx context.Context) (*big.Int, error) { return Free(ctx, a.ledger, id) }

	if id != a.signer.AccountID() {
		return ensure(ctx, a, item, amount, bigEq, read, call)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	current, err := read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", item, err)
	}
	if current.Cmp(amount) == 0 {
		return nil
	}
	tolerance := a.feeTolerance(ctx, call)
	a.submit(ctx, call, a.signer)
	got, err := read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read back %s: %w", item, err)
	}
	return balance.AssertWithinFeeTolerance(got, amount, tolerance)
}

// ForceSetBalanceToEthAddress funds the mirrored account of an EVM address.
func (a *Admin) ForceSetBalanceToEthAddress(ctx context.Context, evm address.EvmAddress, amount *big.Int) error {
	return a.ForceSetBalance(ctx, address.EvmToMirroredAccountID(evm).AccountID(), amount)
}

func (a *Admin) SetCommitRevealWeightsEnabled(ctx context.Context, netuid uint16, enabled bool) error {
	call := substrate.Sudo(substrate.NewCall("AdminUtils.sudo_set_commit_reveal_weights_enabled", types.NewU16(netuid), types.NewBool(enabled)))
	return ensure(ctx, a, fmt.Sprintf("CommitRevealWeightsEnabled(%d)", netuid), enabled, eq[bool],
		func(ctx context.Context) (bool, error) { return CommitRevealWeightsEnabled(ctx, a.ledger, netuid) }, call)
}

func (a *Admin) SetWeightsSetRateLimit(ctx context.Context, netuid uint16, limit uint64) error {
	call := substrate.Sudo(substrate.NewCall("AdminUtils.sudo_set_weights_set_rate_limit", types.NewU16(netuid), types.NewU64(limit)))
	return ensure(ctx, a, fmt.Sprintf("WeightsSetRateLimit(%d)", netuid), limit, eq[uint64],
		func(ctx context.Context) (uint64, error) { return WeightsSetRateLimit(ctx, a.ledger, netuid) }, call)
}

func (a *Admin) SetTempo(ctx context.Context, netuid uint16, tempo uint16) error {
	call := substrate.Sudo(substrate.NewCall("AdminUtils.sudo_set_tempo", types.NewU16(netuid), types.NewU16(tempo)))
	return ensure(ctx, a, fmt.Sprintf("Tempo(%d)", netuid), tempo, eq[uint16],
		func(ctx context.Context) (uint16, error) { return Tempo(ctx, a.ledger, netuid) }, call)
}

func (a *Admin) SetCommitRevealWeightsInterval(ctx context.Context, netuid uint16, interval uint64) error {
	call := substrate.Sudo(substrate.NewCall("AdminUtils.sudo_set_commit_reveal_weights_interval", types.NewU16(netuid), types.NewU64(interval)))
	return ensure(ctx, a, fmt.Sprintf("RevealPeriodEpochs(%d)", netuid), interval, eq[uint64],
		func(ctx context.Context) (uint64, error) { return RevealPeriodEpochs(ctx, a.ledger, netuid) }, call)
}

// ForceSetChainID sets the chain id reported by the EVM sidechain.
func (a *Admin) ForceSetChainID(ctx context.Context, chainID uint64) error {
	call := substrate.Sudo(substrate.NewCall("AdminUtils.sudo_set_evm_chain_id", types.NewU64(chainID)))
	return ensure(ctx, a, "EVMChainId.ChainId", chainID, eq[uint64],
		func(ctx context.Context) (uint64, error) { return ChainID(ctx, a.ledger) }, call)
}

// DisableWhitelistCheck lets any account deploy contracts.
func (a *Admin) DisableWhitelistCheck(ctx context.Context, disabled bool) error {
	call := substrate.Sudo(substrate.NewCall("EVM.disable_whitelist", types.NewBool(disabled)))
	return ensure(ctx, a, "EVM.DisableWhitelistCheck", disabled, eq[bool],
		func(ctx context.Context) (bool, error) { return WhitelistCheckDisabled(ctx, a.ledger) }, call)
}

// SetWhitelist replaces the set of EVM addresses allowed to deploy contracts while the whitelist
// check is enabled.
func (a *Admin) SetWhitelist(ctx context.Context, members []address.EvmAddress) error {
	arg := make([]types.H160, len(members))
	for i, m := range members {
		arg[i] = types.H160(m)
	}
	call := substrate.Sudo(substrate.NewCall("EVM.set_whitelist", arg))
	return ensure(ctx, a, "EVM.WhitelistedCreators", members, evmAddressesEq,
		func(ctx context.Context) ([]address.EvmAddress, error) { return WhitelistedCreators(ctx, a.ledger) }, call)
}

func evmAddressesEq(a, b []address.EvmAddress) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (a *Admin) SetNetworkRateLimit(ctx context.Context, limit uint64) error {
	call := substrate.Sudo(substrate.NewCall("AdminUtils.sudo_set_network_rate_limit", types.NewU64(limit)))
	return ensure(ctx, a, "NetworkRateLimit", limit, eq[uint64],
		func(ctx context.Context) (uint64, error) { return NetworkRateLimit(ctx, a.ledger) }, call)
}
