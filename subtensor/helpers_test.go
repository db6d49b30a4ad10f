package subtensor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/dualledger-harness/address"
	"github.com/airchains-network/dualledger-harness/balance"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/substrate"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// fakeLedger applies calls to an in-memory state. Sudo calls only take effect when signed by
// the sudo key, mirroring BadOrigin on chain.
type fakeLedger struct {
	t   *testing.T
	mu  sync.Mutex
	sudo address.AccountID

	storage  map[string][]byte
	free     map[address.AccountID]*big.Int
	fee      *big.Int
	estimate func() (*big.Int, error)
	submits  []substrate.Call
	failNext waiter.StatusKind
	rejectOn map[string]bool
}

func newFakeLedger(t *testing.T, sudo address.AccountID) *fakeLedger {
	return &fakeLedger{
		t:        t,
		sudo:     sudo,
		storage:  map[string][]byte{},
		free:     map[address.AccountID]*big.Int{},
		fee:      big.NewInt(0),
		rejectOn: map[string]bool{},
	}
}

func storageKey(q substrate.Query) string {
	return fmt.Sprintf("%s%v", q, q.Args)
}

func (f *fakeLedger) set(q substrate.Query, v interface{}) {
	b, err := codec.Encode(v)
	require.NoError(f.t, err)
	f.storage[storageKey(q)] = b
}

func (f *fakeLedger) GetValue(_ context.Context, q substrate.Query, target interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.storage[storageKey(q)]
	if !ok {
		return false, nil
	}
	return true, codec.Decode(b, target)
}

func (f *fakeLedger) Account(_ context.Context, id address.AccountID) (types.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var info types.AccountInfo
	free := f.free[id]
	if free == nil {
		free = new(big.Int)
	}
	info.Data.Free = types.NewU128(*free)
	return info, nil
}

// PaymentInfo reports the charged fee unless estimate overrides it.
func (f *fakeLedger) PaymentInfo(context.Context, substrate.Call, *keys.Keypair) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.estimate != nil {
		return f.estimate()
	}
	return new(big.Int).Set(f.fee), nil
}

func (f *fakeLedger) NonceSource(address.AccountID) waiter.NonceSource { return nil }

func (f *fakeLedger) Operation(call substrate.Call, signer *keys.Keypair) waiter.Operation {
	return &fakeOp{f: f, call: call, signer: signer.AccountID()}
}

func (f *fakeLedger) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

func (f *fakeLedger) apply(call substrate.Call, signer address.AccountID) {
	if inner, ok := call.Inner(); ok {
		if signer != f.sudo {
			return
		}
		call = inner
	}
	args := call.Args
	switch call.Name {
	case "Balances.force_set_balance":
		f.free[multiAddressID(f.t, args[0])] = (*big.Int)(ptr(args[1].(types.UCompact)))
	case "Balances.transfer_keep_alive":
		to := multiAddressID(f.t, args[0])
		amount := (*big.Int)(ptr(args[1].(types.UCompact)))
		f.addFree(to, amount)
		f.addFree(signer, new(big.Int).Neg(amount))
	case "AdminUtils.sudo_set_tempo":
		f.set(netQuery("Tempo", uint16(args[0].(types.U16))), args[1])
	case "AdminUtils.sudo_set_weights_set_rate_limit":
		f.set(netQuery("WeightsSetRateLimit", uint16(args[0].(types.U16))), args[1])
	case "AdminUtils.sudo_set_commit_reveal_weights_enabled":
		f.set(netQuery("CommitRevealWeightsEnabled", uint16(args[0].(types.U16))), args[1])
	case "AdminUtils.sudo_set_commit_reveal_weights_interval":
		f.set(netQuery("RevealPeriodEpochs", uint16(args[0].(types.U16))), args[1])
	case "AdminUtils.sudo_set_network_rate_limit":
		f.set(networkRateLimitQuery, args[0])
	case "AdminUtils.sudo_set_evm_chain_id":
		f.set(chainIDQuery, args[0])
	case "EVM.disable_whitelist":
		f.set(whitelistQuery, args[0])
	case "EVM.set_whitelist":
		f.set(whitelistedQuery, args[0])
	case "SubtensorModule.register_network":
		var total types.U16
		if b, ok := f.storage[storageKey(totalNetworksQuery)]; ok {
			require.NoError(f.t, codec.Decode(b, &total))
		}
		f.set(totalNetworksQuery, total+1)
	case "SubtensorModule.burned_register":
		netuid := uint16(args[0].(types.U16))
		var n types.U16
		if b, ok := f.storage[storageKey(netQuery("SubnetworkN", netuid))]; ok {
			require.NoError(f.t, codec.Decode(b, &n))
		}
		f.set(substrate.Query{Pallet: pallet, Item: "Keys", Args: []interface{}{types.NewU16(netuid), n}}, args[1])
		f.set(netQuery("SubnetworkN", netuid), n+1)
	default:
		f.t.Fatalf("unexpected call %s", call.Name)
	}
}

func (f *fakeLedger) addFree(id address.AccountID, delta *big.Int) {
	cur := f.free[id]
	if cur == nil {
		cur = new(big.Int)
	}
	f.free[id] = new(big.Int).Add(cur, delta)
}

func ptr[T any](v T) *T { return &v }

func multiAddressID(t *testing.T, arg interface{}) address.AccountID {
	b, err := codec.Encode(arg.(types.MultiAddress))
	require.NoError(t, err)
	id, err := address.AccountIDFromBytes(b[1:33])
	require.NoError(t, err)
	return id
}

type fakeOp struct {
	f      *fakeLedger
	call   substrate.Call
	signer address.AccountID
}

func (o *fakeOp) Ledger() waiter.Ledger { return waiter.Native }

func (o *fakeOp) Describe() string { return o.call.String() }

func (o *fakeOp) Submit(context.Context) (waiter.StatusSubscription, string, error) {
	f := o.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, o.call)
	if f.rejectOn[o.call.String()] {
		return nil, "", fmt.Errorf("1010: Invalid Transaction")
	}
	f.apply(o.call, o.signer)
	f.addFree(o.signer, new(big.Int).Neg(f.fee))

	sub := &fakeStatusSub{ch: make(chan waiter.Status, 1), errs: make(chan error)}
	kind := waiter.Finalized
	if f.failNext != 0 {
		kind, f.failNext = f.failNext, 0
	}
	sub.ch <- waiter.Status{Kind: kind}
	close(sub.ch)
	return sub, fmt.Sprintf("0x%02x", len(f.submits)), nil
}

type fakeStatusSub struct {
	ch   chan waiter.Status
	errs chan error
}

func (s *fakeStatusSub) Chan() <-chan waiter.Status { return s.ch }

func (s *fakeStatusSub) Err() <-chan error { return s.errs }

func (s *fakeStatusSub) Unsubscribe() {}

type fixture struct {
	ledger *fakeLedger
	admin  *Admin
	alice  *keys.Keypair
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	alice, err := keys.Alice()
	require.NoError(t, err)
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	ledger := newFakeLedger(t, alice.AccountID())
	w := waiter.New(log, waiter.WithTimeout(time.Second))
	return &fixture{
		ledger: ledger,
		admin:  NewAdmin(ledger, alice, w, balance.MustTao(1), log),
		alice:  alice,
	}
}
