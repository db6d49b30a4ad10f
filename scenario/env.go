package scenario

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/dualledger-harness/address"
	"github.com/airchains-network/dualledger-harness/balance"
	"github.com/airchains-network/dualledger-harness/config"
	"github.com/airchains-network/dualledger-harness/contracts"
	"github.com/airchains-network/dualledger-harness/eth"
	"github.com/airchains-network/dualledger-harness/journal"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/subtensor"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// Addresses are the precompile addresses in use.
type Addresses struct {
	BalanceTransfer common.Address
	Staking         common.Address
	StakingV2       common.Address
	Subnet          common.Address
	Neuron          common.Address
}

// AddressesFromConfig parses the configured precompile addresses.
func AddressesFromConfig(cfg config.ContractsConfig) (Addresses, error) {
	var (
		out  Addresses
		errs []string
	)
	parse := func(name, s string, dst *common.Address) {
		a, err := address.ParseEvmAddress(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			return
		}
		*dst = a.Common()
	}
	parse("balance_transfer", cfg.BalanceTransfer, &out.BalanceTransfer)
	parse("staking", cfg.Staking, &out.Staking)
	parse("staking_v2", cfg.StakingV2, &out.StakingV2)
	parse("subnet", cfg.Subnet, &out.Subnet)
	parse("neuron", cfg.Neuron, &out.Neuron)
	if len(errs) > 0 {
		return Addresses{}, fmt.Errorf("invalid contract addresses: %s", strings.Join(errs, "; "))
	}
	return out, nil
}

// Env is what a scenario gets to work with. Both ledgers share one waiter, so every
// submission of the run lands in the journal.
type Env struct {
	Config    config.Config
	Log       *logrus.Logger
	Eth       *eth.Client
	Ledger    subtensor.Ledger
	Admin     *subtensor.Admin
	Waiter    *waiter.Waiter
	Addresses Addresses
	MaxFee    *big.Int
	RunID     string

	journal *journal.Journal
}

// Submissions returns the number of operations recorded for the current run.
func (e *Env) Submissions() (int, error) {
	return e.journal.Submissions(e.RunID)
}

// FreshKeypair creates a random native keypair funded with tao whole tokens.
func (e *Env) FreshKeypair(ctx context.Context, tao int64) (*keys.Keypair, error) {
	kp, err := keys.NewRandom()
	if err != nil {
		return nil, err
	}
	if tao > 0 {
		amount, err := balance.Tao(tao)
		if err != nil {
			return nil, err
		}
		if err := e.Admin.ForceSetBalance(ctx, kp.AccountID(), amount); err != nil {
			return nil, fmt.Errorf("failed to fund %s: %w", kp.Address(), err)
		}
	}
	return kp, nil
}

// FreshWallet creates a random EVM wallet whose mirrored account holds tao whole tokens.
func (e *Env) FreshWallet(ctx context.Context, tao int64) (*keys.Wallet, error) {
	w, err := keys.NewRandomWallet()
	if err != nil {
		return nil, err
	}
	if tao > 0 {
		amount, err := balance.Tao(tao)
		if err != nil {
			return nil, err
		}
		if err := e.Admin.ForceSetBalanceToEthAddress(ctx, w.Address, amount); err != nil {
			return nil, fmt.Errorf("failed to fund %s: %w", w.Address, err)
		}
	}
	return w, nil
}

// Subnet is a freshly registered subnet and its owner keys.
type Subnet struct {
	NetUID  uint16
	Coldkey *keys.Keypair
	Hotkey  *keys.Keypair
}

// CreateSubnet registers a new subnet owned by a fresh funded coldkey.
func (e *Env) CreateSubnet(ctx context.Context) (*Subnet, error) {
	coldkey, err := e.FreshKeypair(ctx, 10_000)
	if err != nil {
		return nil, err
	}
	hotkey, err := keys.NewRandom()
	if err != nil {
		return nil, err
	}
	netuid, err := e.Admin.AddNewSubnetwork(ctx, hotkey.AccountID(), coldkey)
	if err != nil {
		return nil, fmt.Errorf("failed to register subnet: %w", err)
	}
	e.Log.Infof("Registered subnet %d owned by %s", netuid, coldkey.Address())
	return &Subnet{NetUID: netuid, Coldkey: coldkey, Hotkey: hotkey}, nil
}

// Transact sends a contract call from w through the waiter and returns its receipt. A failed or
// timed out wait is logged, the receipt is then awaited directly so state reads that follow see
// the call. A reverted call is an error.
func (e *Env) Transact(ctx context.Context, w *keys.Wallet, contract common.Address, contractABI abi.ABI, value *big.Int, method string, args ...interface{}) (*types.Receipt, error) {
	op := e.Eth.Operation(method, func(ctx context.Context) (*types.Transaction, error) {
		return e.Eth.Transact(ctx, w, contract, contractABI, value, method, args...)
	})
	e.wait(ctx, op, e.Eth.NonceSource(w.Address))
	return e.mined(ctx, op)
}

// SendValue sends value from w to to through the waiter and returns the receipt.
func (e *Env) SendValue(ctx context.Context, w *keys.Wallet, to common.Address, value *big.Int) (*types.Receipt, error) {
	op := e.Eth.Operation("transfer", func(ctx context.Context) (*types.Transaction, error) {
		return e.Eth.SendValue(ctx, w, to, value)
	})
	e.wait(ctx, op, e.Eth.NonceSource(w.Address))
	return e.mined(ctx, op)
}

// Deploy creates a contract from w and returns its address once the creation is mined.
func (e *Env) Deploy(ctx context.Context, w *keys.Wallet, contractABI abi.ABI, bytecode []byte) (common.Address, error) {
	var addr common.Address
	op := e.Eth.Operation("deploy", func(ctx context.Context) (*types.Transaction, error) {
		a, tx, err := e.Eth.Deploy(ctx, w, contractABI, bytecode)
		addr = a
		return tx, err
	})
	e.wait(ctx, op, e.Eth.NonceSource(w.Address))
	if _, err := e.mined(ctx, op); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func (e *Env) wait(ctx context.Context, op waiter.Operation, nonces waiter.NonceSource) {
	pending, err := e.Waiter.Wait(ctx, op, nonces)
	if err != nil {
		e.Log.Warnf("%s did not complete: %v", op.Describe(), err)
		return
	}
	e.Log.Debugf("%s resolved as %s", op.Describe(), pending.State)
}

func (e *Env) mined(ctx context.Context, op *eth.TxOperation) (*types.Receipt, error) {
	if op.Tx == nil {
		return nil, fmt.Errorf("%s was not submitted", op.Describe())
	}
	ctx, cancel := context.WithTimeout(ctx, e.Config.Timeout()+readSlack)
	defer cancel()
	return e.Eth.WaitMined(ctx, op.Tx)
}

// IncrementalBytecode returns the demo contract creation code, from the configured file when set.
func (e *Env) IncrementalBytecode() ([]byte, error) {
	path := e.Config.Contracts.IncrementalBytecodeFile
	if path == "" {
		return common.FromHex(contracts.IncrementalBytecode), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bytecode file: %w", err)
	}
	return common.FromHex(strings.TrimSpace(string(data))), nil
}
