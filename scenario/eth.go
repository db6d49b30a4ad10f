package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/airchains-network/dualledger-harness/address"
	"github.com/airchains-network/dualledger-harness/balance"
	"github.com/airchains-network/dualledger-harness/contracts"
	"github.com/airchains-network/dualledger-harness/eth"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/subtensor"
)

func init() {
	Register(Scenario{
		Name:        "eth.chain-id",
		Description: "EVM chain id matches the native setting and can only be changed by the admin",
		Run:         chainID,
	})
	Register(Scenario{
		Name:        "eth.substrate-transfer",
		Description: "value moves between EVM wallets and native accounts in both directions",
		Run:         substrateTransfer,
	})
	Register(Scenario{
		Name:        "eth.incremental-deploy",
		Description: "deploy the storage demo contract and update its slot",
		Run:         incrementalDeploy,
	})
	Register(Scenario{
		Name:        "eth.whitelist-deploy",
		Description: "a whitelisted wallet deploys a contract while the whitelist check is enforced",
		Run:         whitelistDeploy,
	})
}

func chainID(ctx context.Context, e *Env) error {
	evmID, err := e.Eth.ChainID(ctx)
	if err != nil {
		return err
	}
	nativeID, err := subtensor.ChainID(ctx, e.Ledger)
	if err != nil {
		return err
	}
	if err := expectEqual("chain id", nativeID, evmID.Uint64()); err != nil {
		return err
	}

	next := nativeID + 1
	if err := e.Admin.ForceSetChainID(ctx, next); err != nil {
		return err
	}
	defer func() {
		if err := e.Admin.ForceSetChainID(context.WithoutCancel(ctx), nativeID); err != nil {
			e.Log.Errorf("Failed to restore chain id %d: %v", nativeID, err)
		}
	}()
	evmID, err = e.Eth.ChainID(ctx)
	if err != nil {
		return err
	}
	if err := expectEqual("chain id after update", next, evmID.Uint64()); err != nil {
		return err
	}

	outsider, err := e.FreshKeypair(ctx, 10)
	if err != nil {
		return err
	}
	err = e.Admin.As(outsider).ForceSetChainID(ctx, next+1)
	if !errors.Is(err, subtensor.ErrValueMismatch) {
		return fmt.Errorf("chain id update by %s: want value mismatch, got %v", outsider.Address(), err)
	}
	got, err := subtensor.ChainID(ctx, e.Ledger)
	if err != nil {
		return err
	}
	return expectEqual("chain id after rejected update", next, got)
}

func substrateTransfer(ctx context.Context, e *Env) error {
	sender, err := e.FreshWallet(ctx, 100)
	if err != nil {
		return err
	}
	funded, err := e.Eth.BalanceAt(ctx, sender.Address.Common())
	if err != nil {
		return err
	}
	if err := expectBig("mirrored funding", balance.RaoToEth(balance.MustTao(100)), funded); err != nil {
		return err
	}
	maxFee := balance.RaoToEth(e.MaxFee)
	oneTao := balance.MustTao(1)

	// EVM to EVM.
	receiver, err := keys.NewRandomWallet()
	if err != nil {
		return err
	}
	amount := balance.RaoToEth(oneTao)
	receipt, err := e.SendValue(ctx, sender, receiver.Address.Common(), amount)
	if err != nil {
		return err
	}
	fee := eth.ReceiptFee(receipt)
	if fee.Cmp(maxFee) > 0 {
		return fmt.Errorf("transfer fee %s exceeds max fee %s", fee, maxFee)
	}
	got, err := e.Eth.BalanceAt(ctx, receiver.Address.Common())
	if err != nil {
		return err
	}
	if err := expectBig("receiver balance", amount, got); err != nil {
		return err
	}
	left, err := e.Eth.BalanceAt(ctx, sender.Address.Common())
	if err != nil {
		return err
	}
	want := new(big.Int).Sub(new(big.Int).Sub(funded, amount), fee)
	if err := expectBig("sender balance", want, left); err != nil {
		return err
	}

	// EVM to native through the balance transfer precompile.
	target, err := keys.NewRandom()
	if err != nil {
		return err
	}
	transferABI, err := contracts.Parse(contracts.BalanceTransferABI)
	if err != nil {
		return err
	}
	if _, err := e.Transact(ctx, sender, e.Addresses.BalanceTransfer, transferABI, amount, "transfer", [32]byte(target.AccountID())); err != nil {
		return err
	}
	free, err := subtensor.Free(ctx, e.Ledger, target.AccountID())
	if err != nil {
		return err
	}
	if err := expectBig("native receiver balance", oneTao, free); err != nil {
		return err
	}

	// Native to EVM by paying the mirrored account.
	payer, err := e.FreshKeypair(ctx, 10)
	if err != nil {
		return err
	}
	if err := e.Admin.TransferKeepAlive(ctx, payer, receiver.Mirror().AccountID(), oneTao); err != nil {
		return err
	}
	got, err = e.Eth.BalanceAt(ctx, receiver.Address.Common())
	if err != nil {
		return err
	}
	return expectBig("receiver balance after native transfer", new(big.Int).Add(amount, amount), got)
}

func incrementalDeploy(ctx context.Context, e *Env) error {
	if err := e.Admin.DisableWhitelistCheck(ctx, true); err != nil {
		return err
	}
	deployer, err := e.FreshWallet(ctx, 100)
	if err != nil {
		return err
	}
	bytecode, err := e.IncrementalBytecode()
	if err != nil {
		return err
	}
	incABI, err := contracts.Parse(contracts.IncrementalABI)
	if err != nil {
		return err
	}

	addr, err := e.Deploy(ctx, deployer, incABI, bytecode)
	if err != nil {
		return err
	}
	code, err := e.Eth.Eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("failed to read code: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no code at %s", addr.Hex())
	}
	e.Log.Infof("Incremental contract at %s (%d bytes)", addr.Hex(), len(code))

	out, err := e.Eth.Call(ctx, addr, incABI, "retrieve")
	if err != nil {
		return err
	}
	initial, err := firstBig(out)
	if err != nil {
		return err
	}
	if initial.Sign() != 0 {
		return fmt.Errorf("fresh contract holds %s", initial)
	}

	value := big.NewInt(1234)
	if _, err := e.Transact(ctx, deployer, addr, incABI, nil, "store", value); err != nil {
		return err
	}
	out, err = e.Eth.Call(ctx, addr, incABI, "retrieve")
	if err != nil {
		return err
	}
	stored, err := firstBig(out)
	if err != nil {
		return err
	}
	return expectBig("stored value", value, stored)
}

func whitelistDeploy(ctx context.Context, e *Env) error {
	disabled, err := subtensor.WhitelistCheckDisabled(ctx, e.Ledger)
	if err != nil {
		return err
	}
	if err := e.Admin.DisableWhitelistCheck(ctx, false); err != nil {
		return err
	}
	defer func() {
		if err := e.Admin.DisableWhitelistCheck(context.WithoutCancel(ctx), disabled); err != nil {
			e.Log.Errorf("Failed to restore whitelist check: %v", err)
		}
	}()

	deployer, err := e.FreshWallet(ctx, 100)
	if err != nil {
		return err
	}
	if err := e.Admin.SetWhitelist(ctx, []address.EvmAddress{deployer.Address}); err != nil {
		return err
	}
	bytecode, err := e.IncrementalBytecode()
	if err != nil {
		return err
	}
	incABI, err := contracts.Parse(contracts.IncrementalABI)
	if err != nil {
		return err
	}
	addr, err := e.Deploy(ctx, deployer, incABI, bytecode)
	if err != nil {
		return err
	}
	code, err := e.Eth.Eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("failed to read code: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no code at %s", addr.Hex())
	}
	e.Log.Infof("Whitelisted %s deployed %s", deployer.Address, addr.Hex())
	return nil
}
