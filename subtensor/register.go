package subtensor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/airchains-network/dualledger-harness/address"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/substrate"
)

// AddNewSubnetwork registers a subnet owned by coldkey with hotkey and returns its netuid.
// The network rate limit is cleared first so consecutive registrations succeed.
func (a *Admin) AddNewSubnetwork(ctx context.Context, hotkey address.AccountID, coldkey *keys.Keypair) (uint16, error) {
	if err := a.SetNetworkRateLimit(ctx, 0); err != nil {
		return 0, err
	}
	before, err := TotalNetworks(ctx, a.ledger)
	if err != nil {
		return 0, fmt.Errorf("failed to read total networks: %w", err)
	}

	a.submit(ctx, substrate.NewCall("SubtensorModule.register_network", hotkey), coldkey)

	after, err := TotalNetworks(ctx, a.ledger)
	if err != nil {
		return 0, fmt.Errorf("failed to read total networks: %w", err)
	}
	if after != before+1 {
		return 0, &ValueMismatch{Item: "TotalNetworks", Want: before + 1, Got: after}
	}
	return before, nil
}

// BurnedRegister registers hotkey on netuid paying the burn from coldkey and returns its uid.
func (a *Admin) BurnedRegister(ctx context.Context, netuid uint16, hotkey address.AccountID, coldkey *keys.Keypair) (uint16, error) {
	before, err := SubnetworkN(ctx, a.ledger, netuid)
	if err != nil {
		return 0, fmt.Errorf("failed to read subnet size: %w", err)
	}

	a.submit(ctx, substrate.NewCall("SubtensorModule.burned_register", types.NewU16(netuid), hotkey), coldkey)

	after, err := SubnetworkN(ctx, a.ledger, netuid)
	if err != nil {
		return 0, fmt.Errorf("failed to read subnet size: %w", err)
	}
	if after != before+1 {
		return 0, &ValueMismatch{Item: fmt.Sprintf("SubnetworkN(%d)", netuid), Want: before + 1, Got: after}
	}
	registered, ok, err := Hotkey(ctx, a.ledger, netuid, before)
	if err != nil {
		return 0, fmt.Errorf("failed to read registered hotkey: %w", err)
	}
	if !ok || registered != hotkey {
		return 0, &ValueMismatch{Item: fmt.Sprintf("Keys(%d, %d)", netuid, before), Want: hotkey, Got: registered}
	}
	return before, nil
}

// TransferKeepAlive moves amount from one native account to another and checks the receiver was
// credited exactly.
func (a *Admin) TransferKeepAlive(ctx context.Context, from *keys.Keypair, to address.AccountID, amount *big.Int) error {
	dest, err := types.NewMultiAddressFromAccountID(to[:])
	if err != nil {
		return fmt.Errorf("failed to encode destination: %w", err)
	}
	before, err := Free(ctx, a.ledger, to)
	if err != nil {
		return err
	}

	a.submit(ctx, substrate.NewCall("Balances.transfer_keep_alive", dest, types.NewUCompact(amount)), from)

	after, err := Free(ctx, a.ledger, to)
	if err != nil {
		return err
	}
	want := new(big.Int).Add(before, amount)
	if after.Cmp(want) != 0 {
		return &ValueMismatch{Item: "transfer_keep_alive receiver balance", Want: want, Got: after}
	}
	return nil
}
