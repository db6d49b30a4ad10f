package subtensor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/airchains-network/dualledger-harness/address"
	"github.com/airchains-network/dualledger-harness/substrate"
)

const pallet = "SubtensorModule"

func netQuery(item string, netuid uint16) substrate.Query {
	return substrate.Query{Pallet: pallet, Item: item, Args: []interface{}{types.NewU16(netuid)}}
}

var (
	totalNetworksQuery    = substrate.Query{Pallet: pallet, Item: "TotalNetworks"}
	networkRateLimitQuery = substrate.Query{Pallet: pallet, Item: "NetworkRateLimit"}
	chainIDQuery          = substrate.Query{Pallet: "EVMChainId", Item: "ChainId"}
	whitelistQuery        = substrate.Query{Pallet: "EVM", Item: "DisableWhitelistCheck"}
	whitelistedQuery      = substrate.Query{Pallet: "EVM", Item: "WhitelistedCreators"}
)

func readU16(ctx context.Context, l Ledger, q substrate.Query) (uint16, error) {
	var v types.U16
	if _, err := l.GetValue(ctx, q, &v); err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func readU64(ctx context.Context, l Ledger, q substrate.Query) (uint64, error) {
	var v types.U64
	if _, err := l.GetValue(ctx, q, &v); err != nil {
		return 0, err
	}
	return uint64(v), nil
}

func readBool(ctx context.Context, l Ledger, q substrate.Query) (bool, error) {
	var v types.Bool
	if _, err := l.GetValue(ctx, q, &v); err != nil {
		return false, err
	}
	return bool(v), nil
}

// Free returns the free native balance of id.
func Free(ctx context.Context, l Ledger, id address.AccountID) (*big.Int, error) {
	info, err := l.Account(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read account %x: %w", id[:], err)
	}
	if info.Data.Free.Int == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(info.Data.Free.Int), nil
}

func TotalNetworks(ctx context.Context, l Ledger) (uint16, error) {
	return readU16(ctx, l, totalNetworksQuery)
}

func NetworkRateLimit(ctx context.Context, l Ledger) (uint64, error) {
	return readU64(ctx, l, networkRateLimitQuery)
}

func Tempo(ctx context.Context, l Ledger, netuid uint16) (uint16, error) {
	return readU16(ctx, l, netQuery("Tempo", netuid))
}

func CommitRevealWeightsEnabled(ctx context.Context, l Ledger, netuid uint16) (bool, error) {
	return readBool(ctx, l, netQuery("CommitRevealWeightsEnabled", netuid))
}

func WeightsSetRateLimit(ctx context.Context, l Ledger, netuid uint16) (uint64, error) {
	return readU64(ctx, l, netQuery("WeightsSetRateLimit", netuid))
}

func RevealPeriodEpochs(ctx context.Context, l Ledger, netuid uint16) (uint64, error) {
	return readU64(ctx, l, netQuery("RevealPeriodEpochs", netuid))
}

func SubnetworkN(ctx context.Context, l Ledger, netuid uint16) (uint16, error) {
	return readU16(ctx, l, netQuery("SubnetworkN", netuid))
}

func ServingRateLimit(ctx context.Context, l Ledger, netuid uint16) (uint64, error) {
	return readU64(ctx, l, netQuery("ServingRateLimit", netuid))
}

// ChainID reads the EVM chain id configured on the native ledger.
func ChainID(ctx context.Context, l Ledger) (uint64, error) {
	return readU64(ctx, l, chainIDQuery)
}

func WhitelistCheckDisabled(ctx context.Context, l Ledger) (bool, error) {
	return readBool(ctx, l, whitelistQuery)
}

// WhitelistedCreators lists the EVM addresses allowed to deploy while the whitelist check is on.
func WhitelistedCreators(ctx context.Context, l Ledger) ([]address.EvmAddress, error) {
	var v []types.H160
	if _, err := l.GetValue(ctx, whitelistedQuery, &v); err != nil {
		return nil, err
	}
	out := make([]address.EvmAddress, len(v))
	for i, h := range v {
		out[i] = address.EvmAddress(h)
	}
	return out, nil
}

// PendingEmission is the emission accumulated for netuid since its last epoch.
func PendingEmission(ctx context.Context, l Ledger, netuid uint16) (uint64, error) {
	return readU64(ctx, l, netQuery("PendingEmission", netuid))
}

// SubnetU16 reads a u16 subnet hyperparameter stored under item.
func SubnetU16(ctx context.Context, l Ledger, item string, netuid uint16) (uint16, error) {
	return readU16(ctx, l, netQuery(item, netuid))
}

func SubnetU64(ctx context.Context, l Ledger, item string, netuid uint16) (uint64, error) {
	return readU64(ctx, l, netQuery(item, netuid))
}

func SubnetBool(ctx context.Context, l Ledger, item string, netuid uint16) (bool, error) {
	return readBool(ctx, l, netQuery(item, netuid))
}

// AlphaValues returns the (low, high) liquid alpha bounds of netuid.
func AlphaValues(ctx context.Context, l Ledger, netuid uint16) (uint16, uint16, error) {
	var v struct {
		Low  types.U16
		High types.U16
	}
	if _, err := l.GetValue(ctx, netQuery("AlphaValues", netuid), &v); err != nil {
		return 0, 0, err
	}
	return uint16(v.Low), uint16(v.High), nil
}

// Hotkey returns the hotkey registered at uid on netuid.
func Hotkey(ctx context.Context, l Ledger, netuid, uid uint16) (address.AccountID, bool, error) {
	var id address.AccountID
	q := substrate.Query{Pallet: pallet, Item: "Keys", Args: []interface{}{types.NewU16(netuid), types.NewU16(uid)}}
	ok, err := l.GetValue(ctx, q, &id)
	if err != nil {
		return address.AccountID{}, false, err
	}
	return id, ok, nil
}
