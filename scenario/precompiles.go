package scenario

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/airchains-network/dualledger-harness/address"
	"github.com/airchains-network/dualledger-harness/balance"
	"github.com/airchains-network/dualledger-harness/contracts"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/substrate"
	"github.com/airchains-network/dualledger-harness/subtensor"
)

func init() {
	Register(Scenario{
		Name:        "staking.precompile.add-remove",
		Description: "add and remove stake through the staking precompile",
		Run:         stakingAddRemove,
	})
	Register(Scenario{
		Name:        "subnet.precompile.hyperparameter",
		Description: "register subnets with and without identity and set owner hyperparameters through the subnet precompile",
		Run:         subnetHyperparameter,
	})
	Register(Scenario{
		Name:        "neuron.precompile.burned-register",
		Description: "register a neuron through the neuron precompile and observe pending emission",
		Run:         neuronBurnedRegister,
	})
	Register(Scenario{
		Name:        "neuron.precompile.commit-weights",
		Description: "commit a weights hash through the neuron precompile",
		Run:         neuronCommitWeights,
	})
}

func alphaQuery(hotkey, coldkey address.AccountID, netuid uint16) substrate.Query {
	return substrate.Query{Pallet: "SubtensorModule", Item: "Alpha", Args: []interface{}{hotkey, coldkey, types.NewU16(netuid)}}
}

func readAlpha(ctx context.Context, e *Env, hotkey, coldkey address.AccountID, netuid uint16) (*big.Int, error) {
	var v types.U128
	if _, err := e.Ledger.GetValue(ctx, alphaQuery(hotkey, coldkey, netuid), &v); err != nil {
		return nil, err
	}
	if v.Int == nil {
		return new(big.Int), nil
	}
	return v.Int, nil
}

func stakingAddRemove(ctx context.Context, e *Env) error {
	subnet, err := e.CreateSubnet(ctx)
	if err != nil {
		return err
	}
	staker, err := e.FreshWallet(ctx, 100)
	if err != nil {
		return err
	}
	coldkey := staker.Mirror().AccountID()
	if _, err := e.Admin.BurnedRegister(ctx, subnet.NetUID, coldkey, subnet.Coldkey); err != nil {
		return err
	}
	stakingABI, err := contracts.Parse(contracts.StakingV2ABI)
	if err != nil {
		return err
	}
	hotkey := subnet.Hotkey.AccountID()
	netuid := big.NewInt(int64(subnet.NetUID))

	getStake := func() (*big.Int, error) {
		out, err := e.Eth.Call(ctx, e.Addresses.StakingV2, stakingABI, "getStake", [32]byte(hotkey), [32]byte(coldkey), netuid)
		if err != nil {
			return nil, err
		}
		return firstBig(out)
	}

	before, err := getStake()
	if err != nil {
		return err
	}
	nativeBefore, err := readAlpha(ctx, e, hotkey, coldkey, subnet.NetUID)
	if err != nil {
		return err
	}

	if _, err := e.Transact(ctx, staker, e.Addresses.StakingV2, stakingABI, nil, "addStake", [32]byte(hotkey), balance.MustTao(1), netuid); err != nil {
		return err
	}
	added, err := getStake()
	if err != nil {
		return err
	}
	if added.Cmp(before) <= 0 {
		return fmt.Errorf("stake did not grow: before %s, after %s", before, added)
	}
	nativeAfter, err := readAlpha(ctx, e, hotkey, coldkey, subnet.NetUID)
	if err != nil {
		return err
	}
	if nativeAfter.Cmp(nativeBefore) <= 0 {
		return fmt.Errorf("native stake did not grow: before %s, after %s", nativeBefore, nativeAfter)
	}

	if _, err := e.Transact(ctx, staker, e.Addresses.StakingV2, stakingABI, nil, "removeStake", [32]byte(hotkey), added, netuid); err != nil {
		return err
	}
	removed, err := getStake()
	if err != nil {
		return err
	}
	if removed.Cmp(added) >= 0 {
		return fmt.Errorf("stake did not shrink: before %s, after %s", added, removed)
	}
	return nil
}

// subnetParam is a hyperparameter the subnet owner sets through the subnet precompile with
// set<Method> and reads with get<Method>.
type subnetParam struct {
	Method string
	Item   string
	Value  interface{}
}

// ownerSubnetParams are checked in order. Value has the Go type of the precompile argument.
var ownerSubnetParams = []subnetParam{
	{"ServingRateLimit", "ServingRateLimit", uint64(100)},
	{"MaxDifficulty", "MaxDifficulty", uint64(102)},
	{"WeightsVersionKey", "WeightsVersionKey", uint64(103)},
	{"WeightsSetRateLimit", "WeightsSetRateLimit", uint64(104)},
	{"AdjustmentAlpha", "AdjustmentAlpha", uint64(105)},
	{"MaxWeightLimit", "MaxWeightsLimit", uint16(106)},
	{"ImmunityPeriod", "ImmunityPeriod", uint16(107)},
	{"MinAllowedWeights", "MinAllowedWeights", uint16(108)},
	{"Kappa", "Kappa", uint16(109)},
	{"Rho", "Rho", uint16(110)},
	{"ActivityCutoff", "ActivityCutoff", uint16(111)},
	{"NetworkRegistrationAllowed", "NetworkRegistrationAllowed", true},
	{"NetworkPowRegistrationAllowed", "NetworkPowRegistrationAllowed", true},
	{"MaxBurn", "MaxBurn", uint64(113)},
	{"BondsMovingAverage", "BondsMovingAverage", uint64(115)},
	{"CommitRevealWeightsEnabled", "CommitRevealWeightsEnabled", true},
	{"LiquidAlphaEnabled", "LiquidAlphaOn", true},
	{"CommitRevealWeightsInterval", "RevealPeriodEpochs", uint64(119)},
}

// Liquid alpha bounds set after the table.
const (
	alphaLow  uint16 = 118
	alphaHigh uint16 = 52429
)

func readSubnetParam(ctx context.Context, e *Env, p subnetParam, netuid uint16) (interface{}, error) {
	switch p.Value.(type) {
	case uint16:
		v, err := subtensor.SubnetU16(ctx, e.Ledger, p.Item, netuid)
		return v, err
	case uint64:
		v, err := subtensor.SubnetU64(ctx, e.Ledger, p.Item, netuid)
		return v, err
	case bool:
		v, err := subtensor.SubnetBool(ctx, e.Ledger, p.Item, netuid)
		return v, err
	default:
		return nil, fmt.Errorf("unsupported value type %T for %s", p.Value, p.Method)
	}
}

func checkSubnetParam(ctx context.Context, e *Env, owner *keys.Wallet, subnetABI abi.ABI, netuid uint16, p subnetParam) error {
	if _, err := e.Transact(ctx, owner, e.Addresses.Subnet, subnetABI, nil, "set"+p.Method, netuid, p.Value); err != nil {
		return fmt.Errorf("failed to set %s: %w", p.Method, err)
	}
	native, err := readSubnetParam(ctx, e, p, netuid)
	if err != nil {
		return err
	}
	if err := expectEqual("native "+p.Item, p.Value, native); err != nil {
		return err
	}
	out, err := e.Eth.Call(ctx, e.Addresses.Subnet, subnetABI, "get"+p.Method, netuid)
	if err != nil {
		return err
	}
	if len(out) == 0 {
		return fmt.Errorf("empty get%s result", p.Method)
	}
	return expectEqual("contract "+p.Method, p.Value, out[0])
}

func registerNetwork(ctx context.Context, e *Env, owner *keys.Wallet, subnetABI abi.ABI, method string, args ...interface{}) (uint16, error) {
	before, err := subtensor.TotalNetworks(ctx, e.Ledger)
	if err != nil {
		return 0, err
	}
	if _, err := e.Transact(ctx, owner, e.Addresses.Subnet, subnetABI, nil, method, args...); err != nil {
		return 0, err
	}
	after, err := subtensor.TotalNetworks(ctx, e.Ledger)
	if err != nil {
		return 0, err
	}
	if err := expectEqual("total networks after "+method, before+1, after); err != nil {
		return 0, err
	}
	return after - 1, nil
}

func subnetHyperparameter(ctx context.Context, e *Env) error {
	if err := e.Admin.SetNetworkRateLimit(ctx, 0); err != nil {
		return err
	}
	owner, err := e.FreshWallet(ctx, 1_000_000)
	if err != nil {
		return err
	}
	plain, err := keys.NewRandom()
	if err != nil {
		return err
	}
	identified, err := keys.NewRandom()
	if err != nil {
		return err
	}
	subnetABI, err := contracts.Parse(contracts.SubnetABI)
	if err != nil {
		return err
	}

	if _, err := registerNetwork(ctx, e, owner, subnetABI, "registerNetwork", [32]byte(plain.AccountID())); err != nil {
		return err
	}
	// registerNetwork0 is the overload carrying the subnet identity.
	netuid, err := registerNetwork(ctx, e, owner, subnetABI, "registerNetwork0", [32]byte(identified.AccountID()),
		"name", "repo", "contact", "subnetUrl", "discord", "description", "additional")
	if err != nil {
		return err
	}

	for _, p := range ownerSubnetParams {
		if err := checkSubnetParam(ctx, e, owner, subnetABI, netuid, p); err != nil {
			return err
		}
	}

	if _, err := e.Transact(ctx, owner, e.Addresses.Subnet, subnetABI, nil, "setAlphaValues", netuid, alphaLow, alphaHigh); err != nil {
		return fmt.Errorf("failed to set AlphaValues: %w", err)
	}
	low, high, err := subtensor.AlphaValues(ctx, e.Ledger, netuid)
	if err != nil {
		return err
	}
	if err := expectEqual("native alpha values", [2]uint16{alphaLow, alphaHigh}, [2]uint16{low, high}); err != nil {
		return err
	}
	out, err := e.Eth.Call(ctx, e.Addresses.Subnet, subnetABI, "getAlphaValues", netuid)
	if err != nil {
		return err
	}
	if len(out) != 2 {
		return fmt.Errorf("getAlphaValues returned %d values", len(out))
	}
	return expectEqual("contract alpha values", [2]interface{}{alphaLow, alphaHigh}, [2]interface{}{out[0], out[1]})
}

func neuronBurnedRegister(ctx context.Context, e *Env) error {
	subnet, err := e.CreateSubnet(ctx)
	if err != nil {
		return err
	}
	payer, err := e.FreshWallet(ctx, 100)
	if err != nil {
		return err
	}
	hotkey, err := keys.NewRandom()
	if err != nil {
		return err
	}
	neuronABI, err := contracts.Parse(contracts.NeuronABI)
	if err != nil {
		return err
	}

	uid, err := subtensor.SubnetworkN(ctx, e.Ledger, subnet.NetUID)
	if err != nil {
		return err
	}
	if _, err := e.Transact(ctx, payer, e.Addresses.Neuron, neuronABI, nil, "burnedRegister", subnet.NetUID, [32]byte(hotkey.AccountID())); err != nil {
		return err
	}

	n, err := subtensor.SubnetworkN(ctx, e.Ledger, subnet.NetUID)
	if err != nil {
		return err
	}
	if err := expectEqual("subnet size", uid+1, n); err != nil {
		return err
	}
	registered, ok, err := subtensor.Hotkey(ctx, e.Ledger, subnet.NetUID, uid)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no hotkey at uid %d", uid)
	}
	if err := expectEqual("registered hotkey", hotkey.AccountID(), registered); err != nil {
		return err
	}
	return awaitPendingEmission(ctx, e, subnet.NetUID)
}

// awaitPendingEmission polls PendingEmission of netuid until it is positive or the waiter timeout
// elapses.
func awaitPendingEmission(ctx context.Context, e *Env, netuid uint16) error {
	ctx, cancel := context.WithTimeout(ctx, e.Config.Timeout())
	defer cancel()
	ticker := time.NewTicker(e.Config.PollInterval())
	defer ticker.Stop()
	for {
		emission, err := subtensor.PendingEmission(ctx, e.Ledger, netuid)
		if err != nil {
			return err
		}
		if emission > 0 {
			e.Log.Infof("Subnet %d pending emission %d", netuid, emission)
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("no pending emission on subnet %d", netuid)
		}
	}
}

type weightCommit struct {
	Hash             types.H256
	CommitBlock      types.U64
	FirstRevealBlock types.U64
	LastRevealBlock  types.U64
}

func neuronCommitWeights(ctx context.Context, e *Env) error {
	subnet, err := e.CreateSubnet(ctx)
	if err != nil {
		return err
	}
	if err := e.Admin.SetCommitRevealWeightsEnabled(ctx, subnet.NetUID, true); err != nil {
		return err
	}
	if err := e.Admin.SetWeightsSetRateLimit(ctx, subnet.NetUID, 0); err != nil {
		return err
	}
	validator, err := e.FreshWallet(ctx, 100)
	if err != nil {
		return err
	}
	account := validator.Mirror().AccountID()
	if _, err := e.Admin.BurnedRegister(ctx, subnet.NetUID, account, subnet.Coldkey); err != nil {
		return err
	}

	weights := Weights{UIDs: []uint16{1}, Values: []uint16{5}, Salt: []uint16{9}}
	hash, err := weights.CommitHash(account, subnet.NetUID)
	if err != nil {
		return err
	}
	neuronABI, err := contracts.Parse(contracts.NeuronABI)
	if err != nil {
		return err
	}
	if _, err := e.Transact(ctx, validator, e.Addresses.Neuron, neuronABI, nil, "commitWeights", subnet.NetUID, hash); err != nil {
		return err
	}

	var commits []weightCommit
	q := substrate.Query{Pallet: "SubtensorModule", Item: "WeightCommits", Args: []interface{}{types.NewU16(subnet.NetUID), account}}
	ok, err := e.Ledger.GetValue(ctx, q, &commits)
	if err != nil {
		return err
	}
	if !ok || len(commits) == 0 {
		return fmt.Errorf("no weight commits for %s on subnet %d", validator.MirrorAddress(), subnet.NetUID)
	}
	for _, c := range commits {
		if c.Hash == types.H256(hash) {
			return nil
		}
	}
	return fmt.Errorf("commit %x not found among %d commit(s)", hash, len(commits))
}
