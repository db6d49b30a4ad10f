package contracts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Precompile addresses of the EVM sidechain.
var (
	BalanceTransferAddress = common.HexToAddress("0x0000000000000000000000000000000000000800")
	StakingAddress         = common.HexToAddress("0x0000000000000000000000000000000000000801")
	SubnetAddress          = common.HexToAddress("0x0000000000000000000000000000000000000803")
	NeuronAddress          = common.HexToAddress("0x0000000000000000000000000000000000000804")
	StakingV2Address       = common.HexToAddress("0x0000000000000000000000000000000000000805")
)

const BalanceTransferABI = `[
  {"type":"function","name":"transfer","stateMutability":"payable",
   "inputs":[{"name":"data","type":"bytes32"}],"outputs":[]}
]`

const StakingABI = `[
  {"type":"function","name":"addStake","stateMutability":"payable",
   "inputs":[{"name":"hotkey","type":"bytes32"},{"name":"netuid","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"removeStake","stateMutability":"nonpayable",
   "inputs":[{"name":"hotkey","type":"bytes32"},{"name":"amount","type":"uint256"},{"name":"netuid","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getStake","stateMutability":"view",
   "inputs":[{"name":"hotkey","type":"bytes32"},{"name":"coldkey","type":"bytes32"},{"name":"netuid","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

const StakingV2ABI = `[
  {"type":"function","name":"addStake","stateMutability":"nonpayable",
   "inputs":[{"name":"hotkey","type":"bytes32"},{"name":"amount","type":"uint256"},{"name":"netuid","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"removeStake","stateMutability":"nonpayable",
   "inputs":[{"name":"hotkey","type":"bytes32"},{"name":"amount","type":"uint256"},{"name":"netuid","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getStake","stateMutability":"view",
   "inputs":[{"name":"hotkey","type":"bytes32"},{"name":"coldkey","type":"bytes32"},{"name":"netuid","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

const SubnetABI = `[
  {"type":"function","name":"registerNetwork","stateMutability":"payable",
   "inputs":[{"name":"hotkey","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"registerNetwork","stateMutability":"payable",
   "inputs":[{"name":"hotkey","type":"bytes32"},{"name":"subnetName","type":"string"},{"name":"githubRepo","type":"string"},
             {"name":"subnetContact","type":"string"},{"name":"subnetUrl","type":"string"},{"name":"discord","type":"string"},
             {"name":"description","type":"string"},{"name":"additional","type":"string"}],"outputs":[]},
  {"type":"function","name":"setServingRateLimit","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"servingRateLimit","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"getServingRateLimit","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"setMaxDifficulty","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"maxDifficulty","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"getMaxDifficulty","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"setWeightsVersionKey","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"weightsVersionKey","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"getWeightsVersionKey","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"setWeightsSetRateLimit","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"weightsSetRateLimit","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"getWeightsSetRateLimit","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"setAdjustmentAlpha","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"adjustmentAlpha","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"getAdjustmentAlpha","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"setMaxWeightLimit","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"maxWeightLimit","type":"uint16"}],"outputs":[]},
  {"type":"function","name":"getMaxWeightLimit","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint16"}]},
  {"type":"function","name":"setImmunityPeriod","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"immunityPeriod","type":"uint16"}],"outputs":[]},
  {"type":"function","name":"getImmunityPeriod","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint16"}]},
  {"type":"function","name":"setMinAllowedWeights","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"minAllowedWeights","type":"uint16"}],"outputs":[]},
  {"type":"function","name":"getMinAllowedWeights","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint16"}]},
  {"type":"function","name":"setKappa","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"kappa","type":"uint16"}],"outputs":[]},
  {"type":"function","name":"getKappa","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint16"}]},
  {"type":"function","name":"setRho","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"rho","type":"uint16"}],"outputs":[]},
  {"type":"function","name":"getRho","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint16"}]},
  {"type":"function","name":"setActivityCutoff","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"activityCutoff","type":"uint16"}],"outputs":[]},
  {"type":"function","name":"getActivityCutoff","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint16"}]},
  {"type":"function","name":"setNetworkRegistrationAllowed","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"networkRegistrationAllowed","type":"bool"}],"outputs":[]},
  {"type":"function","name":"getNetworkRegistrationAllowed","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"setNetworkPowRegistrationAllowed","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"networkPowRegistrationAllowed","type":"bool"}],"outputs":[]},
  {"type":"function","name":"getNetworkPowRegistrationAllowed","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"setMaxBurn","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"maxBurn","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"getMaxBurn","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"setBondsMovingAverage","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"bondsMovingAverage","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"getBondsMovingAverage","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"setCommitRevealWeightsEnabled","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"commitRevealWeightsEnabled","type":"bool"}],"outputs":[]},
  {"type":"function","name":"getCommitRevealWeightsEnabled","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"setLiquidAlphaEnabled","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"liquidAlphaEnabled","type":"bool"}],"outputs":[]},
  {"type":"function","name":"getLiquidAlphaEnabled","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"setCommitRevealWeightsInterval","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"commitRevealWeightsInterval","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"getCommitRevealWeightsInterval","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"setAlphaValues","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"alphaLow","type":"uint16"},{"name":"alphaHigh","type":"uint16"}],"outputs":[]},
  {"type":"function","name":"getAlphaValues","stateMutability":"view",
   "inputs":[{"name":"netuid","type":"uint16"}],"outputs":[{"name":"","type":"uint16"},{"name":"","type":"uint16"}]}
]`

const NeuronABI = `[
  {"type":"function","name":"burnedRegister","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"hotkey","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"commitWeights","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"commitHash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"revealWeights","stateMutability":"payable",
   "inputs":[{"name":"netuid","type":"uint16"},{"name":"uids","type":"uint16[]"},{"name":"values","type":"uint16[]"},
             {"name":"salt","type":"uint16[]"},{"name":"versionKey","type":"uint64"}],"outputs":[]}
]`

// IncrementalABI is a single slot store/retrieve demo contract.
const IncrementalABI = `[
  {"type":"function","name":"retrieve","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"store","stateMutability":"nonpayable","inputs":[{"name":"num","type":"uint256"}],"outputs":[]}
]`

// IncrementalBytecode is the creation code of the IncrementalABI contract.
// The runtime dispatches on retrieve() and store(uint256) and keeps the value in slot 0.
const IncrementalBytecode = "0x603280600b6000396000f3" +
	"60003560e01c80632e64cec114601e5780636057361d14602a57600080fd" +
	"5b60005460005260206000f3" +
	"5b60043560005500"

var (
	parsedMu sync.Mutex
	parsed   = map[string]abi.ABI{}
)

// Parse returns the parsed ABI for a definition, caching the result.
func Parse(definition string) (abi.ABI, error) {
	parsedMu.Lock()
	defer parsedMu.Unlock()
	if a, ok := parsed[definition]; ok {
		return a, nil
	}
	a, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse abi: %w", err)
	}
	parsed[definition] = a
	return a, nil
}

// MustParse is Parse for the constant ABIs of this package.
func MustParse(definition string) abi.ABI {
	a, err := Parse(definition)
	if err != nil {
		panic(err)
	}
	return a
}
