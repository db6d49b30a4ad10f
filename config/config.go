package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/dualledger-harness/contracts"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// DirName is the harness directory under the user's home.
const DirName = ".dualledger-harness"

// Config holds the application configuration
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Endpoints EndpointsConfig `toml:"endpoints"`
	Admin     AdminConfig     `toml:"admin"`
	Waiter    WaiterConfig    `toml:"waiter"`
	Balance   BalanceConfig   `toml:"balance"`
	Contracts ContractsConfig `toml:"contracts"`
	Journal   JournalConfig   `toml:"journal"`
	Report    ReportConfig    `toml:"report"`
}

type GeneralConfig struct {
	LogLevel   string `toml:"log_level"`
	Network    string `toml:"network"` // local, test, dev or main
	SS58Format uint16 `toml:"ss58_format"`
}

// EndpointsConfig holds the EVM RPC URL and the native ledger websocket URL per network.
type EndpointsConfig struct {
	EthRPCURL string `toml:"eth_rpc_url"`
	LocalWS   string `toml:"local_ws"`
	TestWS    string `toml:"test_ws"`
	DevWS     string `toml:"dev_ws"`
	MainWS    string `toml:"main_ws"`
}

type AdminConfig struct {
	SecretURI string `toml:"secret_uri"`
}

type WaiterConfig struct {
	TimeoutMs      int64  `toml:"timeout_ms"`
	Terminal       string `toml:"terminal"` // finalized or in_block
	PollIntervalMs int64  `toml:"poll_interval_ms"`
	Confirmations  uint64 `toml:"confirmations"`
}

type BalanceConfig struct {
	// MaxFee is the largest acceptable fee in rao, as a decimal string.
	MaxFee string `toml:"max_fee"`
}

type ContractsConfig struct {
	BalanceTransfer string `toml:"balance_transfer"`
	Staking         string `toml:"staking"`
	StakingV2       string `toml:"staking_v2"`
	Subnet          string `toml:"subnet"`
	Neuron          string `toml:"neuron"`
	// IncrementalBytecodeFile optionally replaces the built-in demo contract creation code.
	IncrementalBytecodeFile string `toml:"incremental_bytecode_file"`
}

type JournalConfig struct {
	Path string `toml:"path"`
}

type ReportConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// DefaultConfig returns settings for a local dev node.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			LogLevel:   "info",
			Network:    "local",
			SS58Format: 42,
		},
		Endpoints: EndpointsConfig{
			EthRPCURL: "http://localhost:9944",
			LocalWS:   "ws://localhost:9944",
			TestWS:    "wss://test.finney.opentensor.ai:443",
			DevWS:     "wss://dev.chain.opentensor.ai:443",
			MainWS:    "wss://entrypoint-finney.opentensor.ai:443",
		},
		Admin: AdminConfig{
			SecretURI: "//Alice",
		},
		Waiter: WaiterConfig{
			TimeoutMs:      waiter.DefaultTimeout.Milliseconds(),
			Terminal:       "finalized",
			PollIntervalMs: waiter.DefaultPollInterval.Milliseconds(),
			Confirmations:  0,
		},
		Balance: BalanceConfig{
			MaxFee: "10000000", // 0.01 TAO
		},
		Contracts: ContractsConfig{
			BalanceTransfer: contracts.BalanceTransferAddress.Hex(),
			Staking:         contracts.StakingAddress.Hex(),
			StakingV2:       contracts.StakingV2Address.Hex(),
			Subnet:          contracts.SubnetAddress.Hex(),
			Neuron:          contracts.NeuronAddress.Hex(),
		},
		Journal: JournalConfig{
			Path: "data/journal",
		},
		Report: ReportConfig{
			ListenAddr: ":11111",
		},
	}
}

// DefaultDir returns ~/.dualledger-harness.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %v", err)
	}
	return filepath.Join(home, DirName), nil
}

// DefaultPath returns ~/.dualledger-harness/config.toml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadConfig reads from config.toml and returns Config struct. Missing keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	file, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}

	err = toml.Unmarshal(file, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config as TOML, creating parent directories.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks values that would otherwise fail late during a run.
func (c Config) Validate() error {
	if _, err := c.SubstrateURL(); err != nil {
		return err
	}
	if _, err := c.Terminal(); err != nil {
		return err
	}
	if _, err := c.MaxFee(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.General.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %v", err)
	}
	return nil
}

// SubstrateURL returns the websocket URL of the configured network.
func (c Config) SubstrateURL() (string, error) {
	switch c.General.Network {
	case "local", "":
		return c.Endpoints.LocalWS, nil
	case "test":
		return c.Endpoints.TestWS, nil
	case "dev":
		return c.Endpoints.DevWS, nil
	case "main":
		return c.Endpoints.MainWS, nil
	}
	return "", fmt.Errorf("unknown network %q", c.General.Network)
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.Waiter.TimeoutMs) * time.Millisecond
}

// PollInterval falls back to waiter.DefaultPollInterval when unset.
func (c Config) PollInterval() time.Duration {
	if c.Waiter.PollIntervalMs <= 0 {
		return waiter.DefaultPollInterval
	}
	return time.Duration(c.Waiter.PollIntervalMs) * time.Millisecond
}

// Terminal returns the status kinds that complete a native submission.
func (c Config) Terminal() ([]waiter.StatusKind, error) {
	switch c.Waiter.Terminal {
	case "finalized", "":
		return []waiter.StatusKind{waiter.Finalized}, nil
	case "in_block":
		return []waiter.StatusKind{waiter.InBlock, waiter.Finalized}, nil
	}
	return nil, fmt.Errorf("invalid waiter terminal %q: must be finalized or in_block", c.Waiter.Terminal)
}

func (c Config) MaxFee() (*big.Int, error) {
	fee, ok := new(big.Int).SetString(c.Balance.MaxFee, 10)
	if !ok || fee.Sign() <= 0 {
		return nil, fmt.Errorf("invalid max_fee %q", c.Balance.MaxFee)
	}
	return fee, nil
}

// LogLevel returns the parsed level, defaulting to info.
func (c Config) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.General.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// JournalPath resolves a relative journal path against dir.
func (c Config) JournalPath(dir string) string {
	if filepath.IsAbs(c.Journal.Path) {
		return c.Journal.Path
	}
	return filepath.Join(dir, c.Journal.Path)
}
