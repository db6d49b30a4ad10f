package eth

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/dualledger-harness/address"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// transferGas is the intrinsic gas of a plain value transfer.
const transferGas = 21000

// Backend is the subset of an EVM node client used by the harness. Both *ethclient.Client and
// the simulated backend's client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ethereum.ChainStateReader
	ethereum.TransactionReader

	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Client wraps the EVM node client and a retrying raw JSON-RPC client.
type Client struct {
	Rpc *RpcClient
	Eth Backend

	log           *logrus.Logger
	pollInterval  time.Duration
	confirmations uint64
}

// NewClient dials url with both rpc.Client and ethclient.Client.
func NewClient(url string, log *logrus.Logger) (*Client, error) {
	rpcClient, err := rpc.Dial(url)
	if err != nil {
		return nil, err
	}
	return &Client{
		Rpc:          NewRpcClient(rpcClient, log),
		Eth:          ethclient.NewClient(rpcClient),
		log:          log,
		pollInterval: waiter.DefaultPollInterval,
	}, nil
}

// NewClientFromBackend wraps an existing backend. The raw RPC client is set when the backend
// exposes one.
func NewClientFromBackend(b Backend, log *logrus.Logger) *Client {
	c := &Client{Eth: b, log: log, pollInterval: waiter.DefaultPollInterval}
	if withRPC, ok := b.(interface{ Client() *rpc.Client }); ok {
		c.Rpc = NewRpcClient(withRPC.Client(), log)
	}
	return c
}

// SetPolling configures receipt/nonce polling and the confirmation depth reported as finalized.
func (c *Client) SetPolling(interval time.Duration, confirmations uint64) {
	if interval > 0 {
		c.pollInterval = interval
	}
	c.confirmations = confirmations
}

// Close releases the underlying connection.
func (c *Client) Close() {
	if c.Rpc != nil {
		c.Rpc.Close()
	}
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.Eth.ChainID(ctx)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.Eth.BlockNumber(ctx)
}

// WatchHeads polls the block number.
func (c *Client) WatchHeads(ctx context.Context) (waiter.CounterSubscription, error) {
	return waiter.PollCounter(ctx, c.pollInterval, c.Eth.BlockNumber), nil
}

// BalanceAt returns the latest balance in EVM units.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.Eth.BalanceAt(ctx, addr, nil)
}

// NonceAt returns the latest confirmed nonce.
func (c *Client) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	return c.Eth.NonceAt(ctx, addr, nil)
}

// EstimateTransferFee estimates gas for a value transfer and prices it at the suggested gas price.
func (c *Client) EstimateTransferFee(ctx context.Context, from, to common.Address, value *big.Int) (*big.Int, error) {
	gas, err := c.Eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	price, err := c.Eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(gas), price), nil
}

// SendValue signs and sends a dynamic fee value transfer.
func (c *Client) SendValue(ctx context.Context, from *keys.Wallet, to common.Address, value *big.Int) (*types.Transaction, error) {
	chainID, err := c.Eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	nonce, err := c.Eth.PendingNonceAt(ctx, from.Address.Common())
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	tip, err := c.Eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip: %w", err)
	}
	head, err := c.Eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get head: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       transferGas,
		To:        &to,
		Value:     value,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), from.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.Eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.log.Debugf("Sent %s from %s to %s, tx %s", value, from.Address.Hex(), to.Hex(), signed.Hash().Hex())
	return signed, nil
}

// WaitMined blocks until tx has a receipt. A reverted transaction is returned as an error.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.Eth, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return receipt, nil
}

// ReceiptFee returns the fee actually paid for a mined transaction.
func ReceiptFee(receipt *types.Receipt) *big.Int {
	if receipt.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
}

func (c *Client) transactOpts(ctx context.Context, w *keys.Wallet, value *big.Int) (*bind.TransactOpts, error) {
	chainID, err := c.Eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	opts, err := w.TransactOpts(chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.Value = value
	return opts, nil
}

// Deploy sends a contract creation transaction.
func (c *Client) Deploy(ctx context.Context, w *keys.Wallet, contractABI abi.ABI, bytecode []byte, args ...interface{}) (common.Address, *types.Transaction, error) {
	opts, err := c.transactOpts(ctx, w, nil)
	if err != nil {
		return common.Address{}, nil, err
	}
	addr, tx, _, err := bind.DeployContract(opts, contractABI, bytecode, c.Eth, args...)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to deploy contract: %w", err)
	}
	return addr, tx, nil
}

// Call performs a read-only contract call at the latest block.
func (c *Client) Call(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	bound := bind.NewBoundContract(contract, contractABI, c.Eth, c.Eth, c.Eth)
	var out []interface{}
	if err := bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}

// Transact sends a state changing contract call carrying value (nil for none).
func (c *Client) Transact(ctx context.Context, w *keys.Wallet, contract common.Address, contractABI abi.ABI, value *big.Int, method string, args ...interface{}) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx, w, value)
	if err != nil {
		return nil, err
	}
	bound := bind.NewBoundContract(contract, contractABI, c.Eth, c.Eth, c.Eth)
	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}
	return tx, nil
}

// NonceSource returns the nonce watcher of addr for the completion waiter.
func (c *Client) NonceSource(addr address.EvmAddress) waiter.NonceSource {
	return &nonceSource{c: c, addr: addr.Common()}
}

type nonceSource struct {
	c    *Client
	addr common.Address
}

func (n *nonceSource) Nonce(ctx context.Context) (uint64, error) {
	return n.c.NonceAt(ctx, n.addr)
}

func (n *nonceSource) WatchNonce(ctx context.Context) (waiter.CounterSubscription, error) {
	return waiter.PollCounter(ctx, n.c.pollInterval, n.Nonce), nil
}
