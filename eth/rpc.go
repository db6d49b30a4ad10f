package eth

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

const maxRetries = 3

// RpcClient issues raw JSON-RPC calls with a linear backoff between attempts.
type RpcClient struct {
	client  *rpc.Client
	log     *logrus.Logger
	backoff time.Duration
}

func NewRpcClient(client *rpc.Client, log *logrus.Logger) *RpcClient {
	return &RpcClient{client: client, log: log, backoff: time.Second}
}

// Call invokes method and decodes the result into result. JSON-RPC errors returned by the node
// are not retried.
func (c *RpcClient) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := c.client.CallContext(ctx, result, method, params...)
		if err == nil {
			return nil
		}
		if _, isRPCErr := err.(rpc.Error); isRPCErr {
			return fmt.Errorf("RPC error: %w", err)
		}
		lastErr = err
		c.log.Warnf("RPC call %s attempt %d failed: %v", method, attempt+1, err)
		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt+1)):
			}
		}
	}
	return fmt.Errorf("RPC call %s failed after %d retries: %w", method, maxRetries, lastErr)
}

func (c *RpcClient) Close() {
	c.client.Close()
}

// GetGasUsed reads gasUsed from the receipt of txHash.
func (c *RpcClient) GetGasUsed(ctx context.Context, txHash common.Hash) (*big.Int, error) {
	var receipt struct {
		GasUsed string `json:"gasUsed"`
	}
	if err := c.Call(ctx, &receipt, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, err
	}
	return HexToBigInt(receipt.GasUsed), nil
}

// GetCode returns the deployed runtime code at addr.
func (c *RpcClient) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	var code hexutil.Bytes
	if err := c.Call(ctx, &code, "eth_getCode", addr, "latest"); err != nil {
		return nil, fmt.Errorf("failed to get code: %w", err)
	}
	return code, nil
}

// GetStorageAt reads a single storage slot at the latest block.
func (c *RpcClient) GetStorageAt(ctx context.Context, addr common.Address, slot uint64) (common.Hash, error) {
	var value common.Hash
	key := common.BigToHash(new(big.Int).SetUint64(slot))
	if err := c.Call(ctx, &value, "eth_getStorageAt", addr, key, "latest"); err != nil {
		return common.Hash{}, fmt.Errorf("failed to get storage: %w", err)
	}
	return value, nil
}

func HexToBigInt(hexStr string) *big.Int {
	if hexStr == "" {
		return big.NewInt(0)
	}
	n := new(big.Int)
	n.SetString(strings.TrimPrefix(hexStr, "0x"), 16)
	return n
}
