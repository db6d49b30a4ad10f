package substrate

import (
	"context"
	"fmt"
	"sync"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/dualledger-harness/address"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// Client is a native ledger client over a websocket RPC connection.
type Client struct {
	api *gsrpc.SubstrateAPI
	log *logrus.Logger

	mu          sync.Mutex
	meta        *types.Metadata
	genesisHash *types.Hash
	runtime     *types.RuntimeVersion
}

// Dial connects to a node and fetches its latest metadata.
func Dial(url string, log *logrus.Logger) (*Client, error) {
	api, err := gsrpc.NewSubstrateAPI(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	c := &Client{api: api, log: log}
	if _, err := c.Metadata(); err != nil {
		return nil, err
	}
	log.Infof("Connected to native ledger at %s", url)
	return c, nil
}

func (c *Client) Close() {
	c.api.Client.Close()
}

// Metadata returns the cached runtime metadata, fetching it on first use.
func (c *Client) Metadata() (*types.Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.meta != nil {
		return c.meta, nil
	}
	meta, err := c.api.RPC.State.GetMetadataLatest()
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	c.meta = meta
	return meta, nil
}

func (c *Client) chainInfo() (types.Hash, types.RuntimeVersion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.genesisHash == nil {
		hash, err := c.api.RPC.Chain.GetBlockHash(0)
		if err != nil {
			return types.Hash{}, types.RuntimeVersion{}, fmt.Errorf("failed to get genesis hash: %w", err)
		}
		c.genesisHash = &hash
	}
	if c.runtime == nil {
		rv, err := c.api.RPC.State.GetRuntimeVersionLatest()
		if err != nil {
			return types.Hash{}, types.RuntimeVersion{}, fmt.Errorf("failed to get runtime version: %w", err)
		}
		c.runtime = rv
	}
	return *c.genesisHash, *c.runtime, nil
}

// Query addresses a storage item. Args are the SCALE encodable map keys.
type Query struct {
	Pallet string
	Item   string
	Args   []interface{}
}

func (q Query) String() string {
	return q.Pallet + "." + q.Item
}

func (q Query) encodeArgs() ([][]byte, error) {
	out := make([][]byte, 0, len(q.Args))
	for i, arg := range q.Args {
		b, err := codec.Encode(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %d of %s: %w", i, q, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// StorageKey builds the hashed storage key of q.
func (c *Client) StorageKey(q Query) (types.StorageKey, error) {
	meta, err := c.Metadata()
	if err != nil {
		return nil, err
	}
	args, err := q.encodeArgs()
	if err != nil {
		return nil, err
	}
	key, err := types.CreateStorageKey(meta, q.Pallet, q.Item, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage key for %s: %w", q, err)
	}
	return key, nil
}

// GetValue decodes the latest value of q into target. It reports false when the item is unset,
// in which case target keeps its zero value.
func (c *Client) GetValue(ctx context.Context, q Query, target interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key, err := c.StorageKey(q)
	if err != nil {
		return false, err
	}
	ok, err := c.api.RPC.State.GetStorageLatest(key, target)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", q, err)
	}
	return ok, nil
}

// WatchValue subscribes to changes of q. Each event carries the raw SCALE value, nil when the
// item was removed.
func (c *Client) WatchValue(ctx context.Context, q Query) (*ValueSubscription, error) {
	key, err := c.StorageKey(q)
	if err != nil {
		return nil, err
	}
	sub, err := c.api.RPC.State.SubscribeStorageRaw([]types.StorageKey{key})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", q, err)
	}
	return newValueSubscription(ctx, key, sub.Chan(), sub.Err(), sub.Unsubscribe), nil
}

// Account reads System.Account of id.
func (c *Client) Account(ctx context.Context, id address.AccountID) (types.AccountInfo, error) {
	var info types.AccountInfo
	if _, err := c.GetValue(ctx, AccountQuery(id), &info); err != nil {
		return types.AccountInfo{}, err
	}
	return info, nil
}

// AccountQuery addresses System.Account of id.
func AccountQuery(id address.AccountID) Query {
	return Query{Pallet: "System", Item: "Account", Args: []interface{}{id}}
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	header, err := c.api.RPC.Chain.GetHeaderLatest()
	if err != nil {
		return 0, fmt.Errorf("failed to get header: %w", err)
	}
	return uint64(header.Number), nil
}

// WatchHeads streams best block numbers.
func (c *Client) WatchHeads(ctx context.Context) (waiter.CounterSubscription, error) {
	sub, err := c.api.RPC.Chain.SubscribeNewHeads()
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to heads: %w", err)
	}
	return forwardCounter(ctx, sub.Chan(), sub.Err(), sub.Unsubscribe, func(h types.Header) (uint64, bool) {
		return uint64(h.Number), true
	}), nil
}

// NonceSource watches System.Account nonce of id for the completion waiter.
func (c *Client) NonceSource(id address.AccountID) waiter.NonceSource {
	return &nonceSource{c: c, id: id}
}

type nonceSource struct {
	c  *Client
	id address.AccountID
}

func (n *nonceSource) Nonce(ctx context.Context) (uint64, error) {
	info, err := n.c.Account(ctx, n.id)
	if err != nil {
		return 0, err
	}
	return uint64(info.Nonce), nil
}

func (n *nonceSource) WatchNonce(ctx context.Context) (waiter.CounterSubscription, error) {
	sub, err := n.c.WatchValue(ctx, AccountQuery(n.id))
	if err != nil {
		return nil, err
	}
	return forwardCounter(ctx, sub.Chan(), sub.Err(), sub.Unsubscribe, decodeNonce), nil
}

func decodeNonce(raw []byte) (uint64, bool) {
	if raw == nil {
		return 0, true
	}
	var info types.AccountInfo
	if err := codec.Decode(raw, &info); err != nil {
		return 0, false
	}
	return uint64(info.Nonce), true
}
