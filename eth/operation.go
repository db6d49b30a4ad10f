package eth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/airchains-network/dualledger-harness/waiter"
)

// SendFunc broadcasts a transaction and returns it.
type SendFunc func(ctx context.Context) (*types.Transaction, error)

// TxOperation adapts an EVM transaction to the completion waiter. Its status stream is derived
// from receipt polling: broadcast, inBlock once a receipt exists and finalized after the
// configured number of confirmations.
type TxOperation struct {
	c    *Client
	desc string
	send SendFunc

	// Tx is set after a successful Submit.
	Tx *types.Transaction
}

// Operation wraps send for Waiter.Wait.
func (c *Client) Operation(desc string, send SendFunc) *TxOperation {
	return &TxOperation{c: c, desc: desc, send: send}
}

func (o *TxOperation) Ledger() waiter.Ledger { return waiter.EVM }

func (o *TxOperation) Describe() string { return o.desc }

func (o *TxOperation) Submit(ctx context.Context) (waiter.StatusSubscription, string, error) {
	tx, err := o.send(ctx)
	if err != nil {
		return nil, "", err
	}
	o.Tx = tx

	ctx, cancel := context.WithCancel(ctx)
	sub := &receiptSubscription{
		statuses: make(chan waiter.Status, 4),
		cancel:   cancel,
	}
	go sub.loop(ctx, o.c, tx)
	return sub, tx.Hash().Hex(), nil
}

type receiptSubscription struct {
	statuses chan waiter.Status
	cancel   context.CancelFunc
	once     sync.Once
}

func (s *receiptSubscription) Chan() <-chan waiter.Status { return s.statuses }

// Err is never written. Failed receipt and head reads are retried until the waiter times out.
func (s *receiptSubscription) Err() <-chan error { return nil }

func (s *receiptSubscription) Unsubscribe() { s.once.Do(s.cancel) }

func (s *receiptSubscription) emit(ctx context.Context, st waiter.Status) bool {
	select {
	case s.statuses <- st:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *receiptSubscription) loop(ctx context.Context, c *Client, tx *types.Transaction) {
	if !s.emit(ctx, waiter.Status{Kind: waiter.Broadcast}) {
		return
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for receipt == nil {
		r, err := c.Eth.TransactionReceipt(ctx, tx.Hash())
		switch {
		case err == nil:
			receipt = r
			continue
		case errors.Is(err, ethereum.NotFound):
		default:
			// Nodes answer with an error while the transaction index is still being built.
			c.log.Warnf("Failed to get receipt for %s, retrying: %v", tx.Hash().Hex(), err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}

	block := receipt.BlockHash.Hex()
	if receipt.Status != types.ReceiptStatusSuccessful {
		s.emit(ctx, waiter.Status{Kind: waiter.Invalid, Block: block, Detail: "execution reverted"})
		return
	}
	if !s.emit(ctx, waiter.Status{Kind: waiter.InBlock, Block: block}) {
		return
	}

	target := receipt.BlockNumber.Uint64() + c.confirmations
	for {
		head, err := c.Eth.BlockNumber(ctx)
		if err != nil {
			c.log.Warnf("Failed to get block number, retrying: %v", err)
		} else if head >= target {
			if s.emit(ctx, waiter.Status{Kind: waiter.Finalized, Block: block}) {
				close(s.statuses)
			}
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
