package substrate

import (
	"bytes"
	"context"
	"sync"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/airchains-network/dualledger-harness/waiter"
)

// ValueSubscription streams the raw value of a single storage key.
type ValueSubscription struct {
	values chan []byte
	errs   chan error
	cancel context.CancelFunc
	once   sync.Once
}

func newValueSubscription(ctx context.Context, key types.StorageKey, in <-chan types.StorageChangeSet, errs <-chan error, unsubscribe func()) *ValueSubscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &ValueSubscription{
		values: make(chan []byte, 1),
		errs:   make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if ok && err != nil {
					s.errs <- err
				}
				return
			case set, ok := <-in:
				if !ok {
					close(s.values)
					return
				}
				for _, change := range set.Changes {
					if !bytes.Equal(change.StorageKey, key) {
						continue
					}
					var raw []byte
					if change.HasStorageData {
						raw = change.StorageData
					}
					select {
					case s.values <- raw:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return s
}

func (s *ValueSubscription) Chan() <-chan []byte { return s.values }

func (s *ValueSubscription) Err() <-chan error { return s.errs }

func (s *ValueSubscription) Unsubscribe() { s.once.Do(s.cancel) }

type counterSubscription struct {
	values chan uint64
	errs   chan error
	cancel context.CancelFunc
	once   sync.Once
}

func (s *counterSubscription) Chan() <-chan uint64 { return s.values }

func (s *counterSubscription) Err() <-chan error { return s.errs }

func (s *counterSubscription) Unsubscribe() { s.once.Do(s.cancel) }

// forwardCounter converts a typed subscription into a CounterSubscription. Values that fail to
// convert are skipped.
func forwardCounter[T any](ctx context.Context, in <-chan T, errs <-chan error, unsubscribe func(), convert func(T) (uint64, bool)) waiter.CounterSubscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &counterSubscription{
		values: make(chan uint64, 1),
		errs:   make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if ok && err != nil {
					s.errs <- err
				}
				return
			case v, ok := <-in:
				if !ok {
					close(s.values)
					return
				}
				n, ok := convert(v)
				if !ok {
					continue
				}
				select {
				case s.values <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return s
}

// statusSubscription maps extrinsic status events to waiter statuses and closes after the first
// terminal or error status.
type statusSubscription struct {
	statuses chan waiter.Status
	errs     chan error
	cancel   context.CancelFunc
	once     sync.Once
}

func newStatusSubscription(ctx context.Context, in <-chan types.ExtrinsicStatus, errs <-chan error, unsubscribe func()) *statusSubscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &statusSubscription{
		statuses: make(chan waiter.Status, 4),
		errs:     make(chan error, 1),
		cancel:   cancel,
	}
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if ok && err != nil {
					s.errs <- err
				}
				return
			case raw, ok := <-in:
				if !ok {
					close(s.statuses)
					return
				}
				status := StatusFromExtrinsic(raw)
				select {
				case s.statuses <- status:
				case <-ctx.Done():
					return
				}
				if status.Kind == waiter.Finalized || status.Kind.IsError() {
					close(s.statuses)
					return
				}
			}
		}
	}()
	return s
}

func (s *statusSubscription) Chan() <-chan waiter.Status { return s.statuses }

func (s *statusSubscription) Err() <-chan error { return s.errs }

func (s *statusSubscription) Unsubscribe() { s.once.Do(s.cancel) }

// StatusFromExtrinsic maps a transaction pool status to a waiter status.
func StatusFromExtrinsic(s types.ExtrinsicStatus) waiter.Status {
	switch {
	case s.IsFuture:
		return waiter.Status{Kind: waiter.Future}
	case s.IsReady:
		return waiter.Status{Kind: waiter.Ready}
	case s.IsBroadcast:
		return waiter.Status{Kind: waiter.Broadcast}
	case s.IsInBlock:
		return waiter.Status{Kind: waiter.InBlock, Block: s.AsInBlock.Hex()}
	case s.IsRetracted:
		return waiter.Status{Kind: waiter.Retracted, Block: s.AsRetracted.Hex()}
	case s.IsFinalityTimeout:
		return waiter.Status{Kind: waiter.FinalityTimeout, Block: s.AsFinalityTimeout.Hex()}
	case s.IsFinalized:
		return waiter.Status{Kind: waiter.Finalized, Block: s.AsFinalized.Hex()}
	case s.IsUsurped:
		return waiter.Status{Kind: waiter.Usurped, Detail: "replaced by " + s.AsUsurped.Hex()}
	case s.IsDropped:
		return waiter.Status{Kind: waiter.Dropped}
	case s.IsInvalid:
		return waiter.Status{Kind: waiter.Invalid}
	}
	return waiter.Status{Kind: waiter.Future, Detail: "unrecognized status"}
}
