package waiter

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval matches the nonce polling cadence used when no push subscription exists.
const DefaultPollInterval = 200 * time.Millisecond

type pollSubscription struct {
	values chan uint64
	errs   chan error
	cancel context.CancelFunc
	once   sync.Once
}

// PollCounter turns a read function into a CounterSubscription by calling it every interval
// and emitting values that differ from the previous one. A read error ends the subscription.
func PollCounter(ctx context.Context, interval time.Duration, read func(context.Context) (uint64, error)) CounterSubscription {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &pollSubscription{
		values: make(chan uint64, 1),
		errs:   make(chan error, 1),
		cancel: cancel,
	}
	go sub.loop(ctx, interval, read)
	return sub
}

func (s *pollSubscription) loop(ctx context.Context, interval time.Duration, read func(context.Context) (uint64, error)) {
	defer close(s.values)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		last    uint64
		hasLast bool
	)
	for {
		v, err := read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.errs <- err
			}
			return
		}
		if !hasLast || v != last {
			last, hasLast = v, true
			select {
			case s.values <- v:
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *pollSubscription) Chan() <-chan uint64 { return s.values }

func (s *pollSubscription) Err() <-chan error { return s.errs }

func (s *pollSubscription) Unsubscribe() { s.once.Do(s.cancel) }
