package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every wait. Reaching it resolves the wait without an error.
const DefaultTimeout = 2000 * time.Millisecond

// ErrOperationFailed wraps the error reported by a status stream.
var ErrOperationFailed = errors.New("operation failed")

// Recorder receives a copy of an operation on submission and on resolution.
type Recorder interface {
	RecordOperation(op PendingOperation) error
}

// Waiter races a status stream against a nonce increase and a timeout.
type Waiter struct {
	timeout   time.Duration
	terminal  map[StatusKind]bool
	recorders []Recorder
	log       *logrus.Logger
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithTerminal replaces the set of status kinds that complete channel A.
func WithTerminal(kinds ...StatusKind) Option {
	return func(w *Waiter) {
		if len(kinds) == 0 {
			return
		}
		w.terminal = make(map[StatusKind]bool, len(kinds))
		for _, k := range kinds {
			w.terminal[k] = true
		}
	}
}

// WithRecorder adds a recorder notified of every submission and resolution.
func WithRecorder(r Recorder) Option {
	return func(w *Waiter) {
		if r != nil {
			w.recorders = append(w.recorders, r)
		}
	}
}

// New creates a Waiter that treats Finalized as the terminal success status.
func New(log *logrus.Logger, opts ...Option) *Waiter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	w := &Waiter{
		timeout:  DefaultTimeout,
		terminal: map[StatusKind]bool{Finalized: true},
		log:      log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Timeout returns the configured wait bound.
func (w *Waiter) Timeout() time.Duration { return w.timeout }

// Wait submits op and blocks until it is finalized, the submitter's nonce increases, the stream
// reports an error, or the timeout fires. A timeout returns StateTimedOut with a nil error; the
// caller must verify the expected post-condition itself. nonces may be nil.
func (w *Waiter) Wait(ctx context.Context, op Operation, nonces NonceSource) (*PendingOperation, error) {
	pending := &PendingOperation{
		ID:          uuid.NewString(),
		Ledger:      op.Ledger(),
		Description: op.Describe(),
		State:       StateSubmitted,
	}
	log := w.log.WithFields(logrus.Fields{"op": pending.ID, "ledger": pending.Ledger, "call": pending.Description})

	var (
		initialNonce uint64
		nonceCh      <-chan uint64
		nonceErrCh   <-chan error
	)
	if nonces != nil {
		n, err := nonces.Nonce(ctx)
		if err != nil {
			log.Warnf("Failed to read nonce before submission, side effect channel disabled: %v", err)
		} else if sub, err := nonces.WatchNonce(ctx); err != nil {
			log.Warnf("Failed to watch nonce, side effect channel disabled: %v", err)
		} else {
			defer sub.Unsubscribe()
			initialNonce = n
			nonceCh, nonceErrCh = sub.Chan(), sub.Err()
		}
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	pending.SubmittedAt = time.Now()
	statusSub, ref, err := op.Submit(ctx)
	if err != nil {
		pending.resolve(StateFailed, err)
		w.record(pending)
		return pending, fmt.Errorf("failed to submit %s: %w", pending.Description, err)
	}
	defer statusSub.Unsubscribe()
	pending.Ref = ref
	w.record(pending)
	log.Debugf("Submitted %s", ref)

	statusCh, statusErrCh := statusSub.Chan(), statusSub.Err()
	for !pending.State.Terminal() {
		select {
		case <-ctx.Done():
			pending.resolve(StateFailed, ctx.Err())
			w.record(pending)
			return pending, ctx.Err()

		case status, ok := <-statusCh:
			if !ok {
				log.Debug("Status stream completed without a terminal status")
				statusCh, statusErrCh = nil, nil
				continue
			}
			pending.Events = append(pending.Events, status)
			log.Debugf("Status event: %s", status.Kind)
			if status.Kind.IsError() {
				err := fmt.Errorf("%w: %s %s", ErrOperationFailed, status.Kind, status.Detail)
				pending.resolve(StateFailed, err)
				w.record(pending)
				return pending, err
			}
			if w.terminal[status.Kind] {
				pending.resolve(StateFinalized, nil)
				log.Infof("%s reached %s in block %s", pending.Description, status.Kind, status.Block)
			}

		case err, ok := <-statusErrCh:
			if !ok {
				statusErrCh = nil
				continue
			}
			err = fmt.Errorf("%w: %v", ErrOperationFailed, err)
			pending.resolve(StateFailed, err)
			w.record(pending)
			return pending, err

		case nonce, ok := <-nonceCh:
			if !ok {
				nonceCh, nonceErrCh = nil, nil
				continue
			}
			if nonce > initialNonce {
				pending.resolve(StateSideEffectObserved, nil)
				log.Infof("%s observed nonce %d -> %d", pending.Description, initialNonce, nonce)
			}

		case err, ok := <-nonceErrCh:
			if ok {
				log.Warnf("Nonce watch failed, side effect channel disabled: %v", err)
			}
			nonceCh, nonceErrCh = nil, nil

		case <-timer.C:
			pending.resolve(StateTimedOut, nil)
			log.Warnf("%s not confirmed within %s, continuing", pending.Description, w.timeout)
		}
	}

	w.record(pending)
	return pending, nil
}

// WaitForBlocks resolves once the best block advanced by more than n blocks or the timeout fired.
func (w *Waiter) WaitForBlocks(ctx context.Context, heads HeadSource, n uint64) (State, error) {
	start, err := heads.BlockNumber(ctx)
	if err != nil {
		return StateFailed, fmt.Errorf("failed to read block number: %w", err)
	}
	sub, err := heads.WatchHeads(ctx)
	if err != nil {
		return StateFailed, fmt.Errorf("failed to watch heads: %w", err)
	}
	defer sub.Unsubscribe()

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	headCh, errCh := sub.Chan(), sub.Err()
	for {
		select {
		case <-ctx.Done():
			return StateFailed, ctx.Err()
		case number, ok := <-headCh:
			if !ok {
				headCh = nil
				continue
			}
			if number > start+n {
				return StateFinalized, nil
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			return StateFailed, fmt.Errorf("head subscription failed: %w", err)
		case <-timer.C:
			w.log.Warnf("Block %d not reached within %s, continuing", start+n+1, w.timeout)
			return StateTimedOut, nil
		}
	}
}

func (w *Waiter) record(p *PendingOperation) {
	for _, r := range w.recorders {
		if err := r.RecordOperation(p.copy()); err != nil {
			w.log.Warnf("Failed to record operation %s: %v", p.ID, err)
		}
	}
}
