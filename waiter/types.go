package waiter

import (
	"context"
	"time"
)

// Ledger identifies which side of the system an operation was submitted to.
type Ledger string

const (
	Native Ledger = "native"
	EVM    Ledger = "evm"
)

// StatusKind is a status event emitted by a ledger for a submitted operation.
type StatusKind int

const (
	Future StatusKind = iota
	Ready
	Broadcast
	InBlock
	BestBlock
	Finalized
	Retracted
	FinalityTimeout
	Usurped
	Dropped
	Invalid
)

var statusNames = map[StatusKind]string{
	Future:          "future",
	Ready:           "ready",
	Broadcast:       "broadcast",
	InBlock:         "inBlock",
	BestBlock:       "bestBlock",
	Finalized:       "finalized",
	Retracted:       "retracted",
	FinalityTimeout: "finalityTimeout",
	Usurped:         "usurped",
	Dropped:         "dropped",
	Invalid:         "invalid",
}

func (k StatusKind) String() string {
	if name, ok := statusNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsError reports whether the status means the operation will never be included.
func (k StatusKind) IsError() bool {
	return k == Usurped || k == Dropped || k == Invalid
}

// Status is one event of an operation's status stream.
type Status struct {
	Kind   StatusKind `json:"kind"`
	Block  string     `json:"block,omitempty"`
	Detail string     `json:"detail,omitempty"`
}

// StatusSubscription is a lazy, non-restartable stream of status events.
// Chan is closed when the stream completes.
type StatusSubscription interface {
	Chan() <-chan Status
	Err() <-chan error
	Unsubscribe()
}

// CounterSubscription streams observed values of a monotonic counter such as an account nonce
// or a block number.
type CounterSubscription interface {
	Chan() <-chan uint64
	Err() <-chan error
	Unsubscribe()
}

// Operation is a mutation that has not been submitted yet.
type Operation interface {
	Ledger() Ledger
	Describe() string
	// Submit broadcasts the operation and returns its status stream and its ledger reference
	// (transaction hash).
	Submit(ctx context.Context) (StatusSubscription, string, error)
}

// NonceSource reads and watches the nonce of the account submitting an operation.
type NonceSource interface {
	Nonce(ctx context.Context) (uint64, error)
	WatchNonce(ctx context.Context) (CounterSubscription, error)
}

// HeadSource reads and watches the best block number.
type HeadSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	WatchHeads(ctx context.Context) (CounterSubscription, error)
}

// State is the lifecycle state of a PendingOperation.
type State string

const (
	StateSubmitted          State = "submitted"
	StateFinalized          State = "finalized"
	StateSideEffectObserved State = "side_effect_observed"
	StateFailed             State = "failed"
	StateTimedOut           State = "timed_out"
)

// Terminal reports whether s ends the lifecycle.
func (s State) Terminal() bool {
	return s != StateSubmitted && s != ""
}

// PendingOperation tracks one submitted operation until its first terminal state.
type PendingOperation struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id,omitempty"`
	Ledger      Ledger    `json:"ledger"`
	Description string    `json:"description"`
	Ref         string    `json:"ref,omitempty"`
	State       State     `json:"state"`
	Events      []Status  `json:"events,omitempty"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	ResolvedAt  time.Time `json:"resolved_at,omitempty"`
}

// resolve moves the operation into a terminal state. Only the first call has an effect.
func (p *PendingOperation) resolve(state State, err error) bool {
	if p.State.Terminal() {
		return false
	}
	p.State = state
	p.ResolvedAt = time.Now()
	if err != nil {
		p.Error = err.Error()
	}
	return true
}

func (p *PendingOperation) copy() PendingOperation {
	out := *p
	out.Events = append([]Status(nil), p.Events...)
	return out
}
