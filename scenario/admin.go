package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/airchains-network/dualledger-harness/balance"
	"github.com/airchains-network/dualledger-harness/subtensor"
)

// readSlack bounds the storage reads around a single privileged update.
const readSlack = 5 * time.Second

func init() {
	Register(Scenario{
		Name:        "admin.idempotence",
		Description: "repeating a privileged update with the current value submits nothing",
		Run:         adminIdempotence,
	})
	Register(Scenario{
		Name:        "admin.invalid-signer",
		Description: "a privileged update by a non-admin signer leaves state unchanged",
		Run:         adminInvalidSigner,
	})
}

func nextTempo(t uint16) uint16 {
	if t == math.MaxUint16 {
		return t - 1
	}
	return t + 1
}

func adminIdempotence(ctx context.Context, e *Env) error {
	subnet, err := e.CreateSubnet(ctx)
	if err != nil {
		return err
	}
	tempo, err := subtensor.Tempo(ctx, e.Ledger, subnet.NetUID)
	if err != nil {
		return err
	}
	want := nextTempo(tempo)
	if err := e.Admin.SetTempo(ctx, subnet.NetUID, want); err != nil {
		return err
	}
	before, err := e.Submissions()
	if err != nil {
		return err
	}
	if err := e.Admin.SetTempo(ctx, subnet.NetUID, want); err != nil {
		return err
	}

	kp, err := e.FreshKeypair(ctx, 7)
	if err != nil {
		return err
	}
	mid, err := e.Submissions()
	if err != nil {
		return err
	}
	if err := e.Admin.ForceSetBalance(ctx, kp.AccountID(), balance.MustTao(7)); err != nil {
		return err
	}
	after, err := e.Submissions()
	if err != nil {
		return err
	}
	// FreshKeypair submits exactly one funding call between the two repeated updates.
	if err := expectEqual("submissions for repeated tempo", before+1, mid); err != nil {
		return err
	}
	if err := expectEqual("submissions for repeated balance", mid, after); err != nil {
		return err
	}
	got, err := subtensor.Tempo(ctx, e.Ledger, subnet.NetUID)
	if err != nil {
		return err
	}
	return expectEqual("tempo", want, got)
}

func adminInvalidSigner(ctx context.Context, e *Env) error {
	subnet, err := e.CreateSubnet(ctx)
	if err != nil {
		return err
	}
	tempo, err := subtensor.Tempo(ctx, e.Ledger, subnet.NetUID)
	if err != nil {
		return err
	}
	outsider, err := e.FreshKeypair(ctx, 10)
	if err != nil {
		return err
	}

	start := time.Now()
	err = e.Admin.As(outsider).SetTempo(ctx, subnet.NetUID, nextTempo(tempo))
	elapsed := time.Since(start)
	if !errors.Is(err, subtensor.ErrValueMismatch) {
		return fmt.Errorf("tempo update by %s: want value mismatch, got %v", outsider.Address(), err)
	}
	if limit := e.Config.Timeout() + readSlack; elapsed > limit {
		return fmt.Errorf("rejected update took %s, limit %s", elapsed, limit)
	}

	got, err := subtensor.Tempo(ctx, e.Ledger, subnet.NetUID)
	if err != nil {
		return err
	}
	return expectEqual("tempo after rejected update", tempo, got)
}
