package scenario

import (
	"bytes"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"golang.org/x/crypto/blake2b"

	"github.com/airchains-network/dualledger-harness/address"
)

// Weights is one weight-setting payload of a neuron.
type Weights struct {
	UIDs       []uint16
	Values     []uint16
	Salt       []uint16
	VersionKey uint64
}

// EncodeCommit returns the SCALE encoding of (account, netuid, uids, values, salt, versionKey),
// the preimage of a weights commit.
func (w Weights) EncodeCommit(account address.AccountID, netuid uint16) ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if err := enc.Write(account[:]); err != nil {
		return nil, err
	}
	if err := enc.Encode(netuid); err != nil {
		return nil, err
	}
	for _, v := range [][]uint16{w.UIDs, w.Values, w.Salt} {
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("failed to encode weights: %w", err)
		}
	}
	if err := enc.Encode(w.VersionKey); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CommitHash is the blake2b-256 digest committed before weights are revealed.
func (w Weights) CommitHash(account address.AccountID, netuid uint16) ([32]byte, error) {
	data, err := w.EncodeCommit(account, netuid)
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(data), nil
}
