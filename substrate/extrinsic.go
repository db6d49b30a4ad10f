package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"golang.org/x/crypto/blake2b"

	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// Sign builds call and signs it with signer's next nonce as an immortal extrinsic.
func (c *Client) Sign(ctx context.Context, call Call, signer *keys.Keypair) (types.Extrinsic, error) {
	meta, err := c.Metadata()
	if err != nil {
		return types.Extrinsic{}, err
	}
	built, err := call.Build(meta)
	if err != nil {
		return types.Extrinsic{}, err
	}
	genesis, rv, err := c.chainInfo()
	if err != nil {
		return types.Extrinsic{}, err
	}
	info, err := c.Account(ctx, signer.AccountID())
	if err != nil {
		return types.Extrinsic{}, fmt.Errorf("failed to read signer account: %w", err)
	}

	ext := types.NewExtrinsic(built)
	opts := types.SignatureOptions{
		BlockHash:          genesis,
		Era:                types.ExtrinsicEra{IsMortalEra: false},
		GenesisHash:        genesis,
		Nonce:              types.NewUCompactFromUInt(uint64(info.Nonce)),
		SpecVersion:        rv.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	}
	if err := ext.Sign(signer.KeyringPair(), opts); err != nil {
		return types.Extrinsic{}, fmt.Errorf("failed to sign %s: %w", call, err)
	}
	return ext, nil
}

// SignAndSubmitAndWatch signs call and submits it, returning its status stream and hash.
func (c *Client) SignAndSubmitAndWatch(ctx context.Context, call Call, signer *keys.Keypair) (waiter.StatusSubscription, string, error) {
	ext, err := c.Sign(ctx, call, signer)
	if err != nil {
		return nil, "", err
	}
	hash, err := extrinsicHash(ext)
	if err != nil {
		return nil, "", err
	}
	sub, err := c.api.RPC.Author.SubmitAndWatchExtrinsic(ext)
	if err != nil {
		return nil, "", fmt.Errorf("failed to submit %s: %w", call, err)
	}
	c.log.Debugf("Submitted %s from %s as %s", call, signer.Address(), hash)
	return newStatusSubscription(ctx, sub.Chan(), sub.Err(), sub.Unsubscribe), hash, nil
}

// PaymentInfo returns the partial fee the runtime would charge signer for call.
func (c *Client) PaymentInfo(ctx context.Context, call Call, signer *keys.Keypair) (*big.Int, error) {
	ext, err := c.Sign(ctx, call, signer)
	if err != nil {
		return nil, err
	}
	encoded, err := codec.EncodeToHex(ext)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extrinsic: %w", err)
	}
	var res struct {
		PartialFee json.RawMessage `json:"partialFee"`
	}
	if err := c.api.Client.Call(&res, "payment_queryInfo", encoded); err != nil {
		return nil, fmt.Errorf("failed to query payment info: %w", err)
	}
	return parseFee(res.PartialFee)
}

// parseFee accepts the partial fee either as a JSON number or a decimal/hex string.
func parseFee(raw json.RawMessage) (*big.Int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	fee := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") {
		_, ok = fee.SetString(s[2:], 16)
	} else {
		_, ok = fee.SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid partial fee %q", string(raw))
	}
	return fee, nil
}

func extrinsicHash(ext types.Extrinsic) (string, error) {
	encoded, err := codec.Encode(ext)
	if err != nil {
		return "", fmt.Errorf("failed to encode extrinsic: %w", err)
	}
	sum := blake2b.Sum256(encoded)
	return types.NewHash(sum[:]).Hex(), nil
}

// Operation adapts a signed call to the completion waiter.
func (c *Client) Operation(call Call, signer *keys.Keypair) waiter.Operation {
	return &extrinsicOperation{c: c, call: call, signer: signer}
}

type extrinsicOperation struct {
	c      *Client
	call   Call
	signer *keys.Keypair
}

func (o *extrinsicOperation) Ledger() waiter.Ledger { return waiter.Native }

func (o *extrinsicOperation) Describe() string { return o.call.String() }

func (o *extrinsicOperation) Submit(ctx context.Context) (waiter.StatusSubscription, string, error) {
	return o.c.SignAndSubmitAndWatch(ctx, o.call, o.signer)
}
