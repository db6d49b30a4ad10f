package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	SDK "github.com/availproject/avail-go-sdk/sdk"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vedhavyas/go-subkey/v2"
	"github.com/vedhavyas/go-subkey/v2/sr25519"

	"github.com/airchains-network/dualledger-harness/address"
)

// DevPhrase is the well known development mnemonic of substrate dev chains.
const DevPhrase = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"

// AliceURI is the secret URI of the dev chain sudo account.
const AliceURI = DevPhrase + "//Alice"

// Keypair is an sr25519 native ledger keypair together with the secret URI that recreates it.
type Keypair struct {
	uri  string
	pair subkey.KeyPair
}

// FromURI derives a keypair from a secret URI such as "//Alice", a mnemonic with junctions or a
// 0x prefixed hex seed. A bare junction path is applied to the dev phrase.
func FromURI(uri string) (*Keypair, error) {
	if len(uri) > 0 && uri[0] == '/' {
		uri = DevPhrase + uri
	}
	pair, err := SDK.Account.NewKeyPair(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keypair: %w", err)
	}
	return &Keypair{uri: uri, pair: pair}, nil
}

// Alice returns the dev chain administrative keypair.
func Alice() (*Keypair, error) {
	return FromURI(AliceURI)
}

// NewRandom creates a keypair from 32 random seed bytes.
func NewRandom() (*Keypair, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to read seed: %w", err)
	}
	pair, err := sr25519.Scheme{}.FromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create keypair: %w", err)
	}
	return &Keypair{uri: "0x" + hex.EncodeToString(seed), pair: pair}, nil
}

func (k *Keypair) URI() string { return k.uri }

func (k *Keypair) PublicKey() []byte { return k.pair.Public() }

// AccountID returns the public key as a native account id.
func (k *Keypair) AccountID() address.AccountID {
	var id address.AccountID
	copy(id[:], k.pair.Public())
	return id
}

// Address returns the SS58 address in the generic network format.
func (k *Keypair) Address() address.TextAddress {
	return address.TextAddress(k.pair.SS58Address(address.SS58Format))
}

// KeyringPair adapts the keypair to the substrate RPC client's signer.
func (k *Keypair) KeyringPair() signature.KeyringPair {
	return signature.KeyringPair{
		URI:       k.uri,
		Address:   string(k.Address()),
		PublicKey: k.PublicKey(),
	}
}

func (k *Keypair) Sign(msg []byte) ([]byte, error) { return k.pair.Sign(msg) }

func (k *Keypair) Verify(msg, sig []byte) bool { return k.pair.Verify(msg, sig) }

// Wallet is an EVM private key and its address.
type Wallet struct {
	Key     *ecdsa.PrivateKey
	Address address.EvmAddress
}

// NewRandomWallet generates a fresh secp256k1 wallet.
func NewRandomWallet() (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return walletFromKey(key), nil
}

// WalletFromHex loads a wallet from a hex private key, with or without 0x.
func WalletFromHex(privateKey string) (*Wallet, error) {
	if len(privateKey) > 1 && privateKey[:2] == "0x" {
		privateKey = privateKey[2:]
	}
	key, err := crypto.HexToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return walletFromKey(key), nil
}

func walletFromKey(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{Key: key, Address: address.FromCommon(crypto.PubkeyToAddress(key.PublicKey))}
}

// PrivateKeyHex returns the 0x prefixed private key.
func (w *Wallet) PrivateKeyHex() string {
	return "0x" + hex.EncodeToString(crypto.FromECDSA(w.Key))
}

// Mirror returns the native account id that holds this wallet's funds.
func (w *Wallet) Mirror() address.MirroredAccountID {
	return address.EvmToMirroredAccountID(w.Address)
}

// MirrorAddress returns the SS58 address of Mirror.
func (w *Wallet) MirrorAddress() address.TextAddress {
	return address.MustTextAddress(w.Mirror().AccountID())
}

// TransactOpts builds signing options for contract bindings.
func (w *Wallet) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(w.Key, chainID)
}
