package address

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"
)

const (
	// SS58Format is the generic substrate network format used by the local and dev chains.
	SS58Format uint16 = 42

	mirrorPrefix = "evm:"
)

// EvmAddress is a 20 byte account address on the EVM side.
type EvmAddress [common.AddressLength]byte

// AccountID is a 32 byte native ledger account id (an sr25519 public key for native accounts).
type AccountID [32]byte

// MirroredAccountID is the native account id that holds the funds of an EVM address.
// It is produced only by EvmToMirroredAccountID and cannot be turned back into the EVM address.
type MirroredAccountID AccountID

// EvmMirrorAddress is the EVM address associated with a native account id by truncation.
// It is produced only by MirroredAccountIDToEvmAddress.
type EvmMirrorAddress [common.AddressLength]byte

// TextAddress is the SS58 rendering of an AccountID.
type TextAddress string

func (a EvmAddress) Common() common.Address { return common.Address(a) }

// Hex returns the lower-case 0x form.
func (a EvmAddress) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a EvmAddress) String() string { return a.Hex() }

func (id AccountID) Bytes() []byte { return id[:] }

func (id AccountID) Hex() string { return "0x" + hex.EncodeToString(id[:]) }

// AccountID exposes the mirrored id as a plain account id for storage keys and transfers.
func (m MirroredAccountID) AccountID() AccountID { return AccountID(m) }

func (m MirroredAccountID) Bytes() []byte { return m[:] }

func (m MirroredAccountID) Hex() string { return AccountID(m).Hex() }

func (m EvmMirrorAddress) Common() common.Address { return common.Address(m) }

func (m EvmMirrorAddress) Hex() string { return common.Address(m).Hex() }

// AccountIDFromBytes copies a 32 byte slice into an AccountID.
func AccountIDFromBytes(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != len(id) {
		return id, &DecodeError{Input: hex.EncodeToString(b), Reason: "account id must be 32 bytes"}
	}
	copy(id[:], b)
	return id, nil
}

// EvmToMirroredAccountID derives the native account that backs an EVM address:
// blake2b-256("evm:" || addr).
func EvmToMirroredAccountID(addr EvmAddress) MirroredAccountID {
	data := make([]byte, 0, len(mirrorPrefix)+len(addr))
	data = append(data, mirrorPrefix...)
	data = append(data, addr[:]...)
	return MirroredAccountID(blake2b.Sum256(data))
}

// AccountIDToTextAddress renders id as an SS58 address for the given network format. Formats above
// MaxSS58Format fail with a *NetworkFormatError.
func AccountIDToTextAddress(id AccountID, format uint16) (TextAddress, error) {
	text, err := ss58Encode(id, format)
	if err != nil {
		return "", err
	}
	return TextAddress(text), nil
}

// MustTextAddress is AccountIDToTextAddress with the default format, panicking on failure.
func MustTextAddress(id AccountID) TextAddress {
	text, err := AccountIDToTextAddress(id, SS58Format)
	if err != nil {
		panic(err)
	}
	return text
}

// TextAddressToAccountID decodes an SS58 address, verifying alphabet and checksum.
func TextAddressToAccountID(addr TextAddress) (AccountID, error) {
	_, id, err := ss58Decode(string(addr))
	if err != nil {
		return AccountID{}, &DecodeError{Input: string(addr), Reason: "ss58 decode", Err: err}
	}
	return id, nil
}

// MirroredAccountIDToEvmAddress takes the first 20 bytes of id verbatim.
// This is not the inverse of EvmToMirroredAccountID.
func MirroredAccountIDToEvmAddress(id AccountID) EvmMirrorAddress {
	var out EvmMirrorAddress
	copy(out[:], id[:len(out)])
	return out
}

// TextAddressToEvmMirror decodes addr and truncates it to its EVM mirror address.
func TextAddressToEvmMirror(addr TextAddress) (EvmMirrorAddress, error) {
	id, err := TextAddressToAccountID(addr)
	if err != nil {
		return EvmMirrorAddress{}, err
	}
	return MirroredAccountIDToEvmAddress(id), nil
}

// NormalizeAddressString accepts a 40 hex character address with or without 0x.
func NormalizeAddressString(s string) (EvmAddress, error) {
	trimmed := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		trimmed = s[2:]
	}
	if len(trimmed) != 2*common.AddressLength {
		return EvmAddress{}, &FormatError{Input: s, Reason: "expected 40 hex characters"}
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return EvmAddress{}, &FormatError{Input: s, Reason: "invalid hex"}
	}
	var addr EvmAddress
	copy(addr[:], raw)
	return addr, nil
}

// ParseEvmAddress is NormalizeAddressString.
func ParseEvmAddress(s string) (EvmAddress, error) { return NormalizeAddressString(s) }

// FromCommon converts a go-ethereum address.
func FromCommon(a common.Address) EvmAddress { return EvmAddress(a) }
