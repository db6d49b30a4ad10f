package address

import (
	"bytes"
	"fmt"

	"github.com/decred/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// MaxSS58Format is the largest network format representable in a two byte prefix.
	MaxSS58Format uint16 = 16383

	ss58ChecksumLen = 2
)

var ss58Preimage = []byte("SS58PRE")

// NetworkFormatError reports a network format outside the SS58 prefix range.
type NetworkFormatError struct {
	Format uint16
}

func (e *NetworkFormatError) Error() string {
	return fmt.Sprintf("ss58 format %d out of range, max %d", e.Format, MaxSS58Format)
}

func ss58Checksum(body []byte) []byte {
	h := blake2b.Sum512(append(append([]byte{}, ss58Preimage...), body...))
	return h[:ss58ChecksumLen]
}

func ss58Prefix(format uint16) ([]byte, error) {
	switch {
	case format < 64:
		return []byte{byte(format)}, nil
	case format <= MaxSS58Format:
		first := byte((format&0xFC)>>2) | 0x40
		second := byte(format>>8) | byte(format&0x03)<<6
		return []byte{first, second}, nil
	default:
		return nil, &NetworkFormatError{Format: format}
	}
}

// ss58Encode renders a 32 byte account id under format.
func ss58Encode(id AccountID, format uint16) (string, error) {
	prefix, err := ss58Prefix(format)
	if err != nil {
		return "", err
	}
	body := append(prefix, id[:]...)
	return base58.Encode(append(body, ss58Checksum(body)...)), nil
}

// ss58Decode parses text into its network format and account id. The payload length is
// checked against the prefix before anything is sliced.
func ss58Decode(text string) (uint16, AccountID, error) {
	var id AccountID
	data := base58.Decode(text)
	if len(data) == 0 {
		return 0, id, fmt.Errorf("not base58")
	}

	var (
		format    uint16
		prefixLen int
	)
	switch {
	case data[0] < 64:
		format, prefixLen = uint16(data[0]), 1
	case data[0] < 128:
		if len(data) < 2 {
			return 0, id, fmt.Errorf("truncated prefix")
		}
		lower := data[0]<<2 | data[1]>>6
		upper := data[1] & 0x3F
		format, prefixLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return 0, id, fmt.Errorf("invalid prefix byte %d", data[0])
	}

	if want := prefixLen + len(id) + ss58ChecksumLen; len(data) != want {
		return 0, id, fmt.Errorf("payload is %d bytes, want %d", len(data), want)
	}
	body, checksum := data[:len(data)-ss58ChecksumLen], data[len(data)-ss58ChecksumLen:]
	if !bytes.Equal(ss58Checksum(body), checksum) {
		return 0, id, fmt.Errorf("checksum mismatch")
	}
	copy(id[:], body[prefixLen:])
	return format, id, nil
}
