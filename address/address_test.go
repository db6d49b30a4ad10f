package address

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomEvmAddress(t *testing.T) EvmAddress {
	var a EvmAddress
	_, err := rand.Read(a[:])
	require.NoError(t, err)
	return a
}

func randomAccountID(t *testing.T) AccountID {
	var id AccountID
	_, err := rand.Read(id[:])
	require.NoError(t, err)
	return id
}

func TestEvmToMirroredAccountIDDeterministic(t *testing.T) {
	for i := 0; i < 64; i++ {
		a := randomEvmAddress(t)
		first := EvmToMirroredAccountID(a)
		second := EvmToMirroredAccountID(a)
		assert.Equal(t, first, second)
		assert.Len(t, first.Bytes(), 32)
	}

	var zero EvmAddress
	assert.NotEqual(t, MirroredAccountID{}, EvmToMirroredAccountID(zero))
}

func TestEvmToMirroredAccountIDDistinctInputs(t *testing.T) {
	a := randomEvmAddress(t)
	b := a
	b[19] ^= 0x01
	assert.NotEqual(t, EvmToMirroredAccountID(a), EvmToMirroredAccountID(b))
}

func TestTextAddressRoundTrip(t *testing.T) {
	formats := []uint16{0, 2, 42, 63, 64, 255, 2000, MaxSS58Format}
	for _, f := range formats {
		for i := 0; i < 16; i++ {
			id := randomAccountID(t)
			text, err := AccountIDToTextAddress(id, f)
			require.NoError(t, err)
			decoded, err := TextAddressToAccountID(text)
			require.NoError(t, err)
			assert.Equal(t, id, decoded, "format %d", f)
		}
	}
}

func TestTextAddressKnownVector(t *testing.T) {
	// //Alice on the dev phrase.
	id, err := AccountIDFromBytes(mustHex(t, "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"))
	require.NoError(t, err)
	text, err := AccountIDToTextAddress(id, SS58Format)
	require.NoError(t, err)
	assert.Equal(t, TextAddress("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"), text)

	for format, want := range map[uint16]TextAddress{
		64:            "cEaNSpz4PxFcZ7nT1VEKrKewH67rfx6MfcM6yKojyyPz7qaqp",
		255:           "yGHXkYLYqxijLKKfd9Q2CB9shRVu8rPNBS53wvwGTutYg4zTg",
		2000:          "t6r3Cq4hubc47cAcV3dyuyqmTtLkh9PkBMNXvckFuPo7MVN1q",
		MaxSS58Format: "yNa8JpqfFB3q8A29rCwSgxvdU94ufJw2yKKxDgznS5m1PoFvn",
	} {
		text, err := AccountIDToTextAddress(id, format)
		require.NoError(t, err)
		assert.Equal(t, want, text, "format %d", format)

		decodedFormat, decoded, err := ss58Decode(string(want))
		require.NoError(t, err)
		assert.Equal(t, format, decodedFormat)
		assert.Equal(t, id, decoded)
	}
}

func TestTextAddressRejectsFormatOutOfRange(t *testing.T) {
	id := randomAccountID(t)
	for _, f := range []uint16{MaxSS58Format + 1, 0xFFFF} {
		_, err := AccountIDToTextAddress(id, f)
		var formatErr *NetworkFormatError
		require.True(t, errors.As(err, &formatErr), "format %d", f)
		assert.Equal(t, f, formatErr.Format)
	}
}

func TestEvmToMirroredAccountIDKnownVector(t *testing.T) {
	addr, err := NormalizeAddressString("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	require.NoError(t, err)
	mirrored := EvmToMirroredAccountID(addr)
	assert.Equal(t, "0xc4518fa0ed143e016e4a1410193704924b890de8f854b94c7a6037651ec65dd0", mirrored.Hex())

	text, err := AccountIDToTextAddress(mirrored.AccountID(), SS58Format)
	require.NoError(t, err)
	assert.Equal(t, TextAddress("5GW7UHZ9tLocJUaMXFWkr48QHgVoq5tVR1az62mknFacM3cu"), text)
}

func TestTextAddressToAccountIDRejectsGarbage(t *testing.T) {
	cases := []TextAddress{
		"not-base58-0OIl",
		"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ",
		// two byte prefix followed by a bare checksum
		"NZoQ",
		"",
		"1",
	}
	for _, c := range cases {
		var err error
		require.NotPanics(t, func() { _, err = TextAddressToAccountID(c) }, "input %q", c)
		require.Error(t, err, "input %q", c)
		var decodeErr *DecodeError
		assert.True(t, errors.As(err, &decodeErr))
	}
}

func TestMirrorMappingsAreNotInverses(t *testing.T) {
	mismatches := 0
	for i := 0; i < 32; i++ {
		a := randomEvmAddress(t)
		back := MirroredAccountIDToEvmAddress(EvmToMirroredAccountID(a).AccountID())
		if EvmAddress(back) != a {
			mismatches++
		}
	}
	assert.Equal(t, 32, mismatches)
}

func TestMirroredAccountIDToEvmAddressTruncates(t *testing.T) {
	id := randomAccountID(t)
	mirror := MirroredAccountIDToEvmAddress(id)
	assert.Equal(t, id[:20], mirror[:])

	text, err := AccountIDToTextAddress(id, SS58Format)
	require.NoError(t, err)
	fromText, err := TextAddressToEvmMirror(text)
	require.NoError(t, err)
	assert.Equal(t, mirror, fromText)
}

func TestNormalizeAddressString(t *testing.T) {
	raw := "c0ffee254729296a45a3885639ac7e10f9d54979"
	withPrefix, err := NormalizeAddressString("0x" + raw)
	require.NoError(t, err)
	without, err := NormalizeAddressString(raw)
	require.NoError(t, err)
	assert.Equal(t, withPrefix, without)
	assert.Equal(t, "0x"+raw, lower(withPrefix.Hex()))

	for _, bad := range []string{"", "0x", "0x1234", raw + "00", "0x" + raw[:38] + "zz", "0x0X" + raw[:38], "0X0x" + raw[:38], "0x0x" + raw} {
		_, err := NormalizeAddressString(bad)
		var formatErr *FormatError
		require.Error(t, err, "input %q", bad)
		assert.True(t, errors.As(err, &formatErr))
	}
}
