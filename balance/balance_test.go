package balance

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaoToEthExact(t *testing.T) {
	values := []int64{0, 1, 7, 999_999_999, 1_000_000_000, 123_456_789_012}
	for _, v := range values {
		got := RaoToEth(big.NewInt(v))
		want := new(big.Int).Mul(big.NewInt(v), big.NewInt(1_000_000_000))
		assert.Equal(t, 0, want.Cmp(got), "value %d", v)

		back, err := EthToRao(got)
		require.NoError(t, err)
		assert.Equal(t, 0, back.Cmp(big.NewInt(v)))
	}

	huge, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	want, _ := new(big.Int).SetString("340282366920938463463374607431768211455000000000", 10)
	assert.Equal(t, 0, want.Cmp(RaoToEth(huge)))
}

func TestEthToRaoRejectsDust(t *testing.T) {
	_, err := EthToRao(big.NewInt(1_000_000_001))
	assert.Error(t, err)
}

func TestTao(t *testing.T) {
	v, err := Tao(123)
	require.NoError(t, err)
	assert.Equal(t, "123000000000", v.String())

	_, err = Tao(-1)
	var invalid *InvalidAmount
	require.Error(t, err)
	assert.True(t, errors.As(err, &invalid))
}

func TestTaoFromFloat(t *testing.T) {
	v, err := TaoFromFloat(1e6)
	require.NoError(t, err)
	assert.Equal(t, 0, MustTao(1_000_000).Cmp(v))

	for _, bad := range []float64{0.5, -2, 1.000001} {
		_, err := TaoFromFloat(bad)
		var invalid *InvalidAmount
		require.Error(t, err, "input %v", bad)
		assert.True(t, errors.As(err, &invalid))
	}
}

func TestAssertWithinFeeTolerance(t *testing.T) {
	maxFee := big.NewInt(100)
	assert.NoError(t, AssertWithinFeeTolerance(big.NewInt(1000), big.NewInt(1099), maxFee))
	assert.NoError(t, AssertWithinFeeTolerance(big.NewInt(1099), big.NewInt(1000), maxFee))

	err := AssertWithinFeeTolerance(big.NewInt(1000), big.NewInt(1100), maxFee)
	var exceeded *ToleranceExceeded
	require.Error(t, err)
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, "100", Diff(exceeded.A, exceeded.B).String())
}
