package balance

import (
	"fmt"
	"math"
	"math/big"
)

var (
	// TAO is the number of rao (smallest native unit) in one whole token.
	TAO = big.NewInt(1_000_000_000)
	// EVMPerRAO converts native rao into the EVM side's smallest unit.
	EVMPerRAO = big.NewInt(1_000_000_000)
)

// InvalidAmount is returned for negative or fractional token counts.
type InvalidAmount struct {
	Value string
}

func (e *InvalidAmount) Error() string {
	return fmt.Sprintf("invalid token amount %s: must be a non-negative integer", e.Value)
}

// ToleranceExceeded is returned when two balances differ by at least the allowed fee.
type ToleranceExceeded struct {
	A, B, MaxFee *big.Int
}

func (e *ToleranceExceeded) Error() string {
	return fmt.Sprintf("balances %s and %s differ by %s, allowed fee is below %s",
		e.A, e.B, Diff(e.A, e.B), e.MaxFee)
}

// Tao returns count whole tokens expressed in rao.
func Tao(count int64) (*big.Int, error) {
	if count < 0 {
		return nil, &InvalidAmount{Value: fmt.Sprint(count)}
	}
	return new(big.Int).Mul(TAO, big.NewInt(count)), nil
}

// MustTao is Tao for constant inputs.
func MustTao(count int64) *big.Int {
	v, err := Tao(count)
	if err != nil {
		panic(err)
	}
	return v
}

// TaoFromFloat accepts integral float values only, e.g. 1e6.
func TaoFromFloat(count float64) (*big.Int, error) {
	if math.IsNaN(count) || math.IsInf(count, 0) || count < 0 || count != math.Trunc(count) {
		return nil, &InvalidAmount{Value: fmt.Sprint(count)}
	}
	whole, accuracy := big.NewFloat(count).Int(nil)
	if accuracy != big.Exact {
		return nil, &InvalidAmount{Value: fmt.Sprint(count)}
	}
	return whole.Mul(whole, TAO), nil
}

// RaoToEth converts a native amount into EVM units. The factor is exact, no rounding occurs.
func RaoToEth(rao *big.Int) *big.Int {
	return new(big.Int).Mul(rao, EVMPerRAO)
}

// EthToRao converts EVM units back into rao, failing when the amount is not a whole rao.
func EthToRao(wei *big.Int) (*big.Int, error) {
	q, r := new(big.Int).QuoRem(wei, EVMPerRAO, new(big.Int))
	if r.Sign() != 0 {
		return nil, fmt.Errorf("amount %s is not a multiple of %s", wei, EVMPerRAO)
	}
	return q, nil
}

// Diff returns |a - b|.
func Diff(a, b *big.Int) *big.Int {
	d := new(big.Int).Sub(a, b)
	return d.Abs(d)
}

// AssertWithinFeeTolerance fails unless |a - b| < maxFee.
func AssertWithinFeeTolerance(a, b, maxFee *big.Int) error {
	if Diff(a, b).Cmp(maxFee) < 0 {
		return nil
	}
	return &ToleranceExceeded{A: new(big.Int).Set(a), B: new(big.Int).Set(b), MaxFee: new(big.Int).Set(maxFee)}
}
