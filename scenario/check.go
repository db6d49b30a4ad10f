package scenario

import (
	"fmt"
	"math/big"
)

func expectEqual[T comparable](what string, want, got T) error {
	if want != got {
		return fmt.Errorf("%s: want %v, got %v", what, want, got)
	}
	return nil
}

func expectBig(what string, want, got *big.Int) error {
	if want.Cmp(got) != 0 {
		return fmt.Errorf("%s: want %s, got %s", what, want, got)
	}
	return nil
}

// firstBig extracts a uint256 result from a contract call.
func firstBig(out []interface{}) (*big.Int, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("empty call result")
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", out[0])
	}
	return v, nil
}
