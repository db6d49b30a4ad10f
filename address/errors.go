package address

import "fmt"

// FormatError reports a malformed EVM address string.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid evm address %q: %s", e.Input, e.Reason)
}

// DecodeError reports an account id or SS58 address that could not be decoded.
type DecodeError struct {
	Input  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to decode %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to decode %q: %s", e.Input, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }
