package substrate

import (
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)

// Call is an unresolved runtime call. Args may themselves be Calls, which are resolved against
// the same metadata before encoding.
type Call struct {
	Name string
	Args []interface{}
}

// NewCall names a call as "Pallet.call_name".
func NewCall(name string, args ...interface{}) Call {
	return Call{Name: name, Args: args}
}

// Sudo wraps call in Sudo.sudo.
func Sudo(call Call) Call {
	return NewCall("Sudo.sudo", call)
}

// IsSudo reports whether c is a Sudo.sudo envelope.
func (c Call) IsSudo() bool {
	return c.Name == "Sudo.sudo"
}

// Inner returns the wrapped call of a Sudo envelope.
func (c Call) Inner() (Call, bool) {
	if !c.IsSudo() || len(c.Args) != 1 {
		return Call{}, false
	}
	inner, ok := c.Args[0].(Call)
	return inner, ok
}

func (c Call) String() string {
	if inner, ok := c.Inner(); ok {
		return "sudo(" + inner.String() + ")"
	}
	return c.Name
}

// Pallet returns the pallet part of the call name.
func (c Call) Pallet() string {
	if i := strings.IndexByte(c.Name, '.'); i >= 0 {
		return c.Name[:i]
	}
	return c.Name
}

// Build resolves c against meta.
func (c Call) Build(meta *types.Metadata) (types.Call, error) {
	args := make([]interface{}, len(c.Args))
	for i, arg := range c.Args {
		if nested, ok := arg.(Call); ok {
			built, err := nested.Build(meta)
			if err != nil {
				return types.Call{}, err
			}
			args[i] = built
			continue
		}
		args[i] = arg
	}
	call, err := types.NewCall(meta, c.Name, args...)
	if err != nil {
		return types.Call{}, fmt.Errorf("failed to build call %s: %w", c.Name, err)
	}
	return call, nil
}
