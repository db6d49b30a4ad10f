package scenario

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Scenario is one end-to-end check against a live dual-ledger node.
type Scenario struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Scenario{}
)

// Register adds s to the registry. Registering a name twice panics.
func Register(s Scenario) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[s.Name]; dup {
		panic("scenario: duplicate registration of " + s.Name)
	}
	registry[s.Name] = s
}

// All returns every registered scenario ordered by name.
func All() []Scenario {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Scenario, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Lookup resolves names in the given order. No names selects all scenarios.
func Lookup(names ...string) ([]Scenario, error) {
	if len(names) == 0 {
		return All(), nil
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Scenario, 0, len(names))
	for _, name := range names {
		s, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}
