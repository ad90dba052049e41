package dirfit

import (
	"fmt"
	"sync"

	"github.com/orizon-lang/suballoc"
	"github.com/orizon-lang/suballoc/config"
)

// registeredStrategy pairs a DirectionStrategy with the semver version
// of its decision contract, so an operator can gate which plugins are
// accepted without inspecting their code.
type registeredStrategy struct {
	strategy DirectionStrategy
	version  string
}

var (
	strategyRegistryMu sync.Mutex
	strategyRegistry   = map[string]registeredStrategy{}
)

func init() {
	// DefaultStrategy is always registered under "default", versioned
	// to match config.New's own MinStrategyVersion default so a fresh
	// Settings value accepts it out of the box.
	RegisterStrategy("default", "1.0.0", DefaultStrategy)
}

// RegisterStrategy makes a named, versioned DirectionStrategy available
// to NewWithRegisteredStrategy. Re-registering a name overwrites the
// previous entry. version must be a valid semantic version; bump it
// whenever Decide's contract changes (the inputs it's given, or how it
// weighs them) so Compatibility.Check can reject stale plugins.
func RegisterStrategy(name, version string, strategy DirectionStrategy) {
	strategyRegistryMu.Lock()
	defer strategyRegistryMu.Unlock()

	strategyRegistry[name] = registeredStrategy{strategy: strategy, version: version}
}

// NewWithRegisteredStrategy opens a directional-fit suballocator using
// the strategy previously passed to RegisterStrategy under name, after
// checking its declared version against compat. A nil compat skips the
// version gate, accepting whatever is registered.
func NewWithRegisteredStrategy(capacityElems int, name string, compat *config.Compatibility, opts ...suballoc.Option) (*Allocator, error) {
	strategyRegistryMu.Lock()
	entry, ok := strategyRegistry[name]
	strategyRegistryMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("dirfit: no strategy registered under name %q", name)
	}

	if compat != nil {
		if err := compat.Check(entry.version); err != nil {
			return nil, fmt.Errorf("dirfit: strategy %q: %w", name, err)
		}
	}

	return NewWithStrategy(capacityElems, entry.strategy, opts...)
}
