package suballoc

import "sync"

// registry is the process-wide buffer base pointer -> Suballocator map
// (spec.md §3, §5, §9). It is the only shared mutable state in this
// library; every other piece of allocator state is single-owner. A
// sync.Map is sufficient here since entries churn only at
// construct/dispose time, not per Rent/Return call, exactly the
// read-mostly access pattern sync.Map is built for.
var registry sync.Map // uintptr -> Suballocator

// Register associates base with s, failing with ErrRegistryConflict if
// base is already registered to a different, still-live suballocator.
func Register(base uintptr, s Suballocator) error {
	if actual, loaded := registry.LoadOrStore(base, s); loaded && actual.(Suballocator) != s {
		return registryConflict(base)
	}

	return nil
}

// Deregister removes base's registry entry, if any.
func Deregister(base uintptr) {
	registry.Delete(base)
}

// Lookup returns the suballocator registered for base, if any.
func Lookup(base uintptr) (Suballocator, bool) {
	v, ok := registry.Load(base)
	if !ok {
		return nil, false
	}

	return v.(Suballocator), true
}
