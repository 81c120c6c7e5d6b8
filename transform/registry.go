package transform

import (
	"sort"
	"sync"
)

// The transformer registry is populated at init time by the per-type files
// in this package. Lookups are read-mostly; the mutex exists because tests
// and future plugins may register concurrently.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Transformer)
)

// Resource types that are published as-is for STU3 and intentionally never
// run through a transformer: terminology and conformance documents.
var neverConverted = map[string]bool{
	"ValueSet":            true,
	"StructureDefinition": true,
	"ImplementationGuide": true,
	"Parameters":          true,
	"SearchParameter":     true,
}

// Register adds a transformer to the global registry. It panics on an empty
// resource type or a duplicate registration; both are programming errors
// since registration happens from init functions.
func Register(t Transformer) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := t.ResourceType()
	if name == "" {
		panic("transform: Register called with empty resource type")
	}
	if _, dup := registry[name]; dup {
		panic("transform: duplicate transformer registered for " + name)
	}
	registry[name] = t
}

// Lookup returns the transformer registered for a resource type.
func Lookup(resourceType string) (Transformer, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := registry[resourceType]
	return t, ok
}

// Types returns the registered resource types in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// SkippedByDesign reports whether a resource type is excluded from
// conversion on purpose rather than simply missing a transformer.
func SkippedByDesign(resourceType string) bool {
	return neverConverted[resourceType]
}
