package capability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Definition describes a capability that components may check against a scope.
type Definition struct {
	ID          string
	Component   string
	Description string
	DependsOn   []string
}

type registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
}

var globalRegistry = &registry{
	definitions: make(map[string]*Definition),
}

var (
	errNilDefinition = errors.New("capability: nil definition")
	errEmptyID       = errors.New("capability: id is required")
	errDuplicateID   = errors.New("capability: already registered")

	// ErrUnknown indicates a capability lookup failed because it has not been registered.
	ErrUnknown = errors.New("capability: unknown capability")
)

// Register adds a capability definition to the global registry.
func Register(def *Definition) error {
	if def == nil {
		return errNilDefinition
	}

	id := strings.TrimSpace(def.ID)
	if id == "" {
		return errEmptyID
	}

	cp := *def
	cp.ID = id
	cp.Component = strings.TrimSpace(cp.Component)
	cp.DependsOn = append([]string(nil), def.DependsOn...)

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.definitions[id]; exists {
		return fmt.Errorf("%w: %s", errDuplicateID, id)
	}

	globalRegistry.definitions[id] = &cp
	return nil
}

// Get returns a copy of the capability definition when registered.
func Get(id string) (*Definition, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	def, ok := globalRegistry.definitions[id]
	if !ok {
		return nil, false
	}
	cp := *def
	cp.DependsOn = append([]string(nil), def.DependsOn...)
	return &cp, true
}

// All returns the registered capability ids in sorted order.
func All() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	ids := make([]string, 0, len(globalRegistry.definitions))
	for id := range globalRegistry.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
