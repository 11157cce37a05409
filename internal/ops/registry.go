package ops

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[string]Operation)
	mu       sync.RWMutex
)

// Register adds an operation to the registry. Built-in operations register
// themselves from init() in the actions package.
func Register(op Operation) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[op.ID()]; exists {
		panic(fmt.Sprintf("operation %s already registered", op.ID()))
	}
	registry[op.ID()] = op
}

// List returns all registered operations sorted by ID.
func List() []Operation {
	mu.RLock()
	defer mu.RUnlock()
	var out []Operation
	for _, op := range registry {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Resolve looks up one operation by ID.
func Resolve(id string) (Operation, error) {
	mu.RLock()
	defer mu.RUnlock()
	op, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("operation not found: %s", id)
	}
	return op, nil
}
