package model

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Registry records the schema of every model type the engine manages.
// A type is registered once; later registrations are rejected and the
// first one stays in effect.
type Registry struct {
	mu      sync.RWMutex
	schemas map[reflect.Type]any
	tables  map[reflect.Type]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[reflect.Type]any),
		tables:  make(map[reflect.Type]string),
	}
}

// Register adds the schema for M.
func Register[M any](r *Registry, s *Schema[M]) error {
	t := reflect.TypeFor[M]()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[t]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, t)
	}
	r.schemas[t] = s
	r.tables[t] = s.TableName()
	return nil
}

// SchemaOf returns the schema registered for M.
func SchemaOf[M any](r *Registry) (*Schema[M], error) {
	t := reflect.TypeFor[M]()
	r.mu.RLock()
	s, ok := r.schemas[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredModel, t)
	}
	return s.(*Schema[M]), nil
}

// Tables returns the registered table names, sorted.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tables))
	for _, name := range r.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
