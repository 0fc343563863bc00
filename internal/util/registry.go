// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"sort"
	"strings"
	"sync"

	"github.com/extsign/extsign/internal/errs"
)

// Registry is a thread-safe name-to-value table with sorted iteration.
// kind names what is registered ("platform", "digest") in messages.
type Registry[V any] struct {
	mu    sync.RWMutex
	kind  string
	items map[string]V
}

// NewRegistry creates an empty registry.
func NewRegistry[V any](kind string) *Registry[V] {
	return &Registry[V]{kind: kind, items: make(map[string]V)}
}

// Register stores value under name.
// Panics if name is already registered.
func (r *Registry[V]) Register(name string, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[name]; exists {
		panic("duplicate " + r.kind + " registration: " + name)
	}
	r.items[name] = value
}

// Get retrieves a value by name.
func (r *Registry[V]) Get(name string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[name]
	return v, ok
}

// Lookup is Get with an ErrInvalidInput that lists the known names.
func (r *Registry[V]) Lookup(name string) (V, error) {
	if v, ok := r.Get(name); ok {
		return v, nil
	}
	var zero V
	return zero, errs.New(errs.ErrInvalidInput, "unknown %s %q (supported: %s)", r.kind, name, strings.Join(r.Names(), ", "))
}

// Names returns all registered names, sorted alphabetically.
func (r *Registry[V]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for k := range r.items {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Values returns all values, sorted by name.
func (r *Registry[V]) Values() []V {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := make([]V, 0, len(names))
	for _, k := range names {
		values = append(values, r.items[k])
	}
	return values
}
