package utils

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// RegistryValidator checks an entry against the current contents before it
// is registered
type RegistryValidator[K comparable, V any] func(key K, value V, existing map[K]V) error

// BaseRegistry is a named, concurrency-safe map with optional validation on
// registration. Class loaders and the deployer keep their contents in one.
type BaseRegistry[K comparable, V any] struct {
	mu        sync.RWMutex
	items     map[K]V
	validator RegistryValidator[K, V]
	name      string
	keyDesc   string
	valueDesc string
}

// NewBaseRegistry creates an empty registry. keyDesc and valueDesc name the
// entries in error messages, e.g. "class name" and "class".
func NewBaseRegistry[K comparable, V any](name, keyDesc, valueDesc string) *BaseRegistry[K, V] {
	return &BaseRegistry[K, V]{
		items:     make(map[K]V),
		name:      name,
		keyDesc:   keyDesc,
		valueDesc: valueDesc,
	}
}

// SetValidator installs the validator run by Register
func (r *BaseRegistry[K, V]) SetValidator(validator RegistryValidator[K, V]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validator = validator
}

// Register validates and stores value under key. Validation and insertion
// happen under one lock, so two racing registrations of the same key cannot
// both pass a duplicate check.
func (r *BaseRegistry[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.validator != nil {
		if err := r.validator(key, value, r.items); err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}
	}
	r.items[key] = value
	return nil
}

// Get returns the entry for key
func (r *BaseRegistry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[key]
	return v, ok
}

// GetOrError returns the entry for key or an error naming what is missing
func (r *BaseRegistry[K, V]) GetOrError(key K) (V, error) {
	if v, ok := r.Get(key); ok {
		return v, nil
	}
	var zero V
	return zero, fmt.Errorf("%s: no %s registered for %s %v", r.name, r.valueDesc, r.keyDesc, key)
}

// Has reports whether key is registered
func (r *BaseRegistry[K, V]) Has(key K) bool {
	_, ok := r.Get(key)
	return ok
}

// List returns the registered keys in no particular order
func (r *BaseRegistry[K, V]) List() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.items))
	for k := range r.items {
		keys = append(keys, k)
	}
	return keys
}

// Delete removes key and reports whether it was present
func (r *BaseRegistry[K, V]) Delete(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[key]
	delete(r.items, key)
	return ok
}

// Len returns the number of entries
func (r *BaseRegistry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Snapshot returns a copy of the contents
func (r *BaseRegistry[K, V]) Snapshot() map[K]V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[K]V, len(r.items))
	for k, v := range r.items {
		out[k] = v
	}
	return out
}

// SortedKeys returns the keys of an ordered registry in ascending order
func SortedKeys[K cmp.Ordered, V any](r *BaseRegistry[K, V]) []K {
	keys := r.List()
	slices.Sort(keys)
	return keys
}

// NotEmptyKeyValidator rejects the empty string as a key
func NotEmptyKeyValidator[V any](keyDesc string) RegistryValidator[string, V] {
	return func(key string, _ V, _ map[string]V) error {
		if key == "" {
			return fmt.Errorf("%s cannot be empty", keyDesc)
		}
		return nil
	}
}

// NoDuplicateValidator rejects keys that are already registered
func NoDuplicateValidator[K comparable, V any](format string) RegistryValidator[K, V] {
	return func(key K, _ V, existing map[K]V) error {
		if _, ok := existing[key]; ok {
			return fmt.Errorf(format, key)
		}
		return nil
	}
}

// ChainValidators runs validators in order and stops at the first error
func ChainValidators[K comparable, V any](validators ...RegistryValidator[K, V]) RegistryValidator[K, V] {
	return func(key K, value V, existing map[K]V) error {
		for _, v := range validators {
			if err := v(key, value, existing); err != nil {
				return err
			}
		}
		return nil
	}
}
