// Package ordered provides a map that maintains the order of keys as they are added.
package ordered

import "iter"

// Element is a key-value pair stored in an ordered map.
type Element[K comparable, V any] struct {
	Key   K
	Value V
}

// Map remembers the insertion order of its keys. Setting an existing key
// updates the value in place and keeps the key's original position.
// The zero value is empty and ready to use.
type Map[K comparable, V any] struct {
	m map[K]*Element[K, V]
	l []*Element[K, V]
}

// New creates an empty map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]*Element[K, V])}
}

// NewWithCapacity creates an empty map sized for capacity elements.
func NewWithCapacity[K comparable, V any](capacity int) *Map[K, V] {
	return &Map[K, V]{
		m: make(map[K]*Element[K, V], capacity),
		l: make([]*Element[K, V], 0, capacity),
	}
}

// Len returns the number of elements. nil safe.
func (m *Map[K, V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.l)
}

// Set stores value under key, appending the key if it is new.
func (m *Map[K, V]) Set(key K, value V) {
	if m.m == nil {
		m.m = make(map[K]*Element[K, V])
	}
	if el, ok := m.m[key]; ok {
		el.Value = value
		return
	}
	el := &Element[K, V]{Key: key, Value: value}
	m.m[key] = el
	m.l = append(m.l, el)
}

// Get returns the value for key and whether it was present. nil safe.
func (m *Map[K, V]) Get(key K) (V, bool) {
	var zero V
	if m == nil {
		return zero, false
	}
	el, ok := m.m[key]
	if !ok {
		return zero, false
	}
	return el.Value, true
}

// Has reports whether key is present. nil safe.
func (m *Map[K, V]) Has(key K) bool {
	if m == nil {
		return false
	}
	_, ok := m.m[key]
	return ok
}

// Delete removes key if present.
func (m *Map[K, V]) Delete(key K) {
	el, ok := m.m[key]
	if !ok {
		return
	}
	delete(m.m, key)
	for i, e := range m.l {
		if e == el {
			m.l = append(m.l[:i], m.l[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. nil safe.
func (m *Map[K, V]) Keys() []K {
	if m == nil {
		return nil
	}
	keys := make([]K, 0, len(m.l))
	for _, el := range m.l {
		keys = append(keys, el.Key)
	}
	return keys
}

// All iterates elements in insertion order. nil safe.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if m == nil {
			return
		}
		for _, el := range m.l {
			if !yield(el.Key, el.Value) {
				return
			}
		}
	}
}

// Clone returns a shallow copy preserving order. nil safe.
func (m *Map[K, V]) Clone() *Map[K, V] {
	if m == nil {
		return New[K, V]()
	}
	out := NewWithCapacity[K, V](len(m.l))
	for _, el := range m.l {
		out.Set(el.Key, el.Value)
	}
	return out
}
