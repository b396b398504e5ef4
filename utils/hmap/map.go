package hmap

import "github.com/cs-au-dk/reach/utils"

// A simple implementation of a mutable hash map.
// Useful when keys are not comparable with ==, e.g. abstract states that
// define their own Hash and Equal, and persistent maps would be overkill.

// Uses linked lists to resolve hash collisions.

type node[K, V any] struct {
	key   K
	value V
	next  *node[K, V]
}

type Map[K, V any] struct {
	hasher utils.Hasher[K]
	mp     map[uint32]*node[K, V]
	size   int
}

// Order of V and K are swapped since K can be inferred by the argument.
func NewMap[V, K any](hasher utils.Hasher[K]) *Map[K, V] {
	return &Map[K, V]{
		hasher: hasher,
		mp:     make(map[uint32]*node[K, V]),
	}
}

func (m *Map[K, V]) Set(key K, value V) {
	h := m.hasher.Hash(key)
	snode, found := m.mp[h]
	if !found {
		m.mp[h] = &node[K, V]{key, value, nil}
		m.size++
		return
	}

	for {
		if m.hasher.Equal(key, snode.key) {
			snode.value = value
			return
		}

		if snode.next == nil {
			// Hash collision
			snode.next = &node[K, V]{key, value, nil}
			m.size++
			return
		}
		snode = snode.next
	}
}

func (m *Map[K, V]) GetOk(key K) (res V, ok bool) {
	for node := m.mp[m.hasher.Hash(key)]; node != nil; node = node.next {
		if m.hasher.Equal(key, node.key) {
			return node.value, true
		}
	}

	return
}

func (m *Map[K, V]) Get(key K) V {
	v, _ := m.GetOk(key)
	return v
}

// GetOrSet returns the value bound to key, binding it to value first if
// the key is absent. The boolean reports whether the key was present.
func (m *Map[K, V]) GetOrSet(key K, value V) (V, bool) {
	if v, ok := m.GetOk(key); ok {
		return v, true
	}
	m.Set(key, value)
	return value, false
}

// Delete removes the binding of key. Returns whether a binding was removed.
func (m *Map[K, V]) Delete(key K) bool {
	h := m.hasher.Hash(key)
	var prev *node[K, V]
	for node := m.mp[h]; node != nil; prev, node = node, node.next {
		if !m.hasher.Equal(key, node.key) {
			continue
		}

		switch {
		case prev != nil:
			prev.next = node.next
		case node.next != nil:
			m.mp[h] = node.next
		default:
			delete(m.mp, h)
		}
		m.size--
		return true
	}
	return false
}

func (m *Map[K, V]) Len() int {
	return m.size
}

// ForEach calls do for every binding until do returns false.
// Iteration order is unspecified.
func (m *Map[K, V]) ForEach(do func(K, V) bool) {
	for _, node := range m.mp {
		for ; node != nil; node = node.next {
			if !do(node.key, node.value) {
				return
			}
		}
	}
}
