package hmap

import "testing"

// collidingHasher sends every key to the same bucket.
type collidingHasher struct{}

func (collidingHasher) Hash(int) uint32     { return 7 }
func (collidingHasher) Equal(a, b int) bool { return a == b }

func TestMapCollisions(t *testing.T) {
	m := NewMap[string, int](collidingHasher{})
	for i, s := range []string{"a", "b", "c", "d"} {
		m.Set(i, s)
	}

	if m.Len() != 4 {
		t.Fatalf("expected 4 bindings, got %d", m.Len())
	}

	tests := []struct {
		key   int
		value string
	}{{0, "a"}, {1, "b"}, {2, "c"}, {3, "d"}}
	for _, test := range tests {
		if v, ok := m.GetOk(test.key); !ok || v != test.value {
			t.Errorf("GetOk(%d) = %q, %v, expected %q", test.key, v, ok, test.value)
		}
	}

	// Delete from the head, the middle and the tail of the chain.
	for _, k := range []int{0, 2, 3} {
		if !m.Delete(k) {
			t.Errorf("Delete(%d) reported no binding", k)
		}
	}
	if m.Delete(0) {
		t.Error("second Delete(0) reported a binding")
	}
	if m.Len() != 1 || m.Get(1) != "b" {
		t.Errorf("expected only 1 -> b to remain, got len %d", m.Len())
	}
}

func TestMapGetOrSet(t *testing.T) {
	m := NewMap[int, int](collidingHasher{})
	if v, found := m.GetOrSet(1, 10); found || v != 10 {
		t.Errorf("expected fresh binding, got %d, %v", v, found)
	}
	if v, found := m.GetOrSet(1, 20); !found || v != 10 {
		t.Errorf("expected existing binding 10, got %d, %v", v, found)
	}

	seen := 0
	m.ForEach(func(k, v int) bool {
		seen++
		return true
	})
	if seen != 1 {
		t.Errorf("ForEach visited %d bindings", seen)
	}
}
