package value

import (
	"sort"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Map is a string-keyed map that remembers insertion order. Re-setting an
// existing key keeps its original position.
type Map struct {
	entries *linkedhashmap.Map
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{entries: linkedhashmap.New()}
}

// Set stores v under key.
func (m *Map) Set(key string, v Value) {
	m.entries.Put(key, v)
}

// Get looks up key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	raw, ok := m.entries.Get(key)
	if !ok {
		return Value{}, false
	}
	return raw.(Value), true
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return m.entries.Size()
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	raw := m.entries.Keys()
	keys := make([]string, len(raw))
	for i, k := range raw {
		keys[i] = k.(string)
	}
	return keys
}

// Each calls fn for every entry in insertion order.
func (m *Map) Each(fn func(key string, v Value)) {
	if m == nil {
		return
	}
	it := m.entries.Iterator()
	for it.Next() {
		fn(it.Key().(string), it.Value().(Value))
	}
}

// Equal reports whether both maps hold equal values under the same keys in
// the same order.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	ka, kb := m.Keys(), o.Keys()
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
		va, _ := m.Get(ka[i])
		vb, _ := o.Get(kb[i])
		if !va.Equal(vb) {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
