package charts

// OrderedMap is a map that remembers the order in which keys were first
// inserted. Overwriting a key keeps its original position.
type OrderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{values: make(map[K]V)}
}

// Set stores v under k.
func (m *OrderedMap[K, V]) Set(k K, v V) {
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// Get returns the value stored under k.
func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.values[k]
	return v, ok
}

// GetOrCreate returns the value under k, storing the result of create
// first if k is absent.
func (m *OrderedMap[K, V]) GetOrCreate(k K, create func() V) V {
	if v, ok := m.values[k]; ok {
		return v
	}
	v := create()
	m.Set(k, v)
	return v
}

// First returns the earliest inserted key.
func (m *OrderedMap[K, V]) First() (K, bool) {
	if len(m.keys) == 0 {
		var zero K
		return zero, false
	}
	return m.keys[0], true
}

// Keys returns a copy of the keys in insertion order.
func (m *OrderedMap[K, V]) Keys() []K {
	return append([]K(nil), m.keys...)
}

// Len returns the number of keys.
func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}
