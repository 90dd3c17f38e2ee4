package serialize

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// OrderedMap is a string-keyed map that preserves insertion order when
// marshaled. Snapshot consumers rely on component and field ordering,
// which a plain Go map cannot provide.
type OrderedMap struct {
	keys []string
	vals map[string]any
}

// NewOrderedMap returns an empty ordered map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{vals: make(map[string]any)}
}

// Set inserts or replaces a key. First insertion fixes the position.
func (m *OrderedMap) Set(key string, val any) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = val
}

// Get returns the value stored under key.
func (m *OrderedMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (m *OrderedMap) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Range calls fn for each entry in insertion order until fn returns
// false.
func (m *OrderedMap) Range(fn func(key string, val any) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// Equal compares two maps by key set and deep value equality. Order is
// not part of equality; change detection cares about content only.
func (m *OrderedMap) Equal(o *OrderedMap) bool {
	if m.Len() != o.Len() {
		return false
	}
	if m == nil || o == nil {
		return m.Len() == o.Len()
	}
	for k, v := range m.vals {
		ov, ok := o.vals[k]
		if !ok {
			return false
		}
		if va, aok := v.(*OrderedMap); aok {
			vb, bok := ov.(*OrderedMap)
			if !bok || !va.Equal(vb) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// MarshalJSON emits entries in insertion order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
