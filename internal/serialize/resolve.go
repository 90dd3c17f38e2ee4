package serialize

import (
	"reflect"
	"strconv"
)

// ResolveStep returns the child of v named by one path segment. A
// segment is a field name for structs, a key for string-keyed maps, or
// a decimal index for sequences. Resolution walks live objects with the
// same field discovery rules as serialization; any miss or reflective
// failure reports ok=false.
func (s *Serializer) ResolveStep(v any, segment string) (out any, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = nil, false
		}
	}()
	rv := unwrap(reflect.ValueOf(v))
	if !rv.IsValid() {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(segment)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(segment).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Struct:
		for _, f := range s.fieldsOf(rv.Type()) {
			if f.name != segment {
				continue
			}
			fv, err := fieldByIndex(rv, f.index)
			if err != nil {
				return nil, false
			}
			return fv.Interface(), true
		}
		return nil, false
	default:
		return nil, false
	}
}

// ResolvePath walks a dot-free segment list from root.
func (s *Serializer) ResolvePath(root any, segments []string) (any, bool) {
	cur := root
	for _, seg := range segments {
		next, ok := s.ResolveStep(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
