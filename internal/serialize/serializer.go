// Package serialize converts live in-memory objects into JSON-safe
// value trees for the inspection bus. Default mode is depth-bounded and
// inserts expansion placeholders; deep mode backs the lazy-expansion
// path and always expands complex objects up to the hard depth limit.
package serialize

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// MaxDepth is the hard recursion limit for both modes.
	MaxDepth = 5
	// PlaceholderDepth is the depth at which default mode stops
	// recursing complex objects and emits a placeholder instead.
	PlaceholderDepth = 2
	// MaxCollection caps serialized collection and map sizes.
	MaxCollection = 50
	// MaxBytes caps hex-dumped byte arrays.
	MaxBytes = 100
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// Serializer converts arbitrary values to Value trees. Field discovery
// results are cached per type; the zero Serializer is not usable, call
// New.
type Serializer struct {
	fields sync.Map // reflect.Type -> []fieldInfo
}

type fieldInfo struct {
	name  string
	index []int
}

// New returns a ready Serializer.
func New() *Serializer {
	return &Serializer{}
}

// Serialize converts v in default mode: complex objects at depth two or
// beyond become expansion placeholders.
func (s *Serializer) Serialize(v any) any {
	w := &walker{s: s}
	return w.value(reflect.ValueOf(v), 0)
}

// SerializeDeep converts v without placeholders, used exclusively by
// path expansion. Collection and byte caps still apply.
func (s *Serializer) SerializeDeep(v any) any {
	w := &walker{s: s, deep: true}
	return w.value(reflect.ValueOf(v), 0)
}

// SerializeDeepPacket converts a value reached by expanding a logged
// packet. Deep mode, with packetName's redaction list still applied so
// expansion can never surface a field the log masked.
func (s *Serializer) SerializeDeepPacket(packetName string, v any) any {
	w := &walker{s: s, deep: true, redact: redactedFields(packetName)}
	return w.value(reflect.ValueOf(v), 0)
}

// SerializePacket converts a packet object in default mode, replacing
// every field on the redaction list for packetName with "[REDACTED]",
// wherever it appears in the walk.
func (s *Serializer) SerializePacket(packetName string, v any) any {
	w := &walker{s: s, redact: redactedFields(packetName)}
	return w.value(reflect.ValueOf(v), 0)
}

// Fields serializes a component struct into its field map, or nil when
// the component has no serializable state.
func (s *Serializer) Fields(v any) *OrderedMap {
	w := &walker{s: s}
	rv := unwrap(reflect.ValueOf(v))
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	m := w.structFields(rv, 0)
	if m.Len() == 0 {
		return nil
	}
	return m
}

// Placeholder builds the expansion placeholder emitted for a complex
// object beyond the placeholder depth.
func Placeholder(typeName string) *OrderedMap {
	m := NewOrderedMap()
	m.Set("_expandable", true)
	m.Set("_type", typeName)
	return m
}

// IsPlaceholder reports whether v is an expansion placeholder.
func IsPlaceholder(v any) bool {
	m, ok := v.(*OrderedMap)
	if !ok {
		return false
	}
	e, ok := m.Get("_expandable")
	b, isBool := e.(bool)
	return ok && isBool && b
}

type walker struct {
	s      *Serializer
	deep   bool
	redact map[string]bool
}

func (w *walker) value(rv reflect.Value, depth int) any {
	rv = unwrap(rv)
	if !rv.IsValid() {
		return nil
	}
	t := rv.Type()

	// Special shapes come before any generic walking.
	switch {
	case t == timeType:
		return instantValue(rv.Interface().(time.Time))
	case t == uuidType:
		return rv.Interface().(uuid.UUID).String()
	case isVec3(t):
		return []any{rv.Field(0).Float(), rv.Field(1).Float(), rv.Field(2).Float()}
	case t.Name() == "Alarm" && t.Kind() == reflect.Struct:
		return w.alarmValue(rv)
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if name, ok := enumName(rv); ok {
			return name
		}
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if name, ok := enumName(rv); ok {
			return name
		}
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice, reflect.Array:
		return w.sequence(rv, depth)
	case reflect.Map:
		return w.mapping(rv, depth)
	case reflect.Struct:
		return w.structValue(rv, depth)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil
	default:
		return fmt.Sprintf("[%s]", typeName(t))
	}
}

func (w *walker) sequence(rv reflect.Value, depth int) any {
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return byteValue(rv)
	}
	n := rv.Len()
	if n > MaxCollection {
		return fmt.Sprintf("[%d items]", n)
	}
	if depth >= MaxDepth {
		return fmt.Sprintf("[%d items]", n)
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, w.value(rv.Index(i), depth+1))
	}
	return out
}

func (w *walker) mapping(rv reflect.Value, depth int) any {
	n := rv.Len()
	if n > MaxCollection {
		return fmt.Sprintf("{%d entries}", n)
	}
	if depth >= MaxDepth {
		return fmt.Sprintf("{%d entries}", n)
	}
	keys := make([]string, 0, n)
	byKey := make(map[string]reflect.Value, n)
	iter := rv.MapRange()
	for iter.Next() {
		k := mapKey(iter.Key())
		keys = append(keys, k)
		byKey[k] = iter.Value()
	}
	sort.Strings(keys)
	out := NewOrderedMap()
	for _, k := range keys {
		if w.redact != nil && w.redact[k] {
			out.Set(k, "[REDACTED]")
			continue
		}
		out.Set(k, w.value(byKey[k], depth+1))
	}
	return out
}

func (w *walker) structValue(rv reflect.Value, depth int) any {
	name := typeName(rv.Type())
	if !w.deep && depth >= PlaceholderDepth {
		return Placeholder(name)
	}
	if depth >= MaxDepth {
		return fmt.Sprintf("[%s]", name)
	}
	fields := w.s.fieldsOf(rv.Type())
	if len(fields) == 0 {
		return fmt.Sprintf("[%s]", name)
	}
	out := NewOrderedMap()
	out.Set("_type", name)
	w.appendFields(out, rv, fields, depth)
	if out.Len() <= 1 {
		// Only the type tag: empty objects serialize as null.
		return nil
	}
	return out
}

// structFields walks a component struct into a bare field map, without
// the type tag (the component envelope already carries the type name).
func (w *walker) structFields(rv reflect.Value, depth int) *OrderedMap {
	out := NewOrderedMap()
	w.appendFields(out, rv, w.s.fieldsOf(rv.Type()), depth)
	return out
}

func (w *walker) appendFields(out *OrderedMap, rv reflect.Value, fields []fieldInfo, depth int) {
	for _, f := range fields {
		fv, err := fieldByIndex(rv, f.index)
		if err != nil {
			// Reflective failures yield omission, never propagation.
			continue
		}
		if w.redact != nil && w.redact[f.name] {
			out.Set(f.name, "[REDACTED]")
			continue
		}
		out.Set(f.name, w.value(fv, depth+1))
	}
}

// alarmValue extracts the normalized alarm shape. Any probe failure
// falls back to the opaque sentinel.
func (w *walker) alarmValue(rv reflect.Value) (out any) {
	defer func() {
		if recover() != nil {
			out = "[Alarm]"
		}
	}()
	probe := rv
	if probe.CanAddr() {
		probe = probe.Addr()
	} else {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		probe = p
	}
	m := NewOrderedMap()
	m.Set("_type", "Alarm")
	if set, ok := callBool(probe, "IsSet"); ok {
		m.Set("isSet", set)
	}
	if passed, ok := callBool(probe, "HasPassed"); ok {
		m.Set("hasPassed", passed)
	}
	if inst, ok := callTime(probe, "AlarmInstant"); ok && !inst.IsZero() {
		m.Set("alarmInstant", instantValue(inst))
	} else if inst, ok := callTime(probe, "Instant"); ok && !inst.IsZero() {
		m.Set("alarmInstant", instantValue(inst))
	} else if f := probe.Elem().FieldByName("AlarmInstant"); f.IsValid() && f.Type() == timeType && !f.Interface().(time.Time).IsZero() {
		m.Set("alarmInstant", instantValue(f.Interface().(time.Time)))
	}
	if m.Len() <= 1 {
		return "[Alarm]"
	}
	return m
}

// fieldsOf discovers the serializable fields of a struct type, walking
// embedded ancestors, and caches the result.
func (s *Serializer) fieldsOf(t reflect.Type) []fieldInfo {
	if cached, ok := s.fields.Load(t); ok {
		return cached.([]fieldInfo)
	}
	var out []fieldInfo
	collectFields(t, nil, &out)
	s.fields.Store(t, out)
	return out
}

func collectFields(t reflect.Type, prefix []int, out *[]fieldInfo) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		if f.Anonymous {
			ft := f.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectFields(ft, index, out)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		name := fieldName(f)
		if name == "-" {
			continue
		}
		*out = append(*out, fieldInfo{name: name, index: index})
	}
}

func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return lowerFirst(f.Name)
}

func lowerFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// fieldByIndex is FieldByIndex with nil-pointer tolerance: a nil
// embedded ancestor yields an error instead of a panic.
func fieldByIndex(rv reflect.Value, index []int) (reflect.Value, error) {
	for n, i := range index {
		if n > 0 {
			if rv.Kind() == reflect.Ptr {
				if rv.IsNil() {
					return reflect.Value{}, fmt.Errorf("nil ancestor")
				}
				rv = rv.Elem()
			}
		}
		rv = rv.Field(i)
	}
	return rv, nil
}

func unwrap(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func typeName(t reflect.Type) string {
	if name := t.Name(); name != "" {
		return name
	}
	switch t.Kind() {
	case reflect.Map:
		return "Map"
	case reflect.Slice, reflect.Array:
		return "List"
	default:
		return t.Kind().String()
	}
}

func isVec3(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t.NumField() != 3 {
		return false
	}
	for i, want := range []string{"X", "Y", "Z"} {
		f := t.Field(i)
		if f.Name != want || f.Type.Kind() != reflect.Float64 {
			return false
		}
	}
	return true
}

func instantValue(t time.Time) *OrderedMap {
	m := NewOrderedMap()
	m.Set("epochMilli", t.UnixMilli())
	m.Set("iso", t.UTC().Format(time.RFC3339Nano))
	m.Set("_type", "Instant")
	return m
}

func byteValue(rv reflect.Value) any {
	n := rv.Len()
	if n > MaxBytes {
		return fmt.Sprintf("[%d bytes]", n)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%02X", byte(rv.Index(i).Uint()))
	}
	return strings.Join(parts, " ")
}

// enumName resolves a named integer type through its Stringer, which is
// how host enumerations surface their names.
func enumName(rv reflect.Value) (string, bool) {
	t := rv.Type()
	if t.Name() == "" || t.PkgPath() == "" {
		return "", false
	}
	if t == reflect.TypeOf(time.Duration(0)) {
		return "", false
	}
	if t.Implements(stringerType) {
		return rv.Interface().(fmt.Stringer).String(), true
	}
	if reflect.PtrTo(t).Implements(stringerType) && rv.CanAddr() {
		return rv.Addr().Interface().(fmt.Stringer).String(), true
	}
	return "", false
}

func mapKey(rv reflect.Value) string {
	rv = unwrap(rv)
	if !rv.IsValid() {
		return "null"
	}
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return fmt.Sprintf("%v", rv.Interface())
}

func callBool(probe reflect.Value, name string) (bool, bool) {
	m := probe.MethodByName(name)
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 || m.Type().Out(0).Kind() != reflect.Bool {
		return false, false
	}
	return m.Call(nil)[0].Bool(), true
}

func callTime(probe reflect.Value, name string) (time.Time, bool) {
	m := probe.MethodByName(name)
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 || m.Type().Out(0) != timeType {
		return time.Time{}, false
	}
	return m.Call(nil)[0].Interface().(time.Time), true
}
