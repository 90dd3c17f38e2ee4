package query

import (
	"reflect"
	"strings"
	"time"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/ecs"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/model"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/serialize"
)

// The instruction walk is strictly read-only: it touches fields via
// reflection and calls only pure accessors (RoleName, StateIndex,
// IsContinueAfter, IsSet, HasPassed, AlarmInstant, String). Sensor and
// action evaluation methods mutate entity state and are never invoked.

// noisyFields are internal references that carry no inspectable value
// and would otherwise bloat generic property maps.
var noisyFields = map[string]struct{}{
	"entity":   {},
	"world":    {},
	"owner":    {},
	"parent":   {},
	"handle":   {},
	"random":   {},
	"rng":      {},
	"cache":    {},
	"listener": {},
	"callback": {},
}

// GetInstructions walks the live NPCEntity reference into the full
// behavior view. Must run on the world thread. Returns false when the
// entity has no live NPCEntity reference or no role.
func (s *Service) GetInstructions(id int64) (*model.InstructionTree, bool) {
	entry, ok := s.cache.GetEntity(id)
	if !ok {
		return nil, false
	}
	npc, ok := entry.Refs["NPCEntity"]
	if !ok || npc == nil {
		return nil, false
	}
	role, ok := fieldValue(npc, "Role")
	if !ok || role == nil {
		return nil, false
	}
	now := s.clock()

	tree := &model.InstructionTree{
		RootInstructions:        []*model.InstructionInfo{},
		InteractionInstructions: []*model.InstructionInfo{},
		DeathInstructions:       []*model.InstructionInfo{},
	}
	if name, ok := callString(role, "RoleName"); ok {
		tree.RoleName = name
	} else if v, ok := fieldValue(role, "Name"); ok {
		tree.RoleName, _ = v.(string)
	}
	if sm, ok := fieldValue(role, "StateMachine"); ok && sm != nil {
		tree.StateMachine = stateMachineInfo(sm)
	}
	tree.RootInstructions = s.wrapperChildren(role, "RootInstruction", now)
	tree.InteractionInstructions = s.wrapperChildren(role, "InteractionInstruction", now)
	tree.DeathInstructions = s.wrapperChildren(role, "DeathInstruction", now)
	return tree, true
}

// wrapperChildren unwraps a top-level instruction: the wrapper node
// itself is scaffolding, its InstructionList carries the real tree.
func (s *Service) wrapperChildren(role any, field string, now ecs.GameTime) []*model.InstructionInfo {
	wrapper, ok := fieldValue(role, field)
	if !ok || wrapper == nil {
		return []*model.InstructionInfo{}
	}
	list, ok := fieldValue(wrapper, "InstructionList")
	if !ok {
		return []*model.InstructionInfo{}
	}
	return s.instructionList(list, now)
}

func (s *Service) instructionList(list any, now ecs.GameTime) []*model.InstructionInfo {
	rv := deref(reflect.ValueOf(list))
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return []*model.InstructionInfo{}
	}
	out := make([]*model.InstructionInfo, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		el := rv.Index(i)
		if !el.IsValid() || !el.CanInterface() {
			continue
		}
		if info := s.instructionInfo(el.Interface(), i, now); info != nil {
			out = append(out, info)
		}
	}
	return out
}

func (s *Service) instructionInfo(node any, index int, now ecs.GameTime) *model.InstructionInfo {
	if node == nil {
		return nil
	}
	info := &model.InstructionInfo{Index: index, TreeMode: "SEQUENCE"}
	if v, ok := fieldValue(node, "Name"); ok {
		info.Name, _ = v.(string)
	}
	if v, ok := fieldValue(node, "Tag"); ok {
		info.Tag, _ = v.(string)
	}
	if b, ok := callBoolMethod(node, "IsContinueAfter"); ok {
		info.ContinueAfter = b
	}
	if v, ok := fieldValue(node, "TreeMode"); ok {
		if name, ok := stringerName(v); ok {
			info.TreeMode = name
		}
	}
	if v, ok := fieldValue(node, "Weight"); ok {
		if f, ok := asNumber(v); ok {
			info.Weight = f
		}
	}
	if v, ok := fieldValue(node, "Sensor"); ok && v != nil {
		info.Sensor = s.sensorInfo(v, now)
	}
	if v, ok := fieldValue(node, "Actions"); ok {
		info.Actions = s.actionInfos(v)
	}
	if v, ok := fieldValue(node, "InstructionList"); ok {
		if children := s.instructionList(v, now); len(children) > 0 {
			info.Children = children
		}
	}
	return info
}

func (s *Service) sensorInfo(sensor any, now ecs.GameTime) *model.SensorInfo {
	rv := deref(reflect.ValueOf(sensor))
	if !rv.IsValid() {
		return nil
	}
	info := &model.SensorInfo{Type: ecs.TypeName(sensor)}
	if v, ok := fieldValue(sensor, "Once"); ok {
		info.Once, _ = v.(bool)
	}
	if v, ok := fieldValue(sensor, "Triggered"); ok {
		info.Triggered, _ = v.(bool)
	}

	switch info.Type {
	case "SensorAlarm":
		info.Alarm = s.sensorAlarmInfo(sensor, now)
	case "SensorTimer":
		info.Timer = sensorTimerInfo(sensor)
	case "SensorAnd", "SensorOr":
		if v, ok := fieldValue(sensor, "Sensors"); ok {
			info.Children = s.sensorChildren(v, now)
		}
	case "SensorNot":
		if v, ok := fieldValue(sensor, "Sensor"); ok && v != nil {
			info.Negated = s.sensorInfo(v, now)
		}
	case "NullSensor":
		info.Type = "Any"
	default:
		info.Properties = genericProperties(sensor)
	}
	return info
}

func (s *Service) sensorChildren(list any, now ecs.GameTime) []*model.SensorInfo {
	rv := deref(reflect.ValueOf(list))
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil
	}
	out := make([]*model.SensorInfo, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		el := rv.Index(i)
		if !el.IsValid() || el.Kind() == reflect.Interface && el.IsNil() {
			continue
		}
		if child := s.sensorInfo(el.Interface(), now); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// sensorAlarmInfo reads the expected state enum and derives the current
// state from the alarm's instant against game time: no instant is
// UNSET, an instant in the past is PASSED, otherwise SET.
func (s *Service) sensorAlarmInfo(sensor any, now ecs.GameTime) *model.SensorAlarmInfo {
	info := &model.SensorAlarmInfo{ExpectedState: "SET", CurrentState: "UNSET"}
	if v, ok := fieldValue(sensor, "State"); ok {
		if name, ok := stringerName(v); ok {
			info.ExpectedState = name
		}
	}
	alarm, ok := fieldValue(sensor, "Alarm")
	if !ok || alarm == nil {
		return info
	}
	inst, ok := callTimeMethod(alarm, "AlarmInstant")
	if !ok || inst.IsZero() {
		return info
	}
	ms := inst.UnixMilli()
	info.ScheduledTime = isoMillis(ms)
	if ms <= now.EpochMilli {
		info.CurrentState = "PASSED"
	} else {
		info.CurrentState = "SET"
	}
	return info
}

func sensorTimerInfo(sensor any) *model.SensorTimerInfo {
	info := &model.SensorTimerInfo{ExpectedState: "STOPPED"}
	if v, ok := fieldValue(sensor, "MinTimeRemaining"); ok {
		info.MinTimeRemaining, _ = asNumber(v)
	}
	if v, ok := fieldValue(sensor, "MaxTimeRemaining"); ok {
		info.MaxTimeRemaining, _ = asNumber(v)
	}
	if v, ok := fieldValue(sensor, "State"); ok {
		if name, ok := stringerName(v); ok {
			info.ExpectedState = name
		}
	}
	timer, ok := fieldValue(sensor, "Timer")
	if !ok || timer == nil {
		return info
	}
	if v, ok := fieldValue(timer, "State"); ok {
		if name, ok := stringerName(v); ok {
			info.TimerState = name
		}
	}
	if v, ok := fieldValue(timer, "Value"); ok {
		info.TimerValue, _ = asNumber(v)
	}
	if v, ok := fieldValue(timer, "MaxValue"); ok {
		info.TimerMaxValue, _ = asNumber(v)
	}
	return info
}

func (s *Service) actionInfos(list any) []*serialize.OrderedMap {
	rv := deref(reflect.ValueOf(list))
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil
	}
	out := make([]*serialize.OrderedMap, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		el := rv.Index(i)
		if !el.IsValid() || el.Kind() == reflect.Interface && el.IsNil() {
			continue
		}
		action := el.Interface()
		om := serialize.NewOrderedMap()
		om.Set("type", ecs.TypeName(action))
		if v, ok := fieldValue(action, "Enabled"); ok {
			om.Set("enabled", v)
		}
		if props := genericProperties(action); props != nil {
			props.Range(func(k string, v any) bool {
				om.Set(k, v)
				return true
			})
		}
		out = append(out, om)
	}
	return out
}

// genericProperties extracts the declared fields of a sensor or action
// subtype: primitives, strings, enums, timestamps and flat collections
// thereof. Embedded SensorBase and ActionBase fields are the stop
// boundary, captured separately by the caller.
func genericProperties(v any) *serialize.OrderedMap {
	rv := deref(reflect.ValueOf(v))
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	out := serialize.NewOrderedMap()
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := lowerFirst(f.Name)
		if f.Anonymous {
			base := f.Type.Name()
			if base == "SensorBase" || base == "ActionBase" {
				continue
			}
		}
		if _, noisy := noisyFields[strings.ToLower(f.Name)]; noisy {
			continue
		}
		if val, ok := propertyValue(rv.Field(i)); ok {
			out.Set(name, val)
		}
	}
	if out.Len() == 0 {
		return nil
	}
	return out
}

// propertyValue maps a field to its inspectable form, or rejects it.
func propertyValue(fv reflect.Value) (any, bool) {
	fv = deref(fv)
	if !fv.IsValid() || !fv.CanInterface() {
		return nil, false
	}
	if t, ok := fv.Interface().(time.Time); ok {
		if t.IsZero() {
			return nil, false
		}
		return isoMillis(t.UnixMilli()), true
	}
	if name, ok := stringerName(fv.Interface()); ok {
		return name, true
	}
	switch fv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fv.Interface(), true
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			el, ok := propertyValue(fv.Index(i))
			if !ok {
				return nil, false
			}
			out = append(out, el)
		}
		return out, true
	}
	return nil, false
}

func stateMachineInfo(sm any) *model.StateMachineInfo {
	info := &model.StateMachineInfo{}
	if n, ok := callIntMethod(sm, "StateIndex"); ok {
		info.State = n
	} else if v, ok := fieldValue(sm, "State"); ok {
		if f, ok := asNumber(v); ok {
			info.State = int(f)
		}
	}
	if n, ok := callIntMethod(sm, "SubStateIndex"); ok {
		info.SubState = n
	} else if v, ok := fieldValue(sm, "SubState"); ok {
		if f, ok := asNumber(v); ok {
			info.SubState = int(f)
		}
	}
	if name, ok := callString(sm, "StateName"); ok {
		info.StateName = name
	}
	return info
}

// stringerName reports a named non-duration value's String() form,
// used for enum-like types.
func stringerName(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	if _, isDur := v.(time.Duration); isDur {
		return "", false
	}
	rt := reflect.TypeOf(v)
	if rt.Name() == "" || rt.Kind() == reflect.String {
		return "", false
	}
	switch rt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return "", false
	}
	str, ok := v.(interface{ String() string })
	if !ok {
		return "", false
	}
	return str.String(), true
}

// fieldValue reads a struct field by its Go name, tolerating pointer
// wrapping and nil intermediates.
func fieldValue(v any, name string) (out any, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = nil, false
		}
	}()
	rv := deref(reflect.ValueOf(v))
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil, false
	}
	fv := rv.FieldByName(name)
	if !fv.IsValid() || !fv.CanInterface() {
		return nil, false
	}
	switch fv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if fv.IsNil() {
			return nil, true
		}
	}
	return fv.Interface(), true
}

func deref(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func callString(v any, method string) (out string, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = "", false
		}
	}()
	m := reflect.ValueOf(v).MethodByName(method)
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return "", false
	}
	res := m.Call(nil)[0]
	if res.Kind() != reflect.String {
		return "", false
	}
	return res.String(), true
}

func callBoolMethod(v any, method string) (out bool, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = false, false
		}
	}()
	m := reflect.ValueOf(v).MethodByName(method)
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return false, false
	}
	res := m.Call(nil)[0]
	if res.Kind() != reflect.Bool {
		return false, false
	}
	return res.Bool(), true
}

func callIntMethod(v any, method string) (out int, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = 0, false
		}
	}()
	m := reflect.ValueOf(v).MethodByName(method)
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return 0, false
	}
	res := m.Call(nil)[0]
	switch res.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(res.Int()), true
	}
	return 0, false
}

func callTimeMethod(v any, method string) (out time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = time.Time{}, false
		}
	}()
	m := reflect.ValueOf(v).MethodByName(method)
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return time.Time{}, false
	}
	res, isTime := m.Call(nil)[0].Interface().(time.Time)
	if !isTime {
		return time.Time{}, false
	}
	return res, true
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
