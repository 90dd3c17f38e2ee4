// Package query derives interpretive views over cached entities:
// filtered listings, timer and alarm normalization, and the read-only
// instruction-tree walk.
package query

import (
	"strings"
	"time"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/cache"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/ecs"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/model"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/serialize"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	defaultFindLimit = 20
	maxFindLimit     = 100
)

// GameClock supplies the current game time for alarm math.
type GameClock func() ecs.GameTime

// Service answers entity queries from the cache. The instruction walk
// additionally reads live component references, so its callers must be
// on the world thread.
type Service struct {
	cache *cache.Cache
	ser   *serialize.Serializer
	clock GameClock
}

// New builds the query service.
func New(c *cache.Cache, ser *serialize.Serializer, clock GameClock) *Service {
	return &Service{cache: c, ser: ser, clock: clock}
}

// ListEntities returns a page of cached entities matching filter and
// search. filter is one of "npc", "player", "item" or "all"; search is
// a case-insensitive substring test over name, role and model asset id.
func (s *Service) ListEntities(filter, search string, limit, offset int) []model.EntityListItem {
	limit = clampLimit(limit, defaultListLimit, maxListLimit)
	if offset < 0 {
		offset = 0
	}
	filter = strings.ToLower(strings.TrimSpace(filter))
	search = strings.ToLower(strings.TrimSpace(search))

	out := make([]model.EntityListItem, 0, limit)
	skipped := 0
	for _, snap := range s.cache.Entities() {
		name, role := npcIdentity(snap)
		if !matchesFilter(snap.EntityType, filter) {
			continue
		}
		if search != "" && !matchesSearch(search, name, role, snap.ModelAssetID) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, model.EntityListItem{
			EntityID:     snap.EntityID,
			UUID:         snap.UUID,
			Name:         name,
			Role:         role,
			EntityType:   snap.EntityType,
			ModelAssetID: snap.ModelAssetID,
			Position:     snap.Position,
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

// GetEntityDetail returns the cached snapshot for id.
func (s *Service) GetEntityDetail(id int64) (*model.EntitySnapshot, bool) {
	entry, ok := s.cache.GetEntity(id)
	if !ok {
		return nil, false
	}
	return entry.Snapshot, true
}

// GetTimers normalizes the entity's Timers component into TimerInfo
// rows. Missing fields take the stopped defaults.
func (s *Service) GetTimers(id int64) []model.TimerInfo {
	entry, ok := s.cache.GetEntity(id)
	if !ok {
		return nil
	}
	fields := s.deepComponent(entry, "Timers")
	if fields == nil {
		return nil
	}
	raw, _ := fields.Get("timers")
	seq, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]model.TimerInfo, 0, len(seq))
	for i, el := range seq {
		info := model.TimerInfo{Index: i, State: "STOPPED", Rate: 1}
		if om, ok := el.(*serialize.OrderedMap); ok {
			if v, ok := om.Get("state"); ok {
				if state, ok := v.(string); ok && state != "" {
					info.State = state
				}
			}
			if f, ok := numberField(om, "value"); ok {
				info.Value = f
			}
			if f, ok := numberField(om, "maxValue"); ok {
				info.MaxValue = f
			}
			if f, ok := numberField(om, "rate"); ok {
				info.Rate = f
			}
			if v, ok := om.Get("repeating"); ok {
				if b, ok := v.(bool); ok {
					info.Repeating = b
				}
			}
		}
		out = append(out, info)
	}
	return out
}

// GetAlarms merges the entity's alarms from their four known homes,
// first hit per name wins, then scans PersistentParameters for
// alarm-named schedule values.
func (s *Service) GetAlarms(id int64) map[string]model.AlarmInfo {
	entry, ok := s.cache.GetEntity(id)
	if !ok {
		return nil
	}
	now := s.clock()
	out := make(map[string]model.AlarmInfo)

	merge := func(params *serialize.OrderedMap) {
		if params == nil {
			return
		}
		params.Range(func(name string, v any) bool {
			if _, dup := out[name]; !dup {
				out[name] = s.alarmInfo(name, v, now)
			}
			return true
		})
	}
	merge(s.mapAt(entry, "InteractionManager", "entity", "alarmStore", "parameters"))
	merge(s.mapAt(entry, "NPCEntity", "entity", "alarmStore", "parameters"))
	merge(s.mapAt(entry, "NPCEntity", "alarms"))
	merge(s.mapAt(entry, "Alarms", "alarms"))

	if params := s.mapAt(entry, "PersistentParameters", "parameters"); params != nil {
		params.Range(func(name string, v any) bool {
			if !strings.Contains(strings.ToLower(name), "alarm") {
				return true
			}
			if _, dup := out[name]; dup {
				return true
			}
			if ms, ok := asNumber(v); ok {
				out[name] = s.scheduleInfo(name, int64(ms), now)
			}
			return true
		})
	}
	return out
}

// FindByTimerState returns entities having at least one timer in the
// given state.
func (s *Service) FindByTimerState(state string, limit int) []model.EntityListItem {
	limit = clampLimit(limit, defaultFindLimit, maxFindLimit)
	state = strings.ToUpper(strings.TrimSpace(state))
	var out []model.EntityListItem
	for _, id := range s.cache.EntityIDs() {
		for _, t := range s.GetTimers(id) {
			if t.State == state {
				if item, ok := s.listItem(id); ok {
					out = append(out, item)
				}
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

// FindByAlarm returns entities carrying the named alarm, optionally
// restricted to one state.
func (s *Service) FindByAlarm(name, state string, limit int) []model.EntityListItem {
	limit = clampLimit(limit, defaultFindLimit, maxFindLimit)
	state = strings.ToUpper(strings.TrimSpace(state))
	var out []model.EntityListItem
	for _, id := range s.cache.EntityIDs() {
		info, ok := s.GetAlarms(id)[name]
		if !ok {
			continue
		}
		if state != "" && info.State != state {
			continue
		}
		if item, ok := s.listItem(id); ok {
			out = append(out, item)
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (s *Service) listItem(id int64) (model.EntityListItem, bool) {
	entry, ok := s.cache.GetEntity(id)
	if !ok {
		return model.EntityListItem{}, false
	}
	snap := entry.Snapshot
	name, role := npcIdentity(snap)
	return model.EntityListItem{
		EntityID:     snap.EntityID,
		UUID:         snap.UUID,
		Name:         name,
		Role:         role,
		EntityType:   snap.EntityType,
		ModelAssetID: snap.ModelAssetID,
		Position:     snap.Position,
	}, true
}

// alarmInfo derives one AlarmInfo from a serialized alarm value. A
// bare expansion placeholder counts as a set alarm with no schedule.
func (s *Service) alarmInfo(name string, v any, now ecs.GameTime) model.AlarmInfo {
	info := model.AlarmInfo{Name: name, State: "SET"}
	om, ok := v.(*serialize.OrderedMap)
	if !ok || serialize.IsPlaceholder(v) {
		return info
	}

	isSet, hasIsSet := boolField(om, "isSet")
	hasPassed, hasHasPassed := boolField(om, "hasPassed")
	switch {
	case hasPassed:
		info.State = "PASSED"
	case isSet:
		info.State = "SET"
	case hasIsSet || hasHasPassed:
		info.State = "UNSET"
	}

	if inst, ok := om.Get("alarmInstant"); ok {
		if instMap, ok := inst.(*serialize.OrderedMap); ok {
			if ms, ok := numberField(instMap, "epochMilli"); ok {
				scheduled := int64(ms)
				info.ScheduledTime = isoMillis(scheduled)
				info.RemainingSeconds = remainingSeconds(scheduled, now)
			}
		}
	}
	return info
}

func (s *Service) scheduleInfo(name string, scheduledMs int64, now ecs.GameTime) model.AlarmInfo {
	info := model.AlarmInfo{Name: name, ScheduledTime: isoMillis(scheduledMs)}
	if scheduledMs <= now.EpochMilli {
		info.State = "PASSED"
	} else {
		info.State = "SET"
	}
	info.RemainingSeconds = remainingSeconds(scheduledMs, now)
	return info
}

// deepComponent serializes the live component reference without
// placeholders, falling back to the snapshot fields when the reference
// is gone.
func (s *Service) deepComponent(entry *cache.Entry, name string) *serialize.OrderedMap {
	if ref, ok := entry.Refs[name]; ok && ref != nil {
		if om, ok := s.ser.SerializeDeep(ref).(*serialize.OrderedMap); ok {
			return om
		}
	}
	cd := entry.Snapshot.Component(name)
	if cd == nil {
		return nil
	}
	return cd.Fields
}

// mapAt walks nested ordered maps under the named component.
func (s *Service) mapAt(entry *cache.Entry, component string, path ...string) *serialize.OrderedMap {
	cur := s.deepComponent(entry, component)
	for _, seg := range path {
		if cur == nil {
			return nil
		}
		v, ok := cur.Get(seg)
		if !ok {
			return nil
		}
		cur, _ = v.(*serialize.OrderedMap)
	}
	return cur
}

// remainingSeconds converts a game-time schedule into real-world
// seconds from now, clamped at zero.
func remainingSeconds(scheduledMs int64, now ecs.GameTime) *float64 {
	rate := now.Rate
	if rate <= 0 {
		rate = 1
	}
	secs := float64(scheduledMs-now.EpochMilli) / 1000 / rate
	if secs < 0 {
		secs = 0
	}
	return &secs
}

func isoMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}

func npcIdentity(snap *model.EntitySnapshot) (name, role string) {
	cd := snap.Component("NPCEntity")
	if cd == nil || cd.Fields == nil {
		return "", ""
	}
	if v, ok := cd.Fields.Get("name"); ok {
		name, _ = v.(string)
	}
	if v, ok := cd.Fields.Get("role"); ok {
		switch r := v.(type) {
		case string:
			role = r
		case *serialize.OrderedMap:
			if p, ok := r.Get("path"); ok {
				role, _ = p.(string)
			} else if n, ok := r.Get("name"); ok {
				role, _ = n.(string)
			}
		}
	}
	return name, role
}

func matchesFilter(entityType, filter string) bool {
	switch filter {
	case "", "all":
		return true
	default:
		return strings.EqualFold(entityType, filter)
	}
}

func matchesSearch(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func clampLimit(limit, def, cap int) int {
	if limit <= 0 {
		return def
	}
	if limit > cap {
		return cap
	}
	return limit
}

func boolField(om *serialize.OrderedMap, key string) (val bool, present bool) {
	v, ok := om.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func numberField(om *serialize.OrderedMap, key string) (float64, bool) {
	v, ok := om.Get(key)
	if !ok {
		return 0, false
	}
	return asNumber(v)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
