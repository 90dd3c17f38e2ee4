// Package core orchestrates the inspector: it receives tracker events,
// maintains the cache, answers transport requests and fans results out
// to connected sessions.
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/cache"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/collect"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/config"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/ecs"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/metrics"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/model"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/protocol"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/query"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/serialize"
)

// ServerVersion is reported in world snapshots.
const ServerVersion = "0.9.4"

const (
	// refreshTimeout bounds how long a transport thread waits for the
	// world thread before falling back to the cached snapshot.
	refreshTimeout = 2 * time.Second
	// timeSyncEveryBatches interleaves a TIME_SYNC frame after every
	// Nth position batch.
	timeSyncEveryBatches = 60
)

// ErrEntityNotFound is surfaced verbatim to clients.
var ErrEntityNotFound = errors.New("Entity not found")

// ErrWorldNotFound is surfaced verbatim to clients.
var ErrWorldNotFound = errors.New("World not found")

// Broadcaster fans a frame out to all initialized sessions.
type Broadcaster interface {
	Broadcast(f *protocol.Frame)
}

// Inspector wires the pipeline together. It implements track.Sink.
type Inspector struct {
	world ecs.World
	cfg   *config.Manager
	ser   *serialize.Serializer
	cache *cache.Cache
	col   *collect.Collector
	query *query.Service
	met   *metrics.Metrics

	mu    sync.Mutex
	bcast Broadcaster

	paused     atomic.Bool
	batchCount atomic.Int64

	stopOnce sync.Once
	stoppers []func()
}

// New builds the inspector core.
func New(world ecs.World, cfg *config.Manager, ser *serialize.Serializer, c *cache.Cache, col *collect.Collector, q *query.Service, met *metrics.Metrics) *Inspector {
	return &Inspector{
		world: world,
		cfg:   cfg,
		ser:   ser,
		cache: c,
		col:   col,
		query: q,
		met:   met,
	}
}

// SetBroadcaster attaches the session fabric.
func (in *Inspector) SetBroadcaster(b Broadcaster) {
	in.mu.Lock()
	in.bcast = b
	in.mu.Unlock()
}

// RegisterStopper adds a teardown hook run once on Shutdown.
func (in *Inspector) RegisterStopper(fn func()) {
	in.mu.Lock()
	in.stoppers = append(in.stoppers, fn)
	in.mu.Unlock()
}

func (in *Inspector) broadcast(t protocol.MessageType, data any) {
	in.mu.Lock()
	b := in.bcast
	in.mu.Unlock()
	if b == nil {
		return
	}
	b.Broadcast(protocol.MustFrame(t, data))
}

// broadcastEvent is the pause-gated variant used by the entity event
// stream. Request/response traffic and CONFIG_SYNC bypass the pause.
func (in *Inspector) broadcastEvent(t protocol.MessageType, data any) {
	if in.paused.Load() {
		return
	}
	in.broadcast(t, data)
}

// OnEntitySpawn caches the snapshot and announces the spawn. Runs on
// the world thread.
func (in *Inspector) OnEntitySpawn(snap *model.EntitySnapshot, refs map[string]any) {
	in.cache.PutEntity(snap.EntityID, snap, refs)
	in.met.CachedEntities.Set(float64(in.cache.Size()))
	in.broadcastEvent(protocol.TypeEntitySpawn, snap)
}

// OnEntityDespawn drops the cache entry and announces the despawn.
func (in *Inspector) OnEntityDespawn(id int64, uuid string) {
	in.cache.RemoveEntity(id)
	in.met.CachedEntities.Set(float64(in.cache.Size()))
	in.broadcastEvent(protocol.TypeEntityDespawn, map[string]any{
		"entityId": id,
		"uuid":     uuid,
	})
}

// OnEntityUpdate diffs the new snapshot against the cached one, stores
// it, and announces the update with the changed component names.
func (in *Inspector) OnEntityUpdate(snap *model.EntitySnapshot, refs map[string]any) {
	var prev *model.EntitySnapshot
	if entry, ok := in.cache.GetEntity(snap.EntityID); ok {
		prev = entry.Snapshot
	}
	changed := ChangedComponents(prev, snap)
	in.cache.PutEntity(snap.EntityID, snap, refs)
	in.met.EntityUpdates.Inc()
	in.broadcastEvent(protocol.TypeEntityUpdate, map[string]any{
		"snapshot":          snap,
		"changedComponents": changed,
	})
}

// OnPositionBatch announces the batch and interleaves a TIME_SYNC
// frame after every 60th one.
func (in *Inspector) OnPositionBatch(batch []model.PositionUpdate) {
	in.met.PositionBatches.Inc()
	in.broadcastEvent(protocol.TypePositionBatch, map[string]any{"updates": batch})
	if in.batchCount.Add(1)%timeSyncEveryBatches == 0 {
		in.broadcastTimeSync()
	}
}

func (in *Inspector) broadcastTimeSync() {
	gt := in.world.GameTime()
	in.broadcastEvent(protocol.TypeTimeSync, map[string]any{
		"gameTimeEpochMilli": gt.EpochMilli,
		"gameTimeRate":       gt.Rate,
	})
}

// ChangedComponents returns the names of components that differ from
// prev or are new in next. A nil prev marks everything changed.
func ChangedComponents(prev, next *model.EntitySnapshot) []string {
	changed := make([]string, 0, next.Components.Len())
	next.Components.Range(func(name string, v any) bool {
		nd, _ := v.(*model.ComponentData)
		if prev == nil || !prev.Component(name).Equal(nd) {
			changed = append(changed, name)
		}
		return true
	})
	return changed
}

// OnRequestSnapshot builds the world view from the cache, not a live
// rescan.
func (in *Inspector) OnRequestSnapshot(worldID string) (*model.WorldSnapshot, error) {
	if worldID != "" && worldID != in.world.ID() {
		return nil, ErrWorldNotFound
	}
	gt := in.world.GameTime()
	return &model.WorldSnapshot{
		WorldID:           in.world.ID(),
		WorldName:         in.world.Name(),
		Entities:          in.cache.Entities(),
		GameTimeEpochMill: gt.EpochMilli,
		GameTimeRate:      gt.Rate,
		ServerVersion:     ServerVersion,
	}, nil
}

// RefreshEntity schedules a fresh collection on the world thread and
// waits up to two seconds. On timeout the cached snapshot is returned;
// the scheduled collection still lands in the cache when it completes.
func (in *Inspector) RefreshEntity(id int64) (*model.EntitySnapshot, bool) {
	cfg := in.cfg.Get()
	cached := func() (*model.EntitySnapshot, bool) {
		entry, ok := in.cache.GetEntity(id)
		if !ok {
			return nil, false
		}
		return entry.Snapshot, true
	}
	if !cfg.Debug.OnDemandRefresh {
		return cached()
	}

	done := make(chan *model.EntitySnapshot, 1)
	opt := collect.Options{
		IncludeNPCs:    cfg.IncludeNPCs,
		IncludePlayers: cfg.IncludePlayers,
		IncludeItems:   cfg.IncludeItems,
	}
	in.world.Execute(func() {
		snap, refs, ok := in.col.ByID(in.world, id, opt)
		if ok {
			in.cache.PutEntity(id, snap, refs)
			done <- snap
			return
		}
		done <- nil
	})

	select {
	case snap := <-done:
		if snap == nil {
			return cached()
		}
		return snap, true
	case <-time.After(refreshTimeout):
		in.met.RefreshTimeouts.Inc()
		slog.Warn("Entity refresh timed out, serving cached snapshot", "entityId", id)
		return cached()
	}
}

// OnRequestEntityDetail refreshes then returns the snapshot.
func (in *Inspector) OnRequestEntityDetail(id int64) (*model.EntitySnapshot, error) {
	snap, ok := in.RefreshEntity(id)
	if !ok {
		return nil, ErrEntityNotFound
	}
	return snap, nil
}

// OnRequestEntityList answers a filtered listing from the cache.
func (in *Inspector) OnRequestEntityList(filter, search string, limit, offset int) []model.EntityListItem {
	return in.query.ListEntities(filter, search, limit, offset)
}

// OnRequestTimers refreshes then derives the timer view. Gated by
// debug.timerInspection.
func (in *Inspector) OnRequestTimers(id int64) []model.TimerInfo {
	if !in.cfg.Get().Debug.TimerInspection {
		return []model.TimerInfo{}
	}
	in.RefreshEntity(id)
	timers := in.query.GetTimers(id)
	if timers == nil {
		timers = []model.TimerInfo{}
	}
	return timers
}

// OnRequestAlarms refreshes then derives the alarm view. Gated by
// debug.alarmInspection.
func (in *Inspector) OnRequestAlarms(id int64) map[string]model.AlarmInfo {
	if !in.cfg.Get().Debug.AlarmInspection {
		return map[string]model.AlarmInfo{}
	}
	in.RefreshEntity(id)
	alarms := in.query.GetAlarms(id)
	if alarms == nil {
		alarms = map[string]model.AlarmInfo{}
	}
	return alarms
}

// FindByTimerState scans the cache for entities with a timer in the
// given state. Gated by debug.timerInspection.
func (in *Inspector) FindByTimerState(state string, limit int) []model.EntityListItem {
	if !in.cfg.Get().Debug.TimerInspection {
		return []model.EntityListItem{}
	}
	items := in.query.FindByTimerState(state, limit)
	if items == nil {
		items = []model.EntityListItem{}
	}
	return items
}

// FindByAlarm scans the cache for entities carrying the named alarm.
// Gated by debug.alarmInspection.
func (in *Inspector) FindByAlarm(name, state string, limit int) []model.EntityListItem {
	if !in.cfg.Get().Debug.AlarmInspection {
		return []model.EntityListItem{}
	}
	items := in.query.FindByAlarm(name, state, limit)
	if items == nil {
		items = []model.EntityListItem{}
	}
	return items
}

// OnRequestInstructions refreshes then walks the behavior tree on the
// world thread. Gated by debug.instructionInspection.
func (in *Inspector) OnRequestInstructions(id int64) *model.InstructionTree {
	if !in.cfg.Get().Debug.InstructionInspection {
		return nil
	}
	in.RefreshEntity(id)

	done := make(chan *model.InstructionTree, 1)
	in.world.Execute(func() {
		tree, ok := in.query.GetInstructions(id)
		if !ok {
			done <- nil
			return
		}
		done <- tree
	})
	select {
	case tree := <-done:
		return tree
	case <-time.After(refreshTimeout):
		slog.Warn("Instruction walk timed out", "entityId", id)
		return nil
	}
}

// OnRequestExpand resolves a dotted path against the live references.
// Gated by debug.lazyExpansion.
func (in *Inspector) OnRequestExpand(id int64, path string) (any, error) {
	if !in.cfg.Get().Debug.LazyExpansion {
		return nil, errors.New("Failed to expand path")
	}
	v := in.cache.ExpandEntityPath(id, path)
	if v == nil {
		return nil, fmt.Errorf("Failed to expand path: %s", path)
	}
	return v, nil
}

// OnRequestPacketExpand resolves a dotted path against a logged
// packet's original object.
func (in *Inspector) OnRequestPacketExpand(packetID int64, path string) (any, error) {
	if !in.cfg.Get().Debug.LazyExpansion {
		return nil, errors.New("Failed to expand path")
	}
	v := in.cache.ExpandPacketPath(packetID, path)
	if v == nil {
		return nil, fmt.Errorf("Failed to expand path: %s", path)
	}
	return v, nil
}

// OnConfigUpdate applies whitelisted keys, resizes the cache and
// broadcasts the resulting config. Returns the applied key names.
func (in *Inspector) OnConfigUpdate(updates map[string]any) []string {
	applied := in.cfg.Apply(updates)
	cfg := in.cfg.Get()
	in.cache.SetLimits(cfg.MaxCachedEntities, cfg.MaxCachedPackets)
	in.broadcast(protocol.TypeConfigSync, cfg)
	return applied
}

// Config returns the current runtime configuration.
func (in *Inspector) Config() config.Config {
	return in.cfg.Get()
}

// FeatureInfo reports the debug gates as a flat map.
func (in *Inspector) FeatureInfo() map[string]bool {
	d := in.cfg.Get().Debug
	return map[string]bool{
		"entityLifecycle":       d.EntityLifecycle,
		"positionTracking":      d.PositionTracking,
		"onDemandRefresh":       d.OnDemandRefresh,
		"alarmInspection":       d.AlarmInspection,
		"timerInspection":       d.TimerInspection,
		"instructionInspection": d.InstructionInspection,
		"lazyExpansion":         d.LazyExpansion,
		"assetBrowser":          d.AssetBrowser,
		"patchManagement":       d.PatchManagement,
		"entityActions":         d.EntityActions,
	}
}

// SetPaused suspends or resumes broadcasting. The cache keeps updating
// while paused so a resume starts from fresh state.
func (in *Inspector) SetPaused(paused bool) {
	in.paused.Store(paused)
}

// Paused reports the broadcast pause state.
func (in *Inspector) Paused() bool {
	return in.paused.Load()
}

// SetEntitySurname schedules a surname write on the world thread. The
// empty string return means the operation was scheduled.
func (in *Inspector) SetEntitySurname(id int64, text string) string {
	if !in.cfg.Get().Debug.EntityActions {
		return "Entity actions are disabled via debug config"
	}
	entry, ok := in.cache.GetEntity(id)
	if !ok || entry.Snapshot.UUID == "" {
		return "Entity not found"
	}
	uuid := entry.Snapshot.UUID
	in.world.Execute(func() {
		h := in.findHandle(uuid)
		if h == nil {
			slog.Warn("Surname target vanished before the world thread ran", "entityId", id)
			return
		}
		h.SetComponent("Surname", &ecs.Surname{Text: text})
		h.SetComponent("Nameplate", &ecs.Nameplate{Text: text})
	})
	return ""
}

// TeleportToEntity schedules a teleport of every connected player to
// the entity's position.
func (in *Inspector) TeleportToEntity(id int64) string {
	if !in.cfg.Get().Debug.EntityActions {
		return "Entity actions are disabled via debug config"
	}
	entry, ok := in.cache.GetEntity(id)
	if !ok {
		return "Entity not found"
	}
	target := ecs.Vec3{
		X: entry.Snapshot.Position.X,
		Y: entry.Snapshot.Position.Y,
		Z: entry.Snapshot.Position.Z,
	}
	in.world.Execute(func() {
		// Prefer the live transform over the cached position.
		if tc := in.liveTransform(id); tc != nil {
			target = tc.Position
		}
		for _, p := range in.world.Players() {
			p.SetComponent("Teleport", &ecs.Teleport{Target: target})
		}
	})
	return ""
}

// findHandle scans the world for the entity with the given UUID. Must
// run on the world thread.
func (in *Inspector) findHandle(uuid string) ecs.EntityHandle {
	for _, chunk := range in.world.Chunks() {
		for i := 0; i < chunk.Count(); i++ {
			if h := chunk.Handle(i); h != nil && h.UUID() == uuid {
				return h
			}
		}
	}
	return nil
}

func (in *Inspector) liveTransform(id int64) *ecs.TransformComponent {
	for _, chunk := range in.world.Chunks() {
		for i := 0; i < chunk.Count(); i++ {
			if chunk.ReferenceIndex(i) != id {
				continue
			}
			switch tc := chunk.Component(i, "TransformComponent").(type) {
			case *ecs.TransformComponent:
				return tc
			case ecs.TransformComponent:
				return &tc
			}
		}
	}
	return nil
}

// PacketObserved routes one observed packet through redaction into the
// packet log. Safe to call from any thread.
func (in *Inspector) PacketObserved(direction, packetName string, packetID int32, handlerName string, packet any) {
	cfg := in.cfg.Get()
	if !cfg.Enabled || !cfg.PacketLogEnabled {
		return
	}
	for _, excluded := range cfg.PacketLogExcluded {
		if excluded == packetName {
			return
		}
	}
	entry := &model.PacketLogEntry{
		Direction:   direction,
		PacketName:  packetName,
		PacketID:    packetID,
		HandlerName: handlerName,
		Data:        in.ser.SerializePacket(packetName, packet),
		Timestamp:   time.Now().UnixMilli(),
	}
	in.cache.PutPacket(entry, packet)
	in.met.CachedPackets.Set(float64(in.cache.PacketCount()))
	in.broadcastEvent(protocol.TypePacketLog, entry)
}

// NotifyAssetsRefreshed tells clients to drop their asset caches.
func (in *Inspector) NotifyAssetsRefreshed() {
	in.broadcast(protocol.TypeAssetsRefreshed, nil)
}

// Shutdown clears the caches and runs the registered stop hooks.
// Idempotent.
func (in *Inspector) Shutdown() {
	in.stopOnce.Do(func() {
		in.paused.Store(true)
		in.mu.Lock()
		stoppers := in.stoppers
		in.bcast = nil
		in.mu.Unlock()
		for _, stop := range stoppers {
			stop()
		}
		in.cache.Clear()
		in.met.CachedEntities.Set(0)
		in.met.CachedPackets.Set(0)
		slog.Info("Inspector stopped")
	})
}
