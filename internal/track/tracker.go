// Package track hosts the two ECS observers: the lifecycle observer
// for entity add/remove and the per-tick observer that batches position
// deltas and throttles full-component refreshes.
package track

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/collect"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/config"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/ecs"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/model"
)

const (
	// positionEpsilon is the minimum per-axis delta that makes a
	// position report-worthy.
	positionEpsilon = 0.01
	// fullUpdateIntervals is how many processed intervals pass between
	// full-component refresh attempts.
	fullUpdateIntervals = 10
	// fullUpdateMinMillis is the floor between full refreshes of one
	// entity.
	fullUpdateMinMillis = 1000
	// FlushPeriod is the cadence of the position-batch flush job.
	FlushPeriod = 50 * time.Millisecond
)

// Sink receives tracker output. The inspector core implements it.
type Sink interface {
	OnEntitySpawn(snapshot *model.EntitySnapshot, refs map[string]any)
	OnEntityDespawn(id int64, uuid string)
	OnEntityUpdate(snapshot *model.EntitySnapshot, refs map[string]any)
	OnPositionBatch(batch []model.PositionUpdate)
}

type trackedPosition struct {
	x, y, z        float64
	yaw, pitch     float32
	tickCounter    int
	intervals      int
	lastFullUpdate int64 // unix millis
}

// Tracker implements both ECS observers. All observer callbacks and
// FlushPositionBatch run on the world thread; configuration reads go
// through the supplied provider.
type Tracker struct {
	col     *collect.Collector
	sink    Sink
	cfgFn   func() config.Config
	nowFn   func() time.Time
	tracked map[int64]*trackedPosition
	batch   []model.PositionUpdate

	// removalSeq backs removal ids for entities with no readable UUID.
	removalSeq atomic.Int64

	mu sync.Mutex // guards batch handoff to the flush job
}

// New builds a tracker feeding sink.
func New(col *collect.Collector, sink Sink, cfgFn func() config.Config) *Tracker {
	return &Tracker{
		col:     col,
		sink:    sink,
		cfgFn:   cfgFn,
		nowFn:   time.Now,
		tracked: make(map[int64]*trackedPosition),
	}
}

func (t *Tracker) options() (config.Config, collect.Options) {
	cfg := t.cfgFn()
	return cfg, collect.Options{
		IncludeNPCs:    cfg.IncludeNPCs,
		IncludePlayers: cfg.IncludePlayers,
		IncludeItems:   cfg.IncludeItems,
	}
}

// OnEntityAdded collects a fresh snapshot for any added entity carrying
// a transform and reports the spawn.
func (t *Tracker) OnEntityAdded(h ecs.EntityHandle) {
	cfg, opt := t.options()
	if !cfg.Enabled || !cfg.Debug.EntityLifecycle {
		return
	}
	if h.Component("TransformComponent") == nil {
		return
	}
	snap, refs, ok := t.col.FromHandle(h, opt)
	if !ok {
		return
	}
	t.sink.OnEntitySpawn(snap, refs)
}

// OnEntityRemoved derives a removal id and reports the despawn. The id
// is the UUID hash when readable, else a monotonic fallback so the
// event still carries a unique id.
func (t *Tracker) OnEntityRemoved(h ecs.EntityHandle) {
	cfg, _ := t.options()
	if !cfg.Enabled || !cfg.Debug.EntityLifecycle {
		return
	}
	uuid := h.UUID()
	var id int64
	if uuid != "" {
		id = collect.HashUUID(uuid)
	} else {
		id = time.Now().UnixNano() + t.removalSeq.Add(1)
	}
	// tracked is keyed by reference index, not by the event id.
	delete(t.tracked, h.Ref())
	t.sink.OnEntityDespawn(id, uuid)
}

// OnTick throttles per-entity work to every updateIntervalTicks ticks,
// batching position deltas and scheduling periodic full refreshes.
func (t *Tracker) OnTick(chunk ecs.Chunk, index int) {
	cfg, opt := t.options()
	if !cfg.Enabled || !cfg.Debug.PositionTracking {
		return
	}
	id := chunk.ReferenceIndex(index)
	tp := t.tracked[id]
	if tp == nil {
		tp = &trackedPosition{}
		t.tracked[id] = tp
	}

	tp.tickCounter++
	if tp.tickCounter < cfg.UpdateIntervalTicks {
		return
	}
	tp.tickCounter = 0

	tc, ok := transformOf(chunk, index)
	if !ok {
		return
	}
	if abs(tc.Position.X-tp.x) > positionEpsilon ||
		abs(tc.Position.Y-tp.y) > positionEpsilon ||
		abs(tc.Position.Z-tp.z) > positionEpsilon {
		var uuid string
		if h := chunk.Handle(index); h != nil {
			uuid = h.UUID()
		}
		t.mu.Lock()
		t.batch = append(t.batch, model.PositionUpdate{
			EntityID: id,
			UUID:     uuid,
			X:        tc.Position.X,
			Y:        tc.Position.Y,
			Z:        tc.Position.Z,
			Yaw:      tc.Yaw,
			Pitch:    tc.Pitch,
		})
		t.mu.Unlock()
		tp.x, tp.y, tp.z = tc.Position.X, tc.Position.Y, tc.Position.Z
		tp.yaw, tp.pitch = tc.Yaw, tc.Pitch
	}

	tp.intervals++
	if tp.intervals%fullUpdateIntervals != 0 {
		return
	}
	now := t.nowFn().UnixMilli()
	if now-tp.lastFullUpdate < fullUpdateMinMillis {
		return
	}
	tp.lastFullUpdate = now
	if snap, refs, ok := t.col.FromChunk(chunk, index, opt); ok {
		t.sink.OnEntityUpdate(snap, refs)
	}
}

// FlushPositionBatch emits the accumulated batch as one event and
// clears it. Scheduled onto the world thread by the Flusher.
func (t *Tracker) FlushPositionBatch() {
	t.mu.Lock()
	batch := t.batch
	t.batch = nil
	t.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	t.sink.OnPositionBatch(batch)
}

func transformOf(chunk ecs.Chunk, index int) (*ecs.TransformComponent, bool) {
	switch v := chunk.Component(index, "TransformComponent").(type) {
	case *ecs.TransformComponent:
		return v, true
	case ecs.TransformComponent:
		return &v, true
	}
	return nil, false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Flusher drives the periodic flush: a dedicated ticker goroutine that
// posts FlushPositionBatch onto the world thread. Stop is idempotent.
type Flusher struct {
	world   ecs.World
	tracker *Tracker
	stop    chan struct{}
	once    sync.Once
}

// NewFlusher builds a flusher for world.
func NewFlusher(world ecs.World, tracker *Tracker) *Flusher {
	return &Flusher{world: world, tracker: tracker, stop: make(chan struct{})}
}

// Start launches the flush loop.
func (f *Flusher) Start() {
	go func() {
		ticker := time.NewTicker(FlushPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.world.Execute(f.tracker.FlushPositionBatch)
			case <-f.stop:
				return
			}
		}
	}()
}

// Stop halts the flush loop.
func (f *Flusher) Stop() {
	f.once.Do(func() { close(f.stop) })
}
