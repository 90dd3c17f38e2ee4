package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/collect"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/config"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/ecs"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/model"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/serialize"
)

// recordingSink captures tracker output in call order.
type recordingSink struct {
	spawns   []*model.EntitySnapshot
	despawns []int64
	updates  []*model.EntitySnapshot
	batches  [][]model.PositionUpdate
}

func (r *recordingSink) OnEntitySpawn(s *model.EntitySnapshot, refs map[string]any) {
	r.spawns = append(r.spawns, s)
}
func (r *recordingSink) OnEntityDespawn(id int64, uuid string) {
	r.despawns = append(r.despawns, id)
}
func (r *recordingSink) OnEntityUpdate(s *model.EntitySnapshot, refs map[string]any) {
	r.updates = append(r.updates, s)
}
func (r *recordingSink) OnPositionBatch(batch []model.PositionUpdate) {
	r.batches = append(r.batches, batch)
}

func newTestTracker(cfg config.Config) (*Tracker, *recordingSink) {
	sink := &recordingSink{}
	col := collect.New(serialize.New())
	return New(col, sink, func() config.Config { return cfg }), sink
}

// ============================================================================
// POSITION BATCHING
// ============================================================================

func TestTracker_ThrottlesToEveryNthTick(t *testing.T) {
	cfg := config.Default()
	cfg.UpdateIntervalTicks = 3
	tr, sink := newTestTracker(cfg)

	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	tc := &ecs.TransformComponent{Position: ecs.Vec3{X: 0, Y: 64, Z: 0}}
	world.Spawn(tc)
	world.RegisterTickObserver(tr)

	// Six ticks, moving 0.05 on X each tick. Only ticks 3 and 6 are
	// processed, so exactly two updates accumulate.
	for i := 0; i < 6; i++ {
		world.ExecuteWait(func() { tc.Position.X += 0.05 })
		world.Tick()
	}
	tr.FlushPositionBatch()

	require.Len(t, sink.batches, 1)
	batch := sink.batches[0]
	require.Len(t, batch, 2)
	assert.InDelta(t, 0.15, batch[0].X, 1e-9)
	assert.InDelta(t, 0.30, batch[1].X, 1e-9)
}

func TestTracker_IgnoresSubEpsilonMovement(t *testing.T) {
	cfg := config.Default()
	cfg.UpdateIntervalTicks = 1
	tr, sink := newTestTracker(cfg)

	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	tc := &ecs.TransformComponent{}
	world.Spawn(tc)
	world.RegisterTickObserver(tr)

	// First tick reports the initial offset, after that cumulative
	// movement stays below the 0.01 epsilon.
	world.ExecuteWait(func() { tc.Position.X = 1 })
	world.Tick()
	for i := 0; i < 4; i++ {
		world.ExecuteWait(func() { tc.Position.X += 0.002 })
		world.Tick()
	}
	tr.FlushPositionBatch()

	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 1)
}

func TestTracker_FlushWithEmptyBatchEmitsNothing(t *testing.T) {
	cfg := config.Default()
	tr, sink := newTestTracker(cfg)
	tr.FlushPositionBatch()
	assert.Empty(t, sink.batches)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

func TestTracker_SpawnRequiresTransform(t *testing.T) {
	cfg := config.Default()
	tr, sink := newTestTracker(cfg)

	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	world.RegisterLifecycleObserver(tr)

	world.Spawn(&ecs.ModelComponent{AssetID: "item/rock"})
	assert.Empty(t, sink.spawns, "no transform, no spawn event")

	world.Spawn(&ecs.TransformComponent{Position: ecs.Vec3{X: 1}})
	require.Len(t, sink.spawns, 1)
	assert.Equal(t, 1.0, sink.spawns[0].Position.X)
}

func TestTracker_DespawnUsesUUIDHash(t *testing.T) {
	cfg := config.Default()
	tr, sink := newTestTracker(cfg)

	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	world.RegisterLifecycleObserver(tr)

	e := world.Spawn(&ecs.TransformComponent{})
	world.Despawn(e)

	require.Len(t, sink.despawns, 1)
	assert.Equal(t, collect.HashUUID(e.UUID()), sink.despawns[0])
}

func TestTracker_DespawnDropsTrackedEntry(t *testing.T) {
	cfg := config.Default()
	cfg.UpdateIntervalTicks = 1
	tr, _ := newTestTracker(cfg)

	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	world.RegisterLifecycleObserver(tr)
	world.RegisterTickObserver(tr)

	e := world.Spawn(&ecs.TransformComponent{Position: ecs.Vec3{X: 5}})
	world.Tick()
	require.Contains(t, tr.tracked, e.Ref())

	world.Despawn(e)
	assert.NotContains(t, tr.tracked, e.Ref(),
		"despawn frees the per-entity throttle state")
	assert.Empty(t, tr.tracked)
}

func TestTracker_DisabledGatesSuppressEvents(t *testing.T) {
	cfg := config.Default()
	cfg.Debug.EntityLifecycle = false
	cfg.Debug.PositionTracking = false
	cfg.UpdateIntervalTicks = 1
	tr, sink := newTestTracker(cfg)

	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	world.RegisterLifecycleObserver(tr)
	world.RegisterTickObserver(tr)

	e := world.Spawn(&ecs.TransformComponent{Position: ecs.Vec3{X: 5}})
	world.Tick()
	world.Despawn(e)
	tr.FlushPositionBatch()

	assert.Empty(t, sink.spawns)
	assert.Empty(t, sink.despawns)
	assert.Empty(t, sink.batches)
}
