package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/ecs"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/model"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/serialize"
)

func allKinds() Options {
	return Options{IncludeNPCs: true, IncludePlayers: true, IncludeItems: true}
}

// ============================================================================
// SNAPSHOT BUILDING
// ============================================================================

func TestCollector_WellKnownComponentsComeFirst(t *testing.T) {
	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	col := New(serialize.New())

	e := world.Spawn(
		&ecs.Timers{},
		&ecs.NPCEntity{Name: "Guard"},
		&ecs.ModelComponent{AssetID: "npc/guard"},
		&ecs.TransformComponent{Position: ecs.Vec3{X: 1, Y: 64, Z: -3}, Yaw: 90},
	)

	snap, refs, ok := col.FromHandle(e, allKinds())
	require.True(t, ok)

	assert.Equal(t, []string{
		"TransformComponent", "ModelComponent", "NPCEntity", "Timers",
	}, snap.Components.Keys(), "fixed order first, then attachment order")

	assert.Equal(t, 1.0, snap.Position.X)
	assert.Equal(t, float32(90), snap.Rotation.Yaw)
	assert.Equal(t, "npc/guard", snap.ModelAssetID)
	assert.Equal(t, "NPC", snap.EntityType)
	assert.Equal(t, e.UUID(), snap.UUID)
	assert.Equal(t, HashUUID(e.UUID()), snap.EntityID)

	require.Contains(t, refs, "NPCEntity")
	assert.Same(t, e.Component("NPCEntity"), refs["NPCEntity"])
}

func TestCollector_UuidComponentOverridesHandleUUID(t *testing.T) {
	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	col := New(serialize.New())

	e := world.Spawn(
		&ecs.TransformComponent{},
		&ecs.UuidComponent{Value: "fixed-uuid"},
	)

	snap, _, ok := col.FromHandle(e, allKinds())
	require.True(t, ok)
	assert.Equal(t, "fixed-uuid", snap.UUID)
}

func TestCollector_ByIDScansChunks(t *testing.T) {
	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	col := New(serialize.New())

	world.Spawn(&ecs.TransformComponent{})
	e := world.Spawn(&ecs.TransformComponent{Position: ecs.Vec3{X: 5}})

	var (
		got     *model.EntitySnapshot
		ok      bool
		missing bool
	)
	world.ExecuteWait(func() {
		got, _, ok = col.ByID(world, e.Ref(), allKinds())
		_, _, missing = col.ByID(world, 9999, allKinds())
	})

	require.True(t, ok)
	assert.Equal(t, e.Ref(), got.EntityID)
	assert.Equal(t, 5.0, got.Position.X)
	assert.False(t, missing)
}

// ============================================================================
// INCLUDE FILTER
// ============================================================================

func TestCollector_FilterExcludesNPCsAndItems(t *testing.T) {
	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	col := New(serialize.New())

	npc := world.Spawn(&ecs.TransformComponent{}, &ecs.NPCEntity{Name: "n"})
	item := world.Spawn(&ecs.TransformComponent{}, &ecs.Item{StackSize: 4})

	opt := Options{IncludeNPCs: false, IncludePlayers: true, IncludeItems: true}
	_, _, ok := col.FromHandle(npc, opt)
	assert.False(t, ok)

	opt = Options{IncludeNPCs: true, IncludePlayers: true, IncludeItems: false}
	_, _, ok = col.FromHandle(item, opt)
	assert.False(t, ok)
	_, _, ok = col.FromHandle(npc, opt)
	assert.True(t, ok)
}

func TestCollector_PlayerFlagNeverHidesPlayers(t *testing.T) {
	world := ecs.NewMemWorld("w", "w")
	defer world.Close()
	col := New(serialize.New())

	player := world.Spawn(&ecs.TransformComponent{}, &ecs.Player{Name: "alex"})

	// Collection never stamps entityType "Player", so the flag has no
	// entity to match. This mirrors the host's long-standing behavior.
	_, _, ok := col.FromHandle(player, Options{IncludePlayers: false})
	assert.True(t, ok)
}

// ============================================================================
// ID HASHING
// ============================================================================

func TestHashUUID_StableAndSigned(t *testing.T) {
	a := HashUUID("0190f6a2-0000-7000-8000-000000000001")
	b := HashUUID("0190f6a2-0000-7000-8000-000000000001")
	c := HashUUID("0190f6a2-0000-7000-8000-000000000002")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, int64(int32(a)), a, "ids stay inside 32-bit range")
}
