package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/model"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/serialize"
)

func snap(id int64) *model.EntitySnapshot {
	return &model.EntitySnapshot{
		EntityID:   id,
		UUID:       fmt.Sprintf("uuid-%d", id),
		Components: serialize.NewOrderedMap(),
	}
}

// ============================================================================
// EVICTION AND ORDERING
// ============================================================================

func TestCache_EvictsOldestByInsertionOrder(t *testing.T) {
	c := New(serialize.New(), 3, 10)
	for id := int64(1); id <= 5; id++ {
		c.PutEntity(id, snap(id), nil)
	}

	assert.Equal(t, 3, c.Size())
	assert.Equal(t, []int64{3, 4, 5}, c.EntityIDs())
	_, ok := c.GetEntity(1)
	assert.False(t, ok)
	_, ok = c.GetEntity(2)
	assert.False(t, ok)
}

func TestCache_RewriteDoesNotDuplicateOrder(t *testing.T) {
	c := New(serialize.New(), 3, 10)
	c.PutEntity(1, snap(1), nil)
	c.PutEntity(2, snap(2), nil)
	c.PutEntity(1, snap(1), nil) // rewrite keeps the original slot

	assert.Equal(t, []int64{1, 2}, c.EntityIDs())
}

func TestCache_PutReplacesSnapshotAndRefsTogether(t *testing.T) {
	c := New(serialize.New(), 10, 10)
	first := snap(7)
	c.PutEntity(7, first, map[string]any{"A": 1})

	second := snap(7)
	c.PutEntity(7, second, map[string]any{"B": 2})

	entry, ok := c.GetEntity(7)
	require.True(t, ok)
	assert.Same(t, second, entry.Snapshot)
	_, hasOld := entry.Refs["A"]
	assert.False(t, hasOld)
	_, hasNew := entry.Refs["B"]
	assert.True(t, hasNew)
}

func TestCache_SetLimitsEvictsImmediately(t *testing.T) {
	c := New(serialize.New(), 10, 10)
	for id := int64(1); id <= 6; id++ {
		c.PutEntity(id, snap(id), nil)
	}
	c.SetLimits(2, 10)
	assert.Equal(t, []int64{5, 6}, c.EntityIDs())
}

// ============================================================================
// PACKET LOG
// ============================================================================

func TestCache_PacketIDsAreMonotonic(t *testing.T) {
	c := New(serialize.New(), 10, 2)
	id1 := c.PutPacket(&model.PacketLogEntry{PacketName: "A"}, nil)
	id2 := c.PutPacket(&model.PacketLogEntry{PacketName: "B"}, nil)
	id3 := c.PutPacket(&model.PacketLogEntry{PacketName: "C"}, nil)

	assert.Equal(t, id1+1, id2)
	assert.Equal(t, id2+1, id3)

	_, ok := c.GetPacket(id1)
	assert.False(t, ok, "oldest packet evicted beyond the bound")
	p, ok := c.GetPacket(id3)
	require.True(t, ok)
	assert.Equal(t, "C", p.PacketName)
}

// ============================================================================
// PATH EXPANSION
// ============================================================================

type fooComponent struct {
	Bar []int
}

func TestCache_ExpandEntityPath_RoundTrip(t *testing.T) {
	c := New(serialize.New(), 10, 10)
	c.PutEntity(42, snap(42), map[string]any{
		"Foo": &fooComponent{Bar: []int{10, 20, 30}},
	})

	v := c.ExpandEntityPath(42, "Foo.bar.1")
	assert.EqualValues(t, 20, v)
}

func TestCache_ExpandEntityPath_MissesReturnNil(t *testing.T) {
	c := New(serialize.New(), 10, 10)
	c.PutEntity(42, snap(42), map[string]any{
		"Foo": &fooComponent{Bar: []int{10}},
	})

	assert.Nil(t, c.ExpandEntityPath(42, "Foo.missing"))
	assert.Nil(t, c.ExpandEntityPath(42, "Foo.bar.9"))
	assert.Nil(t, c.ExpandEntityPath(42, "Nope.bar"))
	assert.Nil(t, c.ExpandEntityPath(99, "Foo.bar"))
	assert.Nil(t, c.ExpandEntityPath(42, ""))
}

func TestCache_ExpandPacketPath(t *testing.T) {
	c := New(serialize.New(), 10, 10)
	id := c.PutPacket(&model.PacketLogEntry{PacketName: "Foo"}, &fooComponent{Bar: []int{5, 6}})

	assert.EqualValues(t, 6, c.ExpandPacketPath(id, "bar.1"))
	assert.Nil(t, c.ExpandPacketPath(id, "bar.7"))
}

type connectPacket struct {
	Username      string
	IdentityToken string
}

type connectEnvelope struct {
	Inner connectPacket
}

func TestCache_ExpandPacketPathKeepsRedaction(t *testing.T) {
	c := New(serialize.New(), 10, 10)
	id := c.PutPacket(&model.PacketLogEntry{PacketName: "Connect"},
		&connectEnvelope{Inner: connectPacket{Username: "alex", IdentityToken: "abc123"}})

	assert.Equal(t, serialize.Redacted, c.ExpandPacketPath(id, "inner.identityToken"),
		"expanding straight into a masked field yields the literal")

	inner, ok := c.ExpandPacketPath(id, "inner").(*serialize.OrderedMap)
	require.True(t, ok)
	user, _ := inner.Get("username")
	assert.Equal(t, "alex", user)
	token, _ := inner.Get("identityToken")
	assert.Equal(t, serialize.Redacted, token,
		"masked fields stay masked inside expanded structs")
}

func TestCache_ClearDropsEverything(t *testing.T) {
	c := New(serialize.New(), 10, 10)
	c.PutEntity(1, snap(1), nil)
	c.PutPacket(&model.PacketLogEntry{}, nil)
	c.Clear()

	assert.Equal(t, 0, c.Size())
	assert.Empty(t, c.EntityIDs())
}
