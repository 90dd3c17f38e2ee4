// Package collect builds entity snapshots plus their live
// component-reference maps. Every operation here must run on the
// world's cooperative thread.
package collect

import (
	"hash/fnv"
	"time"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/ecs"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/model"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/serialize"
)

// Options filters which entity kinds are collected. Types other than
// NPCs, players and items are always included.
type Options struct {
	IncludeNPCs    bool
	IncludePlayers bool
	IncludeItems   bool
}

// Collector converts live entities into snapshots.
type Collector struct {
	ser *serialize.Serializer
}

// New returns a collector backed by the given serializer.
func New(ser *serialize.Serializer) *Collector {
	return &Collector{ser: ser}
}

// componentSource abstracts chunk-indexed and handle-based access.
type componentSource interface {
	uuid() string
	types() []string
	component(name string) any
}

type chunkSource struct {
	chunk ecs.Chunk
	index int
}

func (s chunkSource) uuid() string {
	if h := s.chunk.Handle(s.index); h != nil {
		return h.UUID()
	}
	return ""
}
func (s chunkSource) types() []string           { return s.chunk.ComponentTypes(s.index) }
func (s chunkSource) component(name string) any { return s.chunk.Component(s.index, name) }

type handleSource struct {
	h ecs.EntityHandle
}

func (s handleSource) uuid() string              { return s.h.UUID() }
func (s handleSource) types() []string           { return s.h.ComponentTypes() }
func (s handleSource) component(name string) any { return s.h.Component(name) }

// FromChunk builds a snapshot for the entity at (chunk, index). The
// second return is the live component-reference map used later by path
// expansion. ok is false when the include filter rejects the entity.
func (c *Collector) FromChunk(chunk ecs.Chunk, index int, opt Options) (*model.EntitySnapshot, map[string]any, bool) {
	src := chunkSource{chunk: chunk, index: index}
	return c.build(chunk.ReferenceIndex(index), src, opt)
}

// FromHandle builds a snapshot from a direct handle, used by lifecycle
// adds. The entity id is the 32-bit hash of the UUID string, a stable
// surrogate for entities not yet resolvable to a chunk slot.
func (c *Collector) FromHandle(h ecs.EntityHandle, opt Options) (*model.EntitySnapshot, map[string]any, bool) {
	return c.build(HashUUID(h.UUID()), handleSource{h: h}, opt)
}

// ByID scans the world's chunks for the entity whose reference index
// matches id, stopping at the first hit.
func (c *Collector) ByID(w ecs.World, id int64, opt Options) (*model.EntitySnapshot, map[string]any, bool) {
	for _, chunk := range w.Chunks() {
		for i := 0; i < chunk.Count(); i++ {
			if chunk.ReferenceIndex(i) == id {
				return c.FromChunk(chunk, i, opt)
			}
		}
	}
	return nil, nil, false
}

// HashUUID derives the surrogate entity id from a UUID string.
func HashUUID(uuid string) int64 {
	h := fnv.New32a()
	h.Write([]byte(uuid))
	return int64(int32(h.Sum32()))
}

func (c *Collector) build(id int64, src componentSource, opt Options) (*model.EntitySnapshot, map[string]any, bool) {
	snap := &model.EntitySnapshot{
		EntityID:   id,
		UUID:       src.uuid(),
		Components: serialize.NewOrderedMap(),
		Timestamp:  time.Now().UnixMilli(),
	}
	refs := make(map[string]any)

	// Well-known components are read explicitly, in a fixed order,
	// before the generic archetype walk.
	if v := src.component("TransformComponent"); v != nil {
		if tc, ok := asTransform(v); ok {
			snap.Position = model.Position{X: tc.Position.X, Y: tc.Position.Y, Z: tc.Position.Z}
			snap.Rotation = model.Rotation{Yaw: tc.Yaw, Pitch: tc.Pitch}
		}
		c.add(snap, refs, "TransformComponent", v)
	}
	if v := src.component("ModelComponent"); v != nil {
		if mc, ok := asModel(v); ok {
			snap.ModelAssetID = mc.AssetID
		}
		c.add(snap, refs, "ModelComponent", v)
	}
	if v := src.component("UuidComponent"); v != nil {
		if uc, ok := asUuid(v); ok && uc.Value != "" {
			snap.UUID = uc.Value
		}
		c.add(snap, refs, "UuidComponent", v)
	}
	if v := src.component("NPCEntity"); v != nil {
		snap.EntityType = "NPC"
		c.add(snap, refs, "NPCEntity", v)
	}

	if !c.include(snap, src, opt) {
		return nil, nil, false
	}

	for _, name := range src.types() {
		if snap.Components.Has(name) {
			continue
		}
		c.add(snap, refs, name, src.component(name))
	}
	return snap, refs, true
}

func (c *Collector) add(snap *model.EntitySnapshot, refs map[string]any, name string, v any) {
	if v == nil {
		return
	}
	refs[name] = v
	snap.Components.Set(name, &model.ComponentData{
		TypeName: name,
		Fields:   c.ser.Fields(v),
	})
}

// include applies the configured entity-kind filter. Player filtering
// matches on the stamped entityType, which collection never sets to
// "Player"; this mirrors the host's long-standing behavior and keeps
// players visible regardless of the flag.
func (c *Collector) include(snap *model.EntitySnapshot, src componentSource, opt Options) bool {
	if snap.EntityType == "NPC" && !opt.IncludeNPCs {
		return false
	}
	if snap.EntityType == "Player" && !opt.IncludePlayers {
		return false
	}
	if src.component("Item") != nil && !opt.IncludeItems {
		return false
	}
	return true
}

func asTransform(v any) (*ecs.TransformComponent, bool) {
	switch t := v.(type) {
	case *ecs.TransformComponent:
		return t, true
	case ecs.TransformComponent:
		return &t, true
	}
	return nil, false
}

func asModel(v any) (*ecs.ModelComponent, bool) {
	switch t := v.(type) {
	case *ecs.ModelComponent:
		return t, true
	case ecs.ModelComponent:
		return &t, true
	}
	return nil, false
}

func asUuid(v any) (*ecs.UuidComponent, bool) {
	switch t := v.(type) {
	case *ecs.UuidComponent:
		return t, true
	case ecs.UuidComponent:
		return &t, true
	}
	return nil, false
}
