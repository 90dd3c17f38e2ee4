// Package ecs defines the boundary to the host entity-component store.
// The inspector consumes these interfaces; the game server provides the
// real implementations. All component state must be read on the world's
// cooperative thread, reached through World.Execute.
package ecs

import (
	"reflect"
)

// GameTime is the host clock: game epoch millis plus the rate at which
// game time advances relative to real time.
type GameTime struct {
	EpochMilli int64
	Rate       float64
}

// World is one running game world.
type World interface {
	// ID and Name identify the world in snapshots.
	ID() string
	Name() string

	// Execute schedules fn onto the world's cooperative single thread.
	// Closures run to completion; there is no mid-run cancellation.
	Execute(fn func())

	// Chunks returns the archetype chunks currently holding entities.
	// Must only be called on the world thread.
	Chunks() []Chunk

	// GameTime returns the current game clock.
	GameTime() GameTime

	// Players returns handles for all connected player entities.
	// Must only be called on the world thread.
	Players() []EntityHandle

	RegisterLifecycleObserver(o LifecycleObserver)
	RegisterTickObserver(o TickObserver)
}

// LifecycleObserver fires on entity add and remove.
type LifecycleObserver interface {
	OnEntityAdded(h EntityHandle)
	OnEntityRemoved(h EntityHandle)
}

// TickObserver fires once per entity per world tick.
type TickObserver interface {
	OnTick(c Chunk, index int)
}

// Chunk is a contiguous block of entities sharing an archetype.
type Chunk interface {
	Count() int

	// ReferenceIndex is the stable entity id for the entity at i.
	ReferenceIndex(i int) int64

	Handle(i int) EntityHandle

	// ComponentTypes lists the archetype's component type names for the
	// entity at i, in attachment order.
	ComponentTypes(i int) []string

	Component(i int, typeName string) any
}

// EntityHandle is a direct reference to one entity, independent of its
// chunk position. Component reads through a handle are best-effort: the
// host may relocate components between archetype chunks at any time.
type EntityHandle interface {
	UUID() string

	// Ref is the stable entity id, matching Chunk.ReferenceIndex.
	Ref() int64

	ComponentTypes() []string
	Component(typeName string) any
	SetComponent(typeName string, c any)
}

// TypeName returns the simple type name of v, with pointer indirection
// and package path stripped. Component maps are keyed by this name.
func TypeName(v any) string {
	if v == nil {
		return ""
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	// Anonymous types fall back to a generic shape name.
	switch t.Kind() {
	case reflect.Map:
		return "Map"
	case reflect.Slice, reflect.Array:
		return "List"
	default:
		return t.Kind().String()
	}
}
