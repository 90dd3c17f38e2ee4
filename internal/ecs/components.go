package ecs

import "time"

// Vec3 is a position in world space.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// TransformComponent carries position and orientation.
type TransformComponent struct {
	Position Vec3
	Yaw      float32
	Pitch    float32
}

// ModelComponent links an entity to its model asset.
type ModelComponent struct {
	AssetID string
}

// UuidComponent carries the entity's stable UUID.
type UuidComponent struct {
	Value string
}

// Player marks a connected player entity.
type Player struct {
	Name string
}

// Item marks a dropped item entity.
type Item struct {
	StackSize int
}

// Nameplate is the floating display name above an entity.
type Nameplate struct {
	Text string
}

// Surname is the inspector-owned persistent name override.
type Surname struct {
	Text string
}

// Teleport, when attached to a player handle, moves the player on the
// next movement tick and is then consumed by the host.
type Teleport struct {
	Target Vec3
}

// Alarm is a scheduled game-time event.
type Alarm struct {
	When time.Time // zero while unset
	Done bool
}

// IsSet reports whether the alarm is scheduled and not yet fired.
func (a *Alarm) IsSet() bool { return a != nil && !a.When.IsZero() && !a.Done }

// HasPassed reports whether the alarm already fired.
func (a *Alarm) HasPassed() bool { return a != nil && a.Done }

// AlarmInstant returns the scheduled instant, zero while unset.
func (a *Alarm) AlarmInstant() time.Time {
	if a == nil {
		return time.Time{}
	}
	return a.When
}

// AlarmStore keeps named alarms for one entity.
type AlarmStore struct {
	Parameters map[string]*Alarm
}

// EntityState is the host-side mutable state bag an NPC or interaction
// manager hangs off of.
type EntityState struct {
	AlarmStore *AlarmStore
}

// TimerState is the run state of a Timer.
type TimerState int

const (
	TimerStopped TimerState = iota
	TimerRunning
	TimerPaused
)

func (s TimerState) String() string {
	switch s {
	case TimerRunning:
		return "RUNNING"
	case TimerPaused:
		return "PAUSED"
	default:
		return "STOPPED"
	}
}

// Timer counts game time toward MaxValue at Rate.
type Timer struct {
	State     TimerState
	Value     float64
	MaxValue  float64
	Rate      float64
	Repeating bool
}

// Timers is the timer list component.
type Timers struct {
	Timers []*Timer
}

// Alarms is the flat alarm map component used by simpler entities.
type Alarms struct {
	Alarms map[string]*Alarm
}

// PersistentParameters carries scripted key-value state that survives
// entity reload. Values are host-defined.
type PersistentParameters struct {
	Parameters map[string]any
}

// InteractionManager drives dialogue and trade interactions; its entity
// state holds the interaction alarm store.
type InteractionManager struct {
	Entity *EntityState
}

// NPCEntity is the main NPC component: display name, behavior role and
// the NPC's own state bag.
type NPCEntity struct {
	Name   string
	Role   *Role
	Entity *EntityState
	Alarms map[string]*Alarm
}
