// Package model holds the value-shaped inspection data model streamed
// over the bus.
package model

import (
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/serialize"
)

// Position is a world-space location.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation is an entity's orientation.
type Rotation struct {
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// ComponentData is one serialized component: its type name plus an
// ordered field map. Equality is field-wise and drives change
// detection.
type ComponentData struct {
	TypeName string                `json:"typeName"`
	Fields   *serialize.OrderedMap `json:"fields"`
}

// Equal reports field-wise equality.
func (c *ComponentData) Equal(o *ComponentData) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.TypeName == o.TypeName && c.Fields.Equal(o.Fields)
}

// EntitySnapshot is a value-shaped copy of one entity at a point in
// time. Component insertion order is observable.
type EntitySnapshot struct {
	EntityID     int64                 `json:"entityId"`
	UUID         string                `json:"uuid"`
	ModelAssetID string                `json:"modelAssetId,omitempty"`
	EntityType   string                `json:"entityType,omitempty"`
	Position     Position              `json:"position"`
	Rotation     Rotation              `json:"rotation"`
	Components   *serialize.OrderedMap `json:"components"` // name -> *ComponentData
	Timestamp    int64                 `json:"timestamp"`
}

// Component returns the named component data, or nil.
func (s *EntitySnapshot) Component(name string) *ComponentData {
	if s == nil {
		return nil
	}
	v, ok := s.Components.Get(name)
	if !ok {
		return nil
	}
	cd, _ := v.(*ComponentData)
	return cd
}

// PositionUpdate is one entry of a POSITION_BATCH frame.
type PositionUpdate struct {
	EntityID int64   `json:"entityId"`
	UUID     string  `json:"uuid,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Yaw      float32 `json:"yaw"`
	Pitch    float32 `json:"pitch"`
}

// PacketLogEntry is one observed network packet, redacted before
// serialization.
type PacketLogEntry struct {
	ID          int64  `json:"id"`
	Direction   string `json:"direction"` // "inbound" | "outbound"
	PacketName  string `json:"packetName"`
	PacketID    int32  `json:"packetId"`
	HandlerName string `json:"handlerName"`
	Data        any    `json:"data"`
	Timestamp   int64  `json:"timestamp"`
}

// WorldSnapshot is the full world view sent on connect and on demand.
type WorldSnapshot struct {
	WorldID           string            `json:"worldId"`
	WorldName         string            `json:"worldName"`
	Entities          []*EntitySnapshot `json:"entities"`
	GameTimeEpochMill int64             `json:"gameTimeEpochMilli,omitempty"`
	GameTimeRate      float64           `json:"gameTimeRate,omitempty"`
	ServerVersion     string            `json:"serverVersion"`
}

// TimerInfo is the normalized view of one entity timer.
type TimerInfo struct {
	Index     int     `json:"index"`
	State     string  `json:"state"` // RUNNING | PAUSED | STOPPED
	Value     float64 `json:"value"`
	MaxValue  float64 `json:"maxValue"`
	Rate      float64 `json:"rate"`
	Repeating bool    `json:"repeating"`
}

// AlarmInfo is the normalized view of one named alarm.
type AlarmInfo struct {
	Name             string   `json:"name"`
	State            string   `json:"state"` // SET | PASSED | UNSET
	ScheduledTime    string   `json:"scheduledTime,omitempty"`
	RemainingSeconds *float64 `json:"remainingSeconds,omitempty"`
}

// StateMachineInfo is the role's coarse state view.
type StateMachineInfo struct {
	State     int    `json:"state"`
	SubState  int    `json:"subState"`
	StateName string `json:"stateName"`
}

// SensorInfo describes one behavior-tree sensor, read-only.
type SensorInfo struct {
	Type       string                `json:"type"`
	Once       bool                  `json:"once"`
	Triggered  bool                  `json:"triggered"`
	Properties *serialize.OrderedMap `json:"properties,omitempty"`

	// Variant payloads.
	Alarm    *SensorAlarmInfo `json:"alarm,omitempty"`
	Timer    *SensorTimerInfo `json:"timer,omitempty"`
	Children []*SensorInfo    `json:"children,omitempty"`
	Negated  *SensorInfo      `json:"negated,omitempty"`
}

// SensorAlarmInfo is the alarm sensor payload.
type SensorAlarmInfo struct {
	ExpectedState string `json:"expectedState"`
	CurrentState  string `json:"currentState"`
	ScheduledTime string `json:"scheduledTime,omitempty"`
}

// SensorTimerInfo is the timer sensor payload.
type SensorTimerInfo struct {
	MinTimeRemaining float64 `json:"minTimeRemaining"`
	MaxTimeRemaining float64 `json:"maxTimeRemaining"`
	ExpectedState    string  `json:"expectedState"`
	TimerState       string  `json:"timerState,omitempty"`
	TimerValue       float64 `json:"timerValue,omitempty"`
	TimerMaxValue    float64 `json:"timerMaxValue,omitempty"`
}

// InstructionInfo is one behavior-tree node.
type InstructionInfo struct {
	Index         int                     `json:"index"`
	Name          string                  `json:"name,omitempty"`
	Tag           string                  `json:"tag,omitempty"`
	ContinueAfter bool                    `json:"continueAfter"`
	TreeMode      string                  `json:"treeMode"`
	Weight        float64                 `json:"weight"`
	Sensor        *SensorInfo             `json:"sensor,omitempty"`
	Actions       []*serialize.OrderedMap `json:"actions,omitempty"`
	Children      []*InstructionInfo      `json:"children,omitempty"`
}

// InstructionTree is the full NPC behavior view.
type InstructionTree struct {
	RoleName                string             `json:"roleName"`
	StateMachine            *StateMachineInfo  `json:"stateMachine,omitempty"`
	RootInstructions        []*InstructionInfo `json:"rootInstructions"`
	InteractionInstructions []*InstructionInfo `json:"interactionInstructions"`
	DeathInstructions       []*InstructionInfo `json:"deathInstructions"`
}

// EntityListItem is one row of a REQUEST_ENTITY_LIST response.
type EntityListItem struct {
	EntityID     int64    `json:"entityId"`
	UUID         string   `json:"uuid"`
	Name         string   `json:"name,omitempty"`
	Role         string   `json:"role,omitempty"`
	EntityType   string   `json:"entityType,omitempty"`
	ModelAssetID string   `json:"modelAssetId,omitempty"`
	Position     Position `json:"position"`
}

// SessionHistoryEntry records one patch authoring operation.
type SessionHistoryEntry struct {
	Filename      string `json:"filename"`
	BaseAssetPath string `json:"baseAssetPath"`
	Timestamp     int64  `json:"timestamp"`
	Operation     string `json:"operation"` // "draft" | "publish"
}
