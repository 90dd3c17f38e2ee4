package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/ecs"
)

// proximitySensor has no dedicated view, so the walk falls back to
// generic property extraction. Evaluate panics to prove the walk never
// evaluates sensors.
type proximitySensor struct {
	ecs.SensorBase
	Radius  float64
	Targets []string
	Entity  *ecs.EntityState
}

func (s *proximitySensor) Evaluate(now time.Time) bool {
	panic("instruction walk must never evaluate sensors")
}

func patrolRole() *ecs.Role {
	role := &ecs.Role{
		Name:         "patrol",
		StateMachine: &ecs.StateMachine{State: 1, Names: []string{"IDLE", "WALK"}},
		RootInstruction: &ecs.Instruction{
			InstructionList: []*ecs.Instruction{
				ecs.NewInstruction("walk-loop", true),
				ecs.NewInstruction("rest", false),
			},
		},
		InteractionInstruction: &ecs.Instruction{
			InstructionList: []*ecs.Instruction{
				ecs.NewInstruction("greet", false),
			},
		},
	}
	role.RootInstruction.InstructionList[0].Sensor = &ecs.NullSensor{}
	role.RootInstruction.InstructionList[0].TreeMode = ecs.TreeSelector
	role.RootInstruction.InstructionList[1].Sensor = &ecs.SensorTimer{
		Timer:            &ecs.Timer{State: ecs.TimerRunning, Value: 2, MaxValue: 30},
		MinTimeRemaining: 5,
		State:            ecs.TimerRunning,
	}
	role.InteractionInstruction.InstructionList[0].Sensor = &ecs.SensorAlarm{
		Alarm: &ecs.Alarm{When: time.UnixMilli(3000)},
		State: ecs.ExpectPassed,
	}
	return role
}

func TestGetInstructions_WalksFullTree(t *testing.T) {
	svc, c := newTestService()
	role := patrolRole()
	c.PutEntity(1, npcSnapshot(1, "Guard", "patrol"), map[string]any{
		"NPCEntity": &ecs.NPCEntity{Name: "Guard", Role: role},
	})

	tree, ok := svc.GetInstructions(1)
	require.True(t, ok)

	assert.Equal(t, "patrol", tree.RoleName)
	require.NotNil(t, tree.StateMachine)
	assert.Equal(t, 1, tree.StateMachine.State)
	assert.Equal(t, "WALK", tree.StateMachine.StateName)

	require.Len(t, tree.RootInstructions, 2)
	walk := tree.RootInstructions[0]
	assert.Equal(t, "walk-loop", walk.Name)
	assert.True(t, walk.ContinueAfter)
	assert.Equal(t, "SELECTOR", walk.TreeMode)
	require.NotNil(t, walk.Sensor)
	assert.Equal(t, "Any", walk.Sensor.Type, "the null sensor reads as Any")

	rest := tree.RootInstructions[1]
	assert.Equal(t, "SEQUENCE", rest.TreeMode)
	require.NotNil(t, rest.Sensor)
	assert.Equal(t, "SensorTimer", rest.Sensor.Type)
	timer := rest.Sensor.Timer
	require.NotNil(t, timer)
	assert.Equal(t, 5.0, timer.MinTimeRemaining)
	assert.Equal(t, "RUNNING", timer.ExpectedState)
	assert.Equal(t, "RUNNING", timer.TimerState)
	assert.Equal(t, 2.0, timer.TimerValue)
	assert.Equal(t, 30.0, timer.TimerMaxValue)

	require.Len(t, tree.InteractionInstructions, 1)
	alarm := tree.InteractionInstructions[0].Sensor.Alarm
	require.NotNil(t, alarm)
	assert.Equal(t, "PASSED", alarm.ExpectedState)
	assert.Equal(t, "SET", alarm.CurrentState, "instant 3000 is ahead of game time 1000")
	assert.Equal(t, "1970-01-01T00:00:03.000Z", alarm.ScheduledTime)

	assert.Empty(t, tree.DeathInstructions)
}

func TestGetInstructions_IsReadOnly(t *testing.T) {
	svc, c := newTestService()
	role := patrolRole()

	// A sensor whose Evaluate panics proves evaluation never happens,
	// and composite sensors exercise the recursive walk.
	prox := &proximitySensor{Radius: 8, Targets: []string{"player"}}
	role.RootInstruction.InstructionList[0].Sensor = &ecs.SensorAnd{
		Sensors: []ecs.Sensor{prox, &ecs.SensorNot{Sensor: &ecs.NullSensor{}}},
	}

	c.PutEntity(1, npcSnapshot(1, "Guard", "patrol"), map[string]any{
		"NPCEntity": &ecs.NPCEntity{Name: "Guard", Role: role},
	})

	tree, ok := svc.GetInstructions(1)
	require.True(t, ok)

	and := tree.RootInstructions[0].Sensor
	require.Equal(t, "SensorAnd", and.Type)
	require.Len(t, and.Children, 2)

	generic := and.Children[0]
	assert.Equal(t, "proximitySensor", generic.Type)
	require.NotNil(t, generic.Properties)
	radius, _ := generic.Properties.Get("radius")
	assert.Equal(t, 8.0, radius)
	targets, _ := generic.Properties.Get("targets")
	assert.Equal(t, []any{"player"}, targets)
	_, hasEntity := generic.Properties.Get("entity")
	assert.False(t, hasEntity, "noisy references are not extracted")

	not := and.Children[1]
	assert.Equal(t, "SensorNot", not.Type)
	require.NotNil(t, not.Negated)
	assert.Equal(t, "Any", not.Negated.Type)

	// Nothing was triggered by walking.
	assert.False(t, prox.Triggered)
	timerSensor := role.RootInstruction.InstructionList[1].Sensor.(*ecs.SensorTimer)
	assert.False(t, timerSensor.Triggered)
}

func TestGetInstructions_MissingPrerequisites(t *testing.T) {
	svc, c := newTestService()

	_, ok := svc.GetInstructions(9)
	assert.False(t, ok, "unknown entity")

	c.PutEntity(1, plainSnapshot(1), nil)
	_, ok = svc.GetInstructions(1)
	assert.False(t, ok, "no live NPCEntity reference")

	c.PutEntity(2, npcSnapshot(2, "Guard", ""), map[string]any{
		"NPCEntity": &ecs.NPCEntity{Name: "Guard"},
	})
	_, ok = svc.GetInstructions(2)
	assert.False(t, ok, "NPC without a role")
}
