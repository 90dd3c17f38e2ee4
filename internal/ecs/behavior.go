package ecs

import "time"

// NPC behavior-tree primitives. The inspector walks these read-only;
// Evaluate and Apply have observable side effects on the entity and
// must never be called outside the host's own behavior ticking.

// TreeMode selects how an instruction picks among its children.
type TreeMode int

const (
	TreeSequence TreeMode = iota
	TreeSelector
	TreeWeighted
	TreeParallel
)

func (m TreeMode) String() string {
	switch m {
	case TreeSelector:
		return "SELECTOR"
	case TreeWeighted:
		return "WEIGHTED"
	case TreeParallel:
		return "PARALLEL"
	default:
		return "SEQUENCE"
	}
}

// AlarmExpect is the alarm state a SensorAlarm waits for.
type AlarmExpect int

const (
	ExpectSet AlarmExpect = iota
	ExpectPassed
	ExpectUnset
)

func (e AlarmExpect) String() string {
	switch e {
	case ExpectPassed:
		return "PASSED"
	case ExpectUnset:
		return "UNSET"
	default:
		return "SET"
	}
}

// StateMachine tracks the role's coarse behavior state.
type StateMachine struct {
	State    int
	SubState int
	Names    []string
}

// StateIndex returns the current state index.
func (m *StateMachine) StateIndex() int { return m.State }

// SubStateIndex returns the current sub-state index.
func (m *StateMachine) SubStateIndex() int { return m.SubState }

// StateName returns the display name of the current state.
func (m *StateMachine) StateName() string {
	if m == nil || m.State < 0 || m.State >= len(m.Names) {
		return ""
	}
	return m.Names[m.State]
}

// Role is an NPC's behavior definition: a state machine plus three
// instruction trees. Each top-level instruction is a wrapper whose
// InstructionList carries the real children.
type Role struct {
	Name                   string
	StateMachine           *StateMachine
	RootInstruction        *Instruction
	InteractionInstruction *Instruction
	DeathInstruction       *Instruction
}

// RoleName returns the role's display name.
func (r *Role) RoleName() string {
	if r == nil {
		return ""
	}
	return r.Name
}

// Instruction is one node of a behavior tree.
type Instruction struct {
	Name            string
	Tag             string
	TreeMode        TreeMode
	Weight          float64
	Sensor          Sensor
	Actions         []Action
	InstructionList []*Instruction

	continueAfter bool
}

// NewInstruction builds an instruction node.
func NewInstruction(name string, continueAfter bool) *Instruction {
	return &Instruction{Name: name, continueAfter: continueAfter}
}

// IsContinueAfter reports whether execution continues past this node
// after it completes.
func (in *Instruction) IsContinueAfter() bool { return in.continueAfter }

// Sensor gates an instruction. Evaluate mutates sensor and entity state
// (a SensorAlarm with Clear set clears its alarm when it fires).
type Sensor interface {
	Evaluate(now time.Time) bool
}

// Action is an instruction's effect on the entity.
type Action interface {
	Apply(h EntityHandle)
}

// SensorBase carries the trigger bookkeeping shared by all sensors.
type SensorBase struct {
	Once      bool
	Triggered bool
}

// SensorAlarm fires when its alarm reaches the expected state.
type SensorAlarm struct {
	SensorBase
	Alarm *Alarm
	State AlarmExpect
	Clear bool
}

func (s *SensorAlarm) Evaluate(now time.Time) bool {
	var match bool
	switch s.State {
	case ExpectPassed:
		match = s.Alarm.HasPassed()
	case ExpectUnset:
		match = !s.Alarm.IsSet() && !s.Alarm.HasPassed()
	default:
		match = s.Alarm.IsSet()
	}
	if match && s.Clear && s.Alarm != nil {
		s.Alarm.When = time.Time{}
		s.Alarm.Done = false
	}
	if match {
		s.Triggered = true
	}
	return match
}

// SensorTimer fires while its timer's remaining time is inside the
// configured window and the timer is in the expected state.
type SensorTimer struct {
	SensorBase
	Timer            *Timer
	MinTimeRemaining float64
	MaxTimeRemaining float64
	State            TimerState
}

func (s *SensorTimer) Evaluate(now time.Time) bool {
	if s.Timer == nil || s.Timer.State != s.State {
		return false
	}
	remaining := s.Timer.MaxValue - s.Timer.Value
	if remaining < s.MinTimeRemaining || (s.MaxTimeRemaining > 0 && remaining > s.MaxTimeRemaining) {
		return false
	}
	s.Triggered = true
	return true
}

// SensorAnd fires when all children fire.
type SensorAnd struct {
	SensorBase
	Sensors []Sensor
}

func (s *SensorAnd) Evaluate(now time.Time) bool {
	for _, c := range s.Sensors {
		if !c.Evaluate(now) {
			return false
		}
	}
	s.Triggered = true
	return true
}

// SensorOr fires when any child fires.
type SensorOr struct {
	SensorBase
	Sensors []Sensor
}

func (s *SensorOr) Evaluate(now time.Time) bool {
	for _, c := range s.Sensors {
		if c.Evaluate(now) {
			s.Triggered = true
			return true
		}
	}
	return false
}

// SensorNot inverts its child.
type SensorNot struct {
	SensorBase
	Sensor Sensor
}

func (s *SensorNot) Evaluate(now time.Time) bool {
	ok := !s.Sensor.Evaluate(now)
	if ok {
		s.Triggered = true
	}
	return ok
}

// NullSensor always fires.
type NullSensor struct {
	SensorBase
}

func (s *NullSensor) Evaluate(now time.Time) bool {
	s.Triggered = true
	return true
}

// ActionBase carries bookkeeping shared by all actions.
type ActionBase struct {
	Enabled bool
}
