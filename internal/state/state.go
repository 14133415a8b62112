package state

import (
	"encoding/json"
	"fmt"
)

// HCIState carries the latest user input and the out-of-band approval
// response delivered on resume.
type HCIState struct {
	UserUtterance    string            `json:"user_utterance"`
	UserInterrupt    InterruptKind     `json:"user_interrupt"`
	InterruptPayload map[string]string `json:"interrupt_payload,omitempty"`
	ApprovalResponse *ApprovalResponse `json:"approval_response,omitempty"`
}

// WorldState is the semantic world summary fed to the oracle.
type WorldState struct {
	Summary   string     `json:"summary"`
	Zones     []string   `json:"zones,omitempty"`
	Obstacles []Obstacle `json:"obstacles,omitempty"`
}

// RobotState mirrors one telemetry snapshot. No derivation happens here;
// the telemetry-sync node copies adapter output verbatim.
type RobotState struct {
	Pose             Pose            `json:"pose"`
	HomePose         Pose            `json:"home_pose"`
	Twist            Twist           `json:"twist"`
	BatteryPct       float64         `json:"battery_pct"`
	BatteryState     string          `json:"battery_state"`
	Resources        map[string]bool `json:"resources"`
	DistanceToTarget float64         `json:"distance_to_target"`
}

// TasksState owns the goal queue and the arbitrated mode.
type TasksState struct {
	Inbox         []map[string]string `json:"inbox,omitempty"`
	Queue         []Task              `json:"queue,omitempty"`
	ActiveTaskID  string              `json:"active_task_id,omitempty"`
	Mode          Mode                `json:"mode"`
	PreemptFlag   bool                `json:"preempt_flag"`
	PreemptReason string              `json:"preempt_reason,omitempty"`
}

// SkillsState holds the registry snapshot, in-flight executions and the
// most recent result.
type SkillsState struct {
	Registry   map[string]SkillDef `json:"registry,omitempty"`
	Running    []RunningSkill      `json:"running,omitempty"`
	LastResult *SkillResult        `json:"last_result,omitempty"`
}

// ReactState is the inner-loop scratch area.
type ReactState struct {
	Iter                int            `json:"iter"`
	Observation         map[string]any `json:"observation,omitempty"`
	Decision            *Decision      `json:"decision,omitempty"`
	ProposedOps         *ProposedOps   `json:"proposed_ops,omitempty"`
	StopReason          string         `json:"stop_reason,omitempty"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	FailedSkill         string         `json:"failed_skill,omitempty"`
}

// TraceState is an append-only explanation log plus loose metrics.
type TraceState struct {
	Log     []string           `json:"log,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// BrainState is the single source of truth the graph threads through
// every node. Every field is value-typed; the serialized form is the
// checkpoint payload.
type BrainState struct {
	Messages []Message   `json:"messages,omitempty"`
	HCI      HCIState    `json:"hci"`
	World    WorldState  `json:"world"`
	Robot    RobotState  `json:"robot"`
	Tasks    TasksState  `json:"tasks"`
	Skills   SkillsState `json:"skills"`
	React    ReactState  `json:"react"`
	Trace    TraceState  `json:"trace"`
}

// New returns an empty state with the fixed resource set initialized and
// mode IDLE.
func New() *BrainState {
	return &BrainState{
		HCI: HCIState{UserInterrupt: InterruptNone},
		Robot: RobotState{
			Pose:         Pose{OrientationW: 1.0},
			HomePose:     Pose{OrientationW: 1.0},
			BatteryPct:   100.0,
			BatteryState: "FULL",
			Resources: map[string]bool{
				ResourceBase:    false,
				ResourceArm:     false,
				ResourceGripper: false,
			},
		},
		Tasks: TasksState{Mode: ModeIdle},
	}
}

// Serialize encodes the full state as JSON bytes. The output is the
// checkpoint payload and must round-trip through Deserialize.
func (s *BrainState) Serialize() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("serialize state: %w", err)
	}
	return data, nil
}

// Deserialize rebuilds a state from Serialize output.
func Deserialize(data []byte) (*BrainState, error) {
	var s BrainState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("deserialize state: %w", err)
	}
	if s.Robot.Resources == nil {
		s.Robot.Resources = map[string]bool{
			ResourceBase:    false,
			ResourceArm:     false,
			ResourceGripper: false,
		}
	}
	if s.Tasks.Mode == "" {
		s.Tasks.Mode = ModeIdle
	}
	if s.HCI.UserInterrupt == "" {
		s.HCI.UserInterrupt = InterruptNone
	}
	return &s, nil
}

// Clone deep-copies the state through the JSON codec. Nodes operate on
// clones so a failed node never leaves a half-written aggregate behind.
func (s *BrainState) Clone() *BrainState {
	data, err := s.Serialize()
	if err != nil {
		// Serialize only fails on non-encodable values, which the schema
		// does not permit.
		panic(fmt.Sprintf("state clone: %v", err))
	}
	out, err := Deserialize(data)
	if err != nil {
		panic(fmt.Sprintf("state clone: %v", err))
	}
	return out
}

// ActiveTask returns the queue entry named by ActiveTaskID, or nil.
func (s *BrainState) ActiveTask() *Task {
	if s.Tasks.ActiveTaskID == "" {
		return nil
	}
	for i := range s.Tasks.Queue {
		if s.Tasks.Queue[i].ID == s.Tasks.ActiveTaskID {
			return &s.Tasks.Queue[i]
		}
	}
	return nil
}

// AppendTrace appends one explanation line to the trace log.
func (s *BrainState) AppendTrace(format string, args ...any) {
	s.Trace.Log = append(s.Trace.Log, fmt.Sprintf(format, args...))
}

// OccupiedResources returns the union of resources held by running skills.
func (s *BrainState) OccupiedResources() map[string]bool {
	occupied := make(map[string]bool)
	for _, rs := range s.Skills.Running {
		for _, r := range rs.ResourcesOccupied {
			occupied[r] = true
		}
	}
	return occupied
}

// Validate checks the structural invariants that must hold between nodes:
// a legal mode, resource flags consistent with running skills, no
// exclusive resource held twice, and an active task that exists.
func (s *BrainState) Validate() error {
	if !s.Tasks.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", s.Tasks.Mode)
	}
	holders := make(map[string]string)
	for _, rs := range s.Skills.Running {
		for _, r := range rs.ResourcesOccupied {
			if prev, ok := holders[r]; ok {
				return fmt.Errorf("resource %s held by both %s and %s", r, prev, rs.GoalID)
			}
			holders[r] = rs.GoalID
			if !s.Robot.Resources[r] {
				return fmt.Errorf("resource %s occupied by %s but not flagged busy", r, rs.GoalID)
			}
		}
	}
	if s.Tasks.ActiveTaskID != "" && s.ActiveTask() == nil {
		return fmt.Errorf("active task %s not present in queue", s.Tasks.ActiveTaskID)
	}
	return nil
}
