package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotbrain/internal/state"
)

func arbitrated(t *testing.T, mutate func(*state.BrainState)) (state.Mode, bool, string) {
	t.Helper()
	s := state.New()
	mutate(s)
	return Arbitrate(s, DefaultThresholds())
}

func TestArbitrateTable(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*state.BrainState)
		mode    state.Mode
		preempt bool
	}{
		{
			"critical battery wins over everything",
			func(s *state.BrainState) {
				s.Robot.BatteryPct = 4.0
				s.HCI.UserInterrupt = state.InterruptStop
				s.Tasks.Queue = []state.Task{{ID: "t", Status: state.TaskPending}}
			},
			state.ModeSafe, true,
		},
		{
			"collision risk forces SAFE",
			func(s *state.BrainState) {
				s.World.Obstacles = []state.Obstacle{{Type: "human", CollisionRisk: true}}
			},
			state.ModeSafe, true,
		},
		{
			"low battery forces CHARGE",
			func(s *state.BrainState) {
				s.Robot.BatteryPct = 18.0
				s.Tasks.Queue = []state.Task{{ID: "t", Status: state.TaskRunning}}
			},
			state.ModeCharge, true,
		},
		{
			"user stop goes IDLE with preempt",
			func(s *state.BrainState) {
				s.HCI.UserInterrupt = state.InterruptStop
				s.Tasks.Queue = []state.Task{{ID: "t", Status: state.TaskRunning}}
			},
			state.ModeIdle, true,
		},
		{
			"user pause goes IDLE without preempt",
			func(s *state.BrainState) {
				s.HCI.UserInterrupt = state.InterruptPause
			},
			state.ModeIdle, false,
		},
		{
			"pending queue enters EXEC",
			func(s *state.BrainState) {
				s.Tasks.Queue = []state.Task{{ID: "t", Status: state.TaskPending}}
			},
			state.ModeExec, false,
		},
		{
			"new goal enters EXEC before queueing",
			func(s *state.BrainState) {
				s.HCI.UserInterrupt = state.InterruptNewGoal
				s.HCI.InterruptPayload = map[string]string{"goal_text": "kitchen"}
			},
			state.ModeExec, false,
		},
		{
			"completed-only queue idles",
			func(s *state.BrainState) {
				s.Tasks.Queue = []state.Task{{ID: "t", Status: state.TaskCompleted}}
			},
			state.ModeIdle, false,
		},
		{
			"empty state idles",
			func(s *state.BrainState) {},
			state.ModeIdle, false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mode, preempt, _ := arbitrated(t, tc.mutate)
			assert.Equal(t, tc.mode, mode)
			assert.Equal(t, tc.preempt, preempt)
		})
	}
}

func TestArbitrateIsDeterministic(t *testing.T) {
	s := state.New()
	s.Robot.BatteryPct = 15.0
	s.Tasks.Queue = []state.Task{{ID: "t", Status: state.TaskRunning}}

	mode1, preempt1, reason1 := Arbitrate(s, DefaultThresholds())
	for i := 0; i < 10; i++ {
		mode, preempt, reason := Arbitrate(s, DefaultThresholds())
		assert.Equal(t, mode1, mode)
		assert.Equal(t, preempt1, preempt)
		assert.Equal(t, reason1, reason)
	}
}

func TestPreemptRules(t *testing.T) {
	// SAFE and CHARGE always raise the preempt flag; so does STOP.
	for _, battery := range []float64{0, 4.9} {
		mode, preempt, _ := arbitrated(t, func(s *state.BrainState) { s.Robot.BatteryPct = battery })
		assert.Equal(t, state.ModeSafe, mode)
		assert.True(t, preempt)
	}
	for _, battery := range []float64{5.0, 19.9} {
		mode, preempt, _ := arbitrated(t, func(s *state.BrainState) { s.Robot.BatteryPct = battery })
		assert.Equal(t, state.ModeCharge, mode)
		assert.True(t, preempt)
	}
}

func TestEventArbitrateNodeWritesTasksAndTrace(t *testing.T) {
	node := NewEventArbitrate(DefaultThresholds(), nil)
	s := state.New()
	s.Robot.BatteryPct = 3.0

	out, err := node.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, state.ModeSafe, out.Tasks.Mode)
	assert.True(t, out.Tasks.PreemptFlag)
	assert.Contains(t, out.Tasks.PreemptReason, "SAFETY")
	assert.NotEmpty(t, out.Trace.Log)
}
