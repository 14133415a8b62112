package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotbrain/internal/state"
)

func TestParseIntent(t *testing.T) {
	cases := []struct {
		utterance string
		kind      state.InterruptKind
		goalText  string
	}{
		{"", state.InterruptNone, ""},
		{"   ", state.InterruptNone, ""},
		{"hello there", state.InterruptNone, ""},
		{"stop", state.InterruptStop, ""},
		{"STOP", state.InterruptStop, ""},
		{"  stop  ", state.InterruptStop, ""},
		{"紧急停止", state.InterruptStop, ""},
		{"急停", state.InterruptStop, ""},
		{"pause", state.InterruptPause, ""},
		{"暂停", state.InterruptPause, ""},
		{"please hold", state.InterruptPause, ""},
		{"go to kitchen", state.InterruptNewGoal, "kitchen"},
		{"Go To the bedroom", state.InterruptNewGoal, "the bedroom"},
		{"navigate to charging_station", state.InterruptNewGoal, "charging_station"},
		{"去厨房", state.InterruptNewGoal, "厨房"},
		{"导航到卧室", state.InterruptNewGoal, "卧室"},
		{"前往客厅", state.InterruptNewGoal, "客厅"},
	}

	for _, tc := range cases {
		t.Run(tc.utterance, func(t *testing.T) {
			kind, payload := ParseIntent(tc.utterance)
			assert.Equal(t, tc.kind, kind)
			if tc.goalText != "" {
				assert.Equal(t, tc.goalText, payload["goal_text"])
			}
		})
	}
}

func TestStopBeatsGoalPattern(t *testing.T) {
	// A goal-shaped utterance containing a stop keyword is a stop.
	kind, _ := ParseIntent("go to kitchen and stop")
	assert.Equal(t, state.InterruptStop, kind)
}

func TestHCIIngressPreservesUtterance(t *testing.T) {
	node := NewHCIIngress()
	s := state.New()
	s.HCI.UserUtterance = "  Go To Kitchen  "

	out, err := node.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, "  Go To Kitchen  ", out.HCI.UserUtterance)
	assert.Equal(t, state.InterruptNewGoal, out.HCI.UserInterrupt)
	assert.Equal(t, "Kitchen", out.HCI.InterruptPayload["goal_text"])
	assert.NotEmpty(t, out.Trace.Log)
}
