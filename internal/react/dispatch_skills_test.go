package react

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotbrain/internal/state"
)

func TestDispatchCancelsBeforeDispatching(t *testing.T) {
	fake := newFakeExec()
	node := NewDispatchSkills(dedupOver(fake), testRegistry(), "test-thread", nil)

	s := execState()
	s.React.ProposedOps = &state.ProposedOps{
		ToCancel: []string{"goal_nav"},
		ToDispatch: []state.DispatchOp{{
			SkillName: "NavigateToPose",
			Params:    map[string]any{"target_x": 7.0, "target_y": 12.0},
		}},
		ToSpeak: []string{"on my way"},
	}

	out, err := node.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{"goal_nav"}, fake.cancelled)
	require.Len(t, fake.dispatched, 1)
	assert.Equal(t, []string{"on my way"}, fake.spoken)

	// Running set swapped to the new goal, resources still reserved.
	require.Len(t, out.Skills.Running, 1)
	assert.Equal(t, "NavigateToPose", out.Skills.Running[0].SkillName)
	assert.NotEqual(t, "goal_nav", out.Skills.Running[0].GoalID)
	assert.True(t, out.Robot.Resources[state.ResourceBase])
	require.NoError(t, out.Validate())
}

func TestDispatchReplayIsSuppressed(t *testing.T) {
	fake := newFakeExec()
	dedup := dedupOver(fake)
	node := NewDispatchSkills(dedup, testRegistry(), "test-thread", nil)

	build := func() *state.BrainState {
		s := execState()
		s.Skills.Running = nil
		s.Robot.Resources[state.ResourceBase] = false
		s.React.Iter = 1
		s.Trace.Metrics = map[string]float64{"tick": 3}
		s.React.ProposedOps = &state.ProposedOps{
			ToDispatch: []state.DispatchOp{{
				SkillName: "NavigateToPose",
				Params:    map[string]any{"target_x": 2.0, "target_y": 2.0},
			}},
			ToSpeak: []string{"going"},
		}
		return s
	}

	first, err := node.Run(context.Background(), build())
	require.NoError(t, err)
	// Same node input replayed after a crash: identical keys, no new
	// side effects, same goal id.
	second, err := node.Run(context.Background(), build())
	require.NoError(t, err)

	assert.Len(t, fake.dispatched, 1)
	assert.Len(t, fake.spoken, 1)
	require.Len(t, second.Skills.Running, 1)
	assert.Equal(t, first.Skills.Running[0].GoalID, second.Skills.Running[0].GoalID)
}

func TestDispatchFailureRecordsLastResult(t *testing.T) {
	fake := newFakeExec()
	fake.failNext = assert.AnError
	node := NewDispatchSkills(dedupOver(fake), testRegistry(), "test-thread", nil)

	s := execState()
	s.Skills.Running = nil
	s.Robot.Resources[state.ResourceBase] = false
	s.React.ProposedOps = &state.ProposedOps{
		ToDispatch: []state.DispatchOp{{
			SkillName: "NavigateToPose",
			Params:    map[string]any{"target_x": 2.0, "target_y": 2.0},
		}},
	}

	out, err := node.Run(context.Background(), s)
	require.NoError(t, err)

	require.NotNil(t, out.Skills.LastResult)
	assert.Equal(t, "DISPATCH_FAILED", out.Skills.LastResult.ErrorCode)
	assert.Empty(t, out.Skills.Running)
}

func TestObserveResultCompletesGoal(t *testing.T) {
	fake := newFakeExec()
	fake.setDone("goal_nav", state.SkillResult{Status: state.SkillSuccess})
	node := NewObserveResult(dedupOver(fake))

	out, err := node.Run(context.Background(), execState())
	require.NoError(t, err)

	assert.Empty(t, out.Skills.Running)
	require.NotNil(t, out.Skills.LastResult)
	assert.Equal(t, state.SkillSuccess, out.Skills.LastResult.Status)
	assert.False(t, out.Robot.Resources[state.ResourceBase])

	// Result threaded into the chat log for the next observation.
	require.NotEmpty(t, out.Messages)
	assert.Equal(t, "tool_result", out.Messages[len(out.Messages)-1].Kind)
}

func TestObserveResultTimesOut(t *testing.T) {
	fake := newFakeExec()
	node := NewObserveResult(dedupOver(fake))

	s := execState()
	s.Skills.Running[0].StartTime = 0 // epoch: long past its 300s budget
	s.Skills.Running[0].TimeoutS = 300

	out, err := node.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Empty(t, out.Skills.Running)
	require.NotNil(t, out.Skills.LastResult)
	assert.Equal(t, state.SkillFailed, out.Skills.LastResult.Status)
	assert.Equal(t, "TIMEOUT", out.Skills.LastResult.ErrorCode)
	assert.Equal(t, []string{"goal_nav"}, fake.cancelled)
}

func TestObserveResultTracksConsecutiveFailures(t *testing.T) {
	fake := newFakeExec()
	node := NewObserveResult(dedupOver(fake))

	s := execState()
	fake.setDone("goal_nav", state.SkillResult{Status: state.SkillFailed, ErrorCode: "NAV_BLOCKED"})
	out, err := node.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, out.React.ConsecutiveFailures)
	assert.Equal(t, "NavigateToPose", out.React.FailedSkill)

	// A later success resets the streak.
	out.Skills.Running = []state.RunningSkill{{
		GoalID: "goal_2", SkillName: "NavigateToPose", StartTime: 1e12, TimeoutS: 300,
		ResourcesOccupied: []string{state.ResourceBase},
	}}
	out.Robot.Resources[state.ResourceBase] = true
	fake.setDone("goal_2", state.SkillResult{Status: state.SkillSuccess})
	out2, err := node.Run(context.Background(), out)
	require.NoError(t, err)
	assert.Zero(t, out2.React.ConsecutiveFailures)
}

func TestObserveResultKeepsRunningGoal(t *testing.T) {
	fake := newFakeExec()
	node := NewObserveResult(dedupOver(fake))

	s := execState()
	s.Skills.Running[0].StartTime = 1e12 // far future, no timeout

	out, err := node.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Len(t, out.Skills.Running, 1)
	assert.Nil(t, out.Skills.LastResult)
}
