package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotbrain/internal/state"
)

func TestNavigateCompletesAfterAdvancing(t *testing.T) {
	s := New()
	ctx := context.Background()

	goalID, err := s.Dispatch(ctx, "NavigateToPose", map[string]any{"target_x": 2.0, "target_y": 2.0}, "k1")
	require.NoError(t, err)

	poll, err := s.PollGoal(ctx, goalID)
	require.NoError(t, err)
	assert.False(t, poll.Done)
	assert.True(t, s.Snapshot().Resources[state.ResourceBase])

	for i := 0; i < 20; i++ {
		s.Advance()
		poll, err = s.PollGoal(ctx, goalID)
		require.NoError(t, err)
		if poll.Done {
			break
		}
	}

	require.True(t, poll.Done)
	require.NotNil(t, poll.Result)
	assert.Equal(t, state.SkillSuccess, poll.Result.Status)

	snap := s.Snapshot()
	assert.InDelta(t, 2.0, snap.Pose.X, 0.5)
	assert.InDelta(t, 2.0, snap.Pose.Y, 0.5)
	assert.False(t, snap.Resources[state.ResourceBase])
	assert.Less(t, snap.BatteryPct, 100.0)
}

func TestCancelStopsNavigation(t *testing.T) {
	s := New()
	ctx := context.Background()

	goalID, err := s.Dispatch(ctx, "NavigateToPose", map[string]any{"target_x": 10.0, "target_y": 5.0}, "k1")
	require.NoError(t, err)
	s.Advance()
	require.NoError(t, s.Cancel(ctx, goalID))

	poll, err := s.PollGoal(ctx, goalID)
	require.NoError(t, err)
	require.True(t, poll.Done)
	assert.Equal(t, state.SkillCancelled, poll.Result.Status)

	before := s.Snapshot().Pose
	s.Advance()
	assert.Equal(t, before, s.Snapshot().Pose)
}

func TestStopBaseHaltsActiveNavigation(t *testing.T) {
	s := New()
	ctx := context.Background()

	navID, err := s.Dispatch(ctx, "NavigateToPose", map[string]any{"target_x": 10.0, "target_y": 5.0}, "k1")
	require.NoError(t, err)

	stopID, err := s.Dispatch(ctx, "StopBase", map[string]any{}, "k2")
	require.NoError(t, err)

	stopPoll, err := s.PollGoal(ctx, stopID)
	require.NoError(t, err)
	assert.True(t, stopPoll.Done)
	assert.Equal(t, state.SkillSuccess, stopPoll.Result.Status)

	navPoll, err := s.PollGoal(ctx, navID)
	require.NoError(t, err)
	require.True(t, navPoll.Done)
	assert.Equal(t, state.SkillCancelled, navPoll.Result.Status)
}

func TestSpeakRecords(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Speak(ctx, "你好", "k1"))
	_, err := s.Dispatch(ctx, "Speak", map[string]any{"message": "hello"}, "k2")
	require.NoError(t, err)

	assert.Equal(t, []string{"你好", "hello"}, s.Spoken())
}

func TestUnknownSkillRejected(t *testing.T) {
	s := New()
	_, err := s.Dispatch(context.Background(), "Fly", nil, "k1")
	assert.Error(t, err)
}

func TestNavigateRequiresCoordinates(t *testing.T) {
	s := New()
	_, err := s.Dispatch(context.Background(), "NavigateToPose", map[string]any{"target": "kitchen"}, "k1")
	assert.Error(t, err)
}
