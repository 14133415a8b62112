package brain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotbrain/internal/checkpoint"
	"robotbrain/internal/oracle"
	"robotbrain/internal/sim"
	"robotbrain/internal/state"
)

func TestFleetRunsIndependentThreads(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	makeBrain := func(threadID string) *Brain {
		cfg := testConfig()
		cfg.ThreadID = threadID
		cfg.MaxTicks = 2
		robot := sim.New()
		b, err := New(cfg, Deps{
			Oracle:    oracle.NewMock(`{"type": "FINISH", "reason": "idle", "ops": []}`),
			Telemetry: robot,
			World:     robot,
			Executor:  robot,
			Store:     store,
			AfterTick: robot.Advance,
		})
		require.NoError(t, err)
		return b
	}

	a := makeBrain("fleet-a")
	b := makeBrain("fleet-b")

	fleet := NewFleet(a, b)
	require.NoError(t, fleet.Run(context.Background()))

	// Each thread checkpointed under its own id.
	cpA, okA, err := store.Latest("fleet-a")
	require.NoError(t, err)
	require.True(t, okA)
	cpB, okB, err := store.Latest("fleet-b")
	require.NoError(t, err)
	require.True(t, okB)

	sa, err := state.Deserialize(cpA.State)
	require.NoError(t, err)
	sb, err := state.Deserialize(cpB.State)
	require.NoError(t, err)
	assert.Equal(t, state.ModeIdle, sa.Tasks.Mode)
	assert.Equal(t, state.ModeIdle, sb.Tasks.Mode)
}

func TestFleetPropagatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ThreadID = ""
	robot := sim.New()
	b, err := New(cfg, Deps{
		Oracle:    oracle.NewMock(),
		Telemetry: robot,
		World:     robot,
		Executor:  robot,
		Store:     checkpoint.NewMemoryStore(),
	})
	require.NoError(t, err)
	// A generated thread id keeps threads isolated by default.
	assert.NotEmpty(t, b.ThreadID())
}
