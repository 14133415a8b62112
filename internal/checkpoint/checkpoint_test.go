package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotbrain/internal/state"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "brain.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func payload(t *testing.T, mode state.Mode) []byte {
	t.Helper()
	s := state.New()
	s.Tasks.Mode = mode
	data, err := s.Serialize()
	require.NoError(t, err)
	return data
}

func TestSaveAndLatest(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(Checkpoint{
				ThreadID: "t1", StepIndex: 1, NodeName: "hci_ingress", State: payload(t, state.ModeIdle),
			}))
			require.NoError(t, store.Save(Checkpoint{
				ThreadID: "t1", StepIndex: 2, NodeName: "telemetry_sync", State: payload(t, state.ModeExec),
			}))

			cp, ok, err := store.Latest("t1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 2, cp.StepIndex)
			assert.Equal(t, "telemetry_sync", cp.NodeName)

			restored, err := state.Deserialize(cp.State)
			require.NoError(t, err)
			assert.Equal(t, state.ModeExec, restored.Tasks.Mode)
		})
	}
}

func TestLatestOnEmptyThread(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Latest("nope")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestGetExactStep(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(Checkpoint{ThreadID: "t1", StepIndex: 5, NodeName: "react_decide", State: payload(t, state.ModeExec)}))

			cp, ok, err := store.Get("t1", 5)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "react_decide", cp.NodeName)

			_, ok, err = store.Get("t1", 99)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 1; i <= 5; i++ {
				require.NoError(t, store.Save(Checkpoint{ThreadID: "t1", StepIndex: i, NodeName: "n", State: payload(t, state.ModeIdle)}))
			}
			cps, err := store.List("t1", 3)
			require.NoError(t, err)
			require.Len(t, cps, 3)
			assert.Equal(t, 5, cps[0].StepIndex)
			assert.Equal(t, 3, cps[2].StepIndex)
		})
	}
}

func TestDeleteThread(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(Checkpoint{ThreadID: "t1", StepIndex: 1, NodeName: "n", State: payload(t, state.ModeIdle)}))
			require.NoError(t, store.Delete("t1"))
			_, ok, err := store.Latest("t1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestThreadIsolation(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(Checkpoint{ThreadID: "a", StepIndex: 1, NodeName: "n", State: payload(t, state.ModeIdle)}))
			require.NoError(t, store.Save(Checkpoint{ThreadID: "b", StepIndex: 7, NodeName: "n", State: payload(t, state.ModeExec)}))

			cp, ok, err := store.Latest("a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 1, cp.StepIndex)
		})
	}
}

func TestSQLiteSideEffectKeys(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "brain.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	seen, _, err := store.SeenEffect("t1", "dispatch:t1/1/1/0")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.MarkEffect("t1", "dispatch:t1/1/1/0", "goal_1"))

	seen, value, err := store.SeenEffect("t1", "dispatch:t1/1/1/0")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, "goal_1", value)

	// INSERT OR IGNORE keeps the first value.
	require.NoError(t, store.MarkEffect("t1", "dispatch:t1/1/1/0", "goal_other"))
	_, value, err = store.SeenEffect("t1", "dispatch:t1/1/1/0")
	require.NoError(t, err)
	assert.Equal(t, "goal_1", value)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brain.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(Checkpoint{ThreadID: "t1", StepIndex: 3, NodeName: "dispatch_skills", State: payload(t, state.ModeExec)}))
	require.NoError(t, store.MarkEffect("t1", "k", "v"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	cp, ok, err := reopened.Latest("t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dispatch_skills", cp.NodeName)

	seen, value, err := reopened.SeenEffect("t1", "k")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, "v", value)
}
