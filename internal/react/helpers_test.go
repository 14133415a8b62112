package react

import (
	"context"
	"fmt"
	"sync"

	"robotbrain/internal/executor"
	"robotbrain/internal/logging"
	"robotbrain/internal/skill"
	"robotbrain/internal/state"
)

// fakeExec records executor calls and serves scripted poll results.
type fakeExec struct {
	mu         sync.Mutex
	dispatched []state.DispatchOp
	cancelled  []string
	spoken     []string
	polls      map[string]executor.Poll
	nextGoal   int
	failNext   error
}

func newFakeExec() *fakeExec {
	return &fakeExec{polls: map[string]executor.Poll{}}
}

func (f *fakeExec) Dispatch(_ context.Context, skillName string, params map[string]any, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return "", err
	}
	f.nextGoal++
	f.dispatched = append(f.dispatched, state.DispatchOp{SkillName: skillName, Params: params})
	return fmt.Sprintf("goal_%d", f.nextGoal), nil
}

func (f *fakeExec) Cancel(_ context.Context, goalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, goalID)
	return nil
}

func (f *fakeExec) PollGoal(_ context.Context, goalID string) (executor.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if poll, ok := f.polls[goalID]; ok {
		return poll, nil
	}
	return executor.Poll{}, nil
}

func (f *fakeExec) Speak(_ context.Context, text string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeExec) setDone(goalID string, result state.SkillResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[goalID] = executor.Poll{Done: true, Result: &result}
}

func dedupOver(f *fakeExec) *executor.Dedup {
	return executor.NewDedup(f, "test-thread", executor.NewMemoryKeyStore(), logging.Nop())
}

func testRegistry() *skill.Registry {
	return skill.NewRegistry()
}

// execState returns a state inside EXEC with one running navigation.
func execState() *state.BrainState {
	s := state.New()
	s.Tasks.Mode = state.ModeExec
	s.Tasks.Queue = []state.Task{{
		ID: "t1", Goal: "navigate_to:kitchen", Priority: 80,
		Preemptible: true, Status: state.TaskRunning,
		ResourcesRequired: []string{state.ResourceBase},
	}}
	s.Tasks.ActiveTaskID = "t1"
	s.Skills.Running = []state.RunningSkill{{
		GoalID:            "goal_nav",
		SkillName:         "NavigateToPose",
		StartTime:         0,
		TimeoutS:          300,
		ResourcesOccupied: []string{state.ResourceBase},
		Params:            map[string]any{"target_x": 2.0, "target_y": 2.0},
	}}
	s.Robot.Resources[state.ResourceBase] = true
	return s
}
