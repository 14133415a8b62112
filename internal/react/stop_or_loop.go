package react

import (
	"context"

	"robotbrain/internal/logging"
	"robotbrain/internal/state"
)

// Limits bound the inner loop.
type Limits struct {
	MaxIterations          int
	MaxConsecutiveFailures int
}

// DefaultLimits bound a runaway inner loop: 20 iterations, 3
// consecutive failures of the same skill.
func DefaultLimits() Limits {
	return Limits{MaxIterations: 20, MaxConsecutiveFailures: 3}
}

// StopOrLoop (R8) decides whether the inner loop exits and with which
// stop reason. Exit conditions are evaluated in a fixed order so the
// same state always stops for the same reason.
type StopOrLoop struct {
	limits Limits
	logger *logging.Logger
}

func NewStopOrLoop(limits Limits) *StopOrLoop {
	return &StopOrLoop{limits: limits, logger: logging.NewComponentLogger("react")}
}

func (n *StopOrLoop) Name() string { return "stop_or_loop" }

func (n *StopOrLoop) Run(_ context.Context, s *state.BrainState) (*state.BrainState, error) {
	decision, reason := n.Evaluate(s)
	s.React.StopReason = reason
	if s.Trace.Metrics == nil {
		s.Trace.Metrics = map[string]float64{}
	}
	if decision == LoopExit {
		s.Trace.Metrics["last_react_iters"] = float64(s.React.Iter)
	}

	if decision == LoopExit {
		n.finishTask(s, reason)
	}

	s.AppendTrace("[stop_or_loop] %s reason=%s", decision, reason)
	return s, nil
}

// Evaluate applies the exit table. An empty reason with LoopContinue
// means run another iteration.
func (n *StopOrLoop) Evaluate(s *state.BrainState) (LoopDecision, string) {
	if d := s.React.Decision; d != nil {
		switch d.Type {
		case state.DecisionFinish:
			return LoopExit, StopTaskCompleted
		case state.DecisionAbort:
			if s.React.StopReason == StopUserRejected {
				return LoopExit, StopUserRejected
			}
			return LoopExit, StopTaskAborted
		case state.DecisionAskHuman:
			return LoopExit, StopAskHuman
		}
	}

	if s.React.Iter >= n.limits.MaxIterations {
		n.forceAskHuman(s, "iteration cap reached")
		return LoopExit, StopIterCap
	}

	if s.React.ConsecutiveFailures >= n.limits.MaxConsecutiveFailures {
		n.forceAskHuman(s, "repeated failures of "+s.React.FailedSkill)
		return LoopExit, StopConsecutiveFailure
	}

	if s.Tasks.Mode == state.ModeSafe || s.Tasks.Mode == state.ModeCharge {
		return LoopExit, StopModePreempt
	}

	if s.React.StopReason == StopUserRejected {
		return LoopExit, StopUserRejected
	}

	return LoopContinue, ""
}

func (n *StopOrLoop) forceAskHuman(s *state.BrainState, why string) {
	if s.React.Decision == nil {
		s.React.Decision = &state.Decision{}
	}
	s.React.Decision.Type = state.DecisionAskHuman
	s.React.Decision.Reason = why
}

// finishTask settles the active task's terminal status so the queue can
// advance on the next kernel pass.
func (n *StopOrLoop) finishTask(s *state.BrainState, reason string) {
	task := s.ActiveTask()
	if task == nil {
		return
	}
	switch reason {
	case StopTaskCompleted:
		task.Status = state.TaskCompleted
		s.Tasks.ActiveTaskID = ""
	case StopTaskAborted, StopUserRejected:
		task.Status = state.TaskCancelled
		s.Tasks.ActiveTaskID = ""
	}
}
