// Package react implements the inner oracle-driven loop: observe,
// decide, compile, guard, approve, dispatch, observe results, stop or
// loop. The dispatch node is the only one with side effects; everything
// else is a pure State -> State transition.
package react

import (
	"context"

	"robotbrain/internal/state"
)

// Node is one ReAct transition.
type Node interface {
	Name() string
	Run(ctx context.Context, s *state.BrainState) (*state.BrainState, error)
}

// Stop reasons shared between the approval node, the stop node and the
// driver.
const (
	StopWaitingApproval    = "waiting_for_approval"
	StopUserRejected       = "user_rejected"
	StopTaskCompleted      = "task_completed"
	StopTaskAborted        = "task_aborted"
	StopAskHuman           = "ask_human"
	StopIterCap            = "iter_cap"
	StopConsecutiveFailure = "consecutive_failure"
	StopModePreempt        = "mode_preempt"
)

// LoopDecision is the stop node's routing token.
type LoopDecision string

const (
	LoopContinue LoopDecision = "continue"
	LoopExit     LoopDecision = "exit"
)
