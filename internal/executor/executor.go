// Package executor defines the contract between the decision core and
// the external skill execution layer, plus the replay-safety wrapper
// that deduplicates side effects by idempotency key.
package executor

import (
	"context"

	"robotbrain/internal/state"
)

// Poll is the observable status of one dispatched goal.
type Poll struct {
	Done     bool
	Feedback map[string]any
	Result   *state.SkillResult
}

// Executor is the four-operation contract the dispatch and observe nodes
// call. Implementations live outside the core (robot runtime, simulator).
type Executor interface {
	// Dispatch starts a skill and returns an opaque goal id.
	Dispatch(ctx context.Context, skillName string, params map[string]any, idempotencyKey string) (string, error)
	// Cancel requests cancellation and blocks until confirmed.
	Cancel(ctx context.Context, goalID string) error
	// PollGoal reports progress or the terminal result for a goal.
	PollGoal(ctx context.Context, goalID string) (Poll, error)
	// Speak emits a user-facing utterance.
	Speak(ctx context.Context, text string, idempotencyKey string) error
}
