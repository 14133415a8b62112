package react

import (
	"context"
	"time"

	"robotbrain/internal/executor"
	"robotbrain/internal/logging"
	"robotbrain/internal/metrics"
	"robotbrain/internal/skill"
	"robotbrain/internal/state"
)

// DispatchSkills (R6) is the sole side-effecting node. Every executor
// call carries a deterministic idempotency key derived from
// (thread id, tick, iteration, op index) so a replay after a crash
// re-issues nothing.
type DispatchSkills struct {
	executor *executor.Dedup
	registry *skill.Registry
	threadID string
	metrics  *metrics.Set
	logger   *logging.Logger
	now      func() time.Time
}

func NewDispatchSkills(exec *executor.Dedup, registry *skill.Registry, threadID string, m *metrics.Set) *DispatchSkills {
	if m == nil {
		m = metrics.Nop()
	}
	return &DispatchSkills{
		executor: exec,
		registry: registry,
		threadID: threadID,
		metrics:  m,
		logger:   logging.NewComponentLogger("react"),
		now:      time.Now,
	}
}

func (n *DispatchSkills) Name() string { return "dispatch_skills" }

func (n *DispatchSkills) Run(ctx context.Context, s *state.BrainState) (*state.BrainState, error) {
	ops := s.React.ProposedOps
	if ops == nil {
		return s, nil
	}

	tick := int(s.Trace.Metrics["tick"])

	// Cancels complete before dispatches within one pass, so freed
	// resources are actually free when the new skill starts.
	for i, goalID := range ops.ToCancel {
		key := executor.Key("cancel", n.threadID, tick, s.React.Iter, i)
		if err := n.executor.CancelOnce(ctx, goalID, key); err != nil {
			n.logger.Warn("cancel %s failed: %v", goalID, err)
			s.AppendTrace("[dispatch_skills] cancel %s failed: %v", goalID, err)
			continue
		}
		n.metrics.Cancels.Inc()
		s.Skills.Running = removeGoal(s.Skills.Running, goalID)
		s.AppendTrace("[dispatch_skills] cancelled %s", goalID)
	}

	for i, op := range ops.ToDispatch {
		key := executor.Key("dispatch", n.threadID, tick, s.React.Iter, i)
		goalID, err := n.executor.Dispatch(ctx, op.SkillName, op.Params, key)
		if err != nil {
			n.logger.Error("dispatch %s failed: %v", op.SkillName, err)
			s.Skills.LastResult = &state.SkillResult{
				Status:    state.SkillFailed,
				ErrorCode: "DISPATCH_FAILED",
				ErrorMsg:  err.Error(),
			}
			s.AppendTrace("[dispatch_skills] dispatch %s failed: %v", op.SkillName, err)
			continue
		}
		n.metrics.Dispatches.Inc()

		timeoutS := 60.0
		var resources []string
		if def, derr := n.registry.Get(op.SkillName); derr == nil {
			timeoutS = def.TimeoutS
			resources = def.ResourcesRequired
		}

		// A replayed dispatch resolves to the same goal id; do not
		// double-book it.
		if !hasGoal(s.Skills.Running, goalID) {
			s.Skills.Running = append(s.Skills.Running, state.RunningSkill{
				GoalID:            goalID,
				SkillName:         op.SkillName,
				StartTime:         float64(n.now().UnixMilli()) / 1000.0,
				TimeoutS:          timeoutS,
				ResourcesOccupied: resources,
				Params:            op.Params,
			})
		}
		s.AppendTrace("[dispatch_skills] dispatched %s -> %s", op.SkillName, goalID)
	}

	for i, text := range ops.ToSpeak {
		key := executor.Key("speak", n.threadID, tick, s.React.Iter, i)
		if err := n.executor.Speak(ctx, text, key); err != nil {
			n.logger.Warn("speak failed: %v", err)
		}
	}

	syncResourceFlags(s)
	return s, nil
}

func removeGoal(running []state.RunningSkill, goalID string) []state.RunningSkill {
	out := running[:0]
	for _, rs := range running {
		if rs.GoalID != goalID {
			out = append(out, rs)
		}
	}
	return out
}

func hasGoal(running []state.RunningSkill, goalID string) bool {
	for _, rs := range running {
		if rs.GoalID == goalID {
			return true
		}
	}
	return false
}

// syncResourceFlags recomputes the busy flags from the running set so
// the state's view is consistent the moment the pass ends.
func syncResourceFlags(s *state.BrainState) {
	occupied := s.OccupiedResources()
	for _, resource := range state.ExclusiveResources {
		s.Robot.Resources[resource] = occupied[resource]
	}
}
