package react

import (
	"context"
	"fmt"

	"robotbrain/internal/logging"
	"robotbrain/internal/skill"
	"robotbrain/internal/state"
	"robotbrain/internal/world"
)

// Skills that always require a human in the loop before dispatch.
var approvalRequiredSkills = map[string]bool{
	"navigate_to_unknown": true,
	"manipulate":          true,
	"dock":                true,
}

// CompileOps (R3) translates the oracle decision into the concrete
// cancel/dispatch/speak sets the executor understands.
type CompileOps struct {
	registry *skill.Registry
	logger   *logging.Logger
}

func NewCompileOps(registry *skill.Registry) *CompileOps {
	return &CompileOps{registry: registry, logger: logging.NewComponentLogger("react")}
}

func (n *CompileOps) Name() string { return "compile_ops" }

func (n *CompileOps) Run(_ context.Context, s *state.BrainState) (*state.BrainState, error) {
	ops := n.compile(s)
	s.React.ProposedOps = &ops
	s.AppendTrace("[compile_ops] cancel=%d dispatch=%d speak=%d approval=%v",
		len(ops.ToCancel), len(ops.ToDispatch), len(ops.ToSpeak), ops.NeedApproval)
	return s, nil
}

func (n *CompileOps) compile(s *state.BrainState) state.ProposedOps {
	decision := s.React.Decision
	if decision == nil {
		return state.ProposedOps{}
	}

	var ops state.ProposedOps

	switch decision.Type {
	case state.DecisionFinish:
		ops.ToCancel = n.cancellable(s, false)
		ops.ToSpeak = []string{"任务已完成"}

	case state.DecisionAbort:
		ops.ToCancel = n.cancellable(s, false)
		ops.ToSpeak = []string{"任务已中止"}

	case state.DecisionAskHuman:
		ops.NeedApproval = true
		ops.ApprovalPayload = state.ApprovalPayload{
			Reason:  decision.Reason,
			Ops:     compileDispatches(decision.Ops),
			Context: Format(s.React.Observation),
		}
		ops.ToSpeak = []string{"需要人工干预: " + decision.Reason}

	case state.DecisionRetry:
		// Cancel whatever runs for the active task and re-issue it.
		ops.ToCancel = n.cancellable(s, false)
		for _, rs := range s.Skills.Running {
			ops.ToDispatch = append(ops.ToDispatch, state.DispatchOp{
				SkillName: rs.SkillName,
				Params:    rs.Params,
			})
		}
		// The oracle may also spell the retry explicitly.
		ops.ToDispatch = append(ops.ToDispatch, compileDispatches(decision.Ops)...)

	case state.DecisionReplan:
		ops.ToCancel = n.cancellable(s, false)
		ops.ToDispatch = compileDispatches(decision.Ops)

	case state.DecisionSwitchTask:
		ops.ToCancel = n.cancellable(s, false)
		ops.ToDispatch = compileDispatches(decision.Ops)
		ops.ToSpeak = []string{"正在切换任务"}
		if target := s.ActiveTask(); target != nil && !target.Preemptible {
			ops.NeedApproval = true
			ops.ApprovalPayload = state.ApprovalPayload{
				Reason: fmt.Sprintf("switching away from non-preemptible task %s", target.ID),
				Ops:    ops.ToDispatch,
			}
		}

	case state.DecisionContinue:
		// Keep running skills; a preempt still cancels below.
		if s.Tasks.PreemptFlag {
			ops.ToCancel = n.cancellable(s, true)
		}
		ops.ToDispatch = compileDispatches(decision.Ops)
	}

	// A raised preempt flag cancels every preemptible running skill
	// regardless of decision type.
	if s.Tasks.PreemptFlag && len(ops.ToCancel) == 0 {
		ops.ToCancel = n.cancellable(s, true)
	}

	if decision.Reason != "" && decision.Type != state.DecisionAskHuman &&
		decision.Type != state.DecisionFinish && decision.Type != state.DecisionAbort {
		ops.ToSpeak = append(ops.ToSpeak, decision.Reason)
	}

	if !ops.NeedApproval {
		for _, op := range ops.ToDispatch {
			if requiresApproval(op) {
				ops.NeedApproval = true
				ops.ApprovalPayload = state.ApprovalPayload{
					Reason: "high-risk operation requires approval",
					Ops:    ops.ToDispatch,
				}
				break
			}
		}
	}

	return ops
}

// cancellable lists goal ids that may be cancelled. With preemptOnly,
// non-preemptible skills (a StopBase in progress) are left to finish.
func (n *CompileOps) cancellable(s *state.BrainState, preemptOnly bool) []string {
	var out []string
	for _, rs := range s.Skills.Running {
		def, err := n.registry.Get(rs.SkillName)
		if err == nil && !def.CancelSupported {
			continue
		}
		if preemptOnly && err == nil && !def.Preemptible {
			continue
		}
		out = append(out, rs.GoalID)
	}
	return out
}

// compileDispatches normalizes oracle ops: zone names become
// coordinates, legacy Speak params are renamed.
func compileDispatches(ops []state.Op) []state.DispatchOp {
	out := make([]state.DispatchOp, 0, len(ops))
	for _, op := range ops {
		if op.Skill == "" {
			continue
		}
		out = append(out, state.DispatchOp{
			SkillName: op.Skill,
			Params:    ConvertParams(op.Skill, op.Params),
		})
	}
	return out
}

// ConvertParams rewrites oracle-friendly params into the executor's
// schema.
func ConvertParams(skillName string, params map[string]any) map[string]any {
	if params == nil {
		params = map[string]any{}
	}
	switch skillName {
	case "Speak":
		// Some models emit "content" for the message field.
		if _, ok := params["message"]; !ok {
			if content, ok := params["content"]; ok {
				out := copyParams(params)
				delete(out, "content")
				out["message"] = content
				return out
			}
		}
	case "NavigateToPose":
		if target, ok := params["target"].(string); ok {
			if _, pt, found := world.Resolve(target); found {
				out := copyParams(params)
				delete(out, "target")
				out["target_x"] = pt.X
				out["target_y"] = pt.Y
				return out
			}
		}
	}
	return params
}

func requiresApproval(op state.DispatchOp) bool {
	if approvalRequiredSkills[op.SkillName] {
		return true
	}
	if risk, ok := op.Params["high_risk"].(bool); ok && risk {
		return true
	}
	return false
}

func copyParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
