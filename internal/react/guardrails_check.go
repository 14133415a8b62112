package react

import (
	"context"
	"fmt"
	"strings"

	"robotbrain/internal/logging"
	"robotbrain/internal/metrics"
	"robotbrain/internal/skill"
	"robotbrain/internal/state"
)

// Guardrail reject codes.
const (
	RejectUnknownSkill     = "REJECT_UNKNOWN_SKILL"
	RejectParams           = "REJECT_PARAMS"
	RejectResourceConflict = "REJECT_RESOURCE_CONFLICT"
)

// GuardrailsCheck (R4) is the hard validation gate: unknown skills,
// schema violations and resource conflicts never reach the dispatcher,
// whatever the oracle said.
type GuardrailsCheck struct {
	registry *skill.Registry
	metrics  *metrics.Set
	logger   *logging.Logger
}

func NewGuardrailsCheck(registry *skill.Registry, m *metrics.Set) *GuardrailsCheck {
	if m == nil {
		m = metrics.Nop()
	}
	return &GuardrailsCheck{
		registry: registry,
		metrics:  m,
		logger:   logging.NewComponentLogger("react"),
	}
}

func (n *GuardrailsCheck) Name() string { return "guardrails_check" }

func (n *GuardrailsCheck) Run(_ context.Context, s *state.BrainState) (*state.BrainState, error) {
	ops := s.React.ProposedOps
	if ops == nil {
		return s, nil
	}

	if n.demoteInProtectedMode(s, ops) {
		return s, nil
	}

	var violations []violation
	for _, op := range ops.ToDispatch {
		if v := n.checkOp(s, ops, op); v != nil {
			violations = append(violations, *v)
		}
	}

	if len(violations) == 0 {
		s.AppendTrace("[guardrails_check] pass")
		return s, nil
	}

	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.msg
		n.metrics.GuardrailRejects.WithLabelValues(v.code).Inc()
	}
	errMsg := strings.Join(msgs, "; ")

	// The oracle sees the rejection through last_result on the next
	// observation and replans; only the loop caps escalate to a human.
	s.Skills.LastResult = &state.SkillResult{
		Status:    state.SkillFailed,
		ErrorCode: violations[0].code,
		ErrorMsg:  errMsg,
	}
	if s.React.Decision != nil {
		s.React.Decision.Type = state.DecisionReplan
		s.React.Decision.Reason = "guardrails rejected: " + errMsg
	}
	ops.ToDispatch = nil

	s.AppendTrace("[guardrails_check] reject: %s", errMsg)
	n.logger.Warn("rejected ops: %s", errMsg)
	return s, nil
}

type violation struct {
	code string
	msg  string
}

func (n *GuardrailsCheck) checkOp(s *state.BrainState, ops *state.ProposedOps, op state.DispatchOp) *violation {
	def, err := n.registry.Get(op.SkillName)
	if err != nil {
		return &violation{RejectUnknownSkill, "unknown skill: " + op.SkillName}
	}

	if msg := skill.ValidateParams(def.ArgsSchema, op.Params); msg != "" {
		return &violation{RejectParams, fmt.Sprintf("invalid params for %s: %s", op.SkillName, msg)}
	}

	cancelled := make(map[string]bool, len(ops.ToCancel))
	for _, id := range ops.ToCancel {
		cancelled[id] = true
	}
	for _, required := range def.ResourcesRequired {
		for _, rs := range s.Skills.Running {
			if cancelled[rs.GoalID] {
				// Freed within this same pass; cancels complete before
				// dispatches.
				continue
			}
			for _, held := range rs.ResourcesOccupied {
				if held == required {
					return &violation{
						RejectResourceConflict,
						fmt.Sprintf("resource %s held by %s (%s)", required, rs.SkillName, rs.GoalID),
					}
				}
			}
		}
	}
	return nil
}

// demoteInProtectedMode blocks resource-owning dispatches while the
// arbiter holds SAFE or CHARGE, except the mode's own canonical
// response.
func (n *GuardrailsCheck) demoteInProtectedMode(s *state.BrainState, ops *state.ProposedOps) bool {
	mode := s.Tasks.Mode
	if mode != state.ModeSafe && mode != state.ModeCharge {
		return false
	}
	canonical := "StopBase"
	if mode == state.ModeCharge {
		canonical = "NavigateToPose"
	}
	for _, op := range ops.ToDispatch {
		def, err := n.registry.Get(op.SkillName)
		if err != nil || len(def.ResourcesRequired) == 0 {
			continue
		}
		if op.SkillName == canonical {
			continue
		}
		if s.React.Decision != nil {
			s.React.Decision.Type = state.DecisionAskHuman
			s.React.Decision.Reason = fmt.Sprintf("%s dispatch blocked in %s mode", op.SkillName, mode)
		}
		ops.ToDispatch = nil
		ops.NeedApproval = true
		ops.ApprovalPayload = state.ApprovalPayload{
			Reason: fmt.Sprintf("dispatch of %s while mode=%s needs confirmation", op.SkillName, mode),
		}
		s.AppendTrace("[guardrails_check] demoted to ASK_HUMAN in mode %s", mode)
		return true
	}
	return false
}
