package react

import (
	"context"
	"fmt"

	"robotbrain/internal/logging"
	"robotbrain/internal/metrics"
	"robotbrain/internal/state"
)

// HumanApproval (R5) gates risky operation sets behind a human. With no
// response on file it parks the thread: the driver sees the stop reason
// and suspends the whole graph until the host resumes with a response.
type HumanApproval struct {
	guardrails *GuardrailsCheck
	metrics    *metrics.Set
	logger     *logging.Logger
}

func NewHumanApproval(guardrails *GuardrailsCheck, m *metrics.Set) *HumanApproval {
	if m == nil {
		m = metrics.Nop()
	}
	return &HumanApproval{
		guardrails: guardrails,
		metrics:    m,
		logger:     logging.NewComponentLogger("react"),
	}
}

func (n *HumanApproval) Name() string { return "human_approval" }

func (n *HumanApproval) Run(ctx context.Context, s *state.BrainState) (*state.BrainState, error) {
	ops := s.React.ProposedOps
	if ops == nil || !ops.NeedApproval {
		return s, nil
	}

	response := s.HCI.ApprovalResponse
	if response == nil {
		n.metrics.Suspensions.Inc()
		s.React.StopReason = StopWaitingApproval
		s.HCI.InterruptPayload = map[string]string{
			"type":   "approval_required",
			"reason": ops.ApprovalPayload.Reason,
		}
		s.AppendTrace("[human_approval] suspended: %s", ops.ApprovalPayload.Reason)
		n.logger.Info("suspended awaiting approval: %s", ops.ApprovalPayload.Reason)
		return s, nil
	}

	// Consume the response whatever it says.
	s.HCI.ApprovalResponse = nil
	s.HCI.InterruptPayload = nil

	switch response.Action {
	case state.ApprovalApprove:
		ops.NeedApproval = false
		s.React.StopReason = ""
		s.AppendTrace("[human_approval] approved")

	case state.ApprovalEdit:
		for i := range ops.ToDispatch {
			merged := copyParams(ops.ToDispatch[i].Params)
			for k, v := range response.EditedParams {
				merged[k] = v
			}
			ops.ToDispatch[i].Params = merged
		}
		ops.NeedApproval = false
		s.React.StopReason = ""
		s.AppendTrace("[human_approval] edited params: %v", response.EditedParams)
		// Edited params go back through the guardrail gate.
		return n.guardrails.Run(ctx, s)

	case state.ApprovalReject:
		ops.ToDispatch = nil
		ops.NeedApproval = false
		ops.ToSpeak = append(ops.ToSpeak, "操作已被用户拒绝")
		if s.React.Decision != nil {
			s.React.Decision.Type = state.DecisionAbort
		}
		s.React.StopReason = StopUserRejected
		s.AppendTrace("[human_approval] rejected")

	default:
		return nil, fmt.Errorf("unknown approval action %q", response.Action)
	}
	return s, nil
}
