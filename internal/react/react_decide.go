package react

import (
	"context"
	"strconv"

	"robotbrain/internal/logging"
	"robotbrain/internal/metrics"
	"robotbrain/internal/oracle"
	"robotbrain/internal/state"
)

// ReActDecide (R2) asks the oracle for the next structured decision.
// Malformed output never propagates: it degrades to ASK_HUMAN inside
// ParseDecision.
type ReActDecide struct {
	oracle          oracle.Oracle
	registrySummary string
	metrics         *metrics.Set
	logger          *logging.Logger
}

func NewReActDecide(o oracle.Oracle, registrySummary string, m *metrics.Set) *ReActDecide {
	if m == nil {
		m = metrics.Nop()
	}
	return &ReActDecide{
		oracle:          o,
		registrySummary: registrySummary,
		metrics:         m,
		logger:          logging.NewComponentLogger("react"),
	}
}

func (n *ReActDecide) Name() string { return "react_decide" }

func (n *ReActDecide) Run(ctx context.Context, s *state.BrainState) (*state.BrainState, error) {
	observation := Format(s.React.Observation)

	n.metrics.OracleCalls.Inc()
	raw, err := n.oracle.Decide(ctx, s.Messages, observation, n.registrySummary)
	if err != nil {
		// An unreachable oracle is handled like malformed output: the
		// loop exits to a human instead of spinning.
		n.metrics.OracleFailures.Inc()
		n.logger.Warn("oracle decide failed: %v", err)
		decision := state.Decision{Type: state.DecisionAskHuman, Reason: "oracle_error: " + err.Error()}
		s.React.Decision = &decision
		s.AppendTrace("[react_decide] oracle error: %v", err)
		return s, nil
	}

	decision := ParseDecision(raw)
	if decision.Reason == ReasonMalformed {
		n.metrics.OracleFailures.Inc()
	}
	s.React.Decision = &decision

	s.Messages = append(s.Messages, state.Message{
		Role:    "assistant",
		Content: raw,
		Kind:    "decision",
	})

	// Oracle-decomposed goals go through the inbox; the task-queue node
	// stays the only queue writer.
	for i, nt := range decision.NewTasks {
		if nt.Target == "" {
			continue
		}
		s.Tasks.Inbox = append(s.Tasks.Inbox, map[string]string{
			"goal":     "navigate_to:" + nt.Target,
			"target":   nt.Target,
			"priority": strconv.Itoa(80 - i*5),
			"source":   "oracle_decompose",
			"sequence": strconv.Itoa(i),
		})
	}

	// Consume the utterance so the next kernel pass does not re-enter
	// EXEC for input the oracle already handled.
	s.HCI.UserUtterance = ""
	s.HCI.UserInterrupt = state.InterruptNone

	s.AppendTrace("[react_decide] type=%s reason=%s ops=%d", decision.Type, decision.Reason, len(decision.Ops))
	n.logger.Debug("decision=%s reason=%q", decision.Type, decision.Reason)
	return s, nil
}
