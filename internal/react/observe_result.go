package react

import (
	"context"
	"fmt"
	"time"

	"robotbrain/internal/executor"
	"robotbrain/internal/logging"
	"robotbrain/internal/state"
)

// ObserveResult (R7) polls every running skill, retires completed and
// timed-out entries, and threads results back into the chat log so the
// oracle sees them on the next iteration.
type ObserveResult struct {
	executor *executor.Dedup
	logger   *logging.Logger
	now      func() time.Time
}

func NewObserveResult(exec *executor.Dedup) *ObserveResult {
	return &ObserveResult{
		executor: exec,
		logger:   logging.NewComponentLogger("react"),
		now:      time.Now,
	}
}

func (n *ObserveResult) Name() string { return "observe_result" }

func (n *ObserveResult) Run(ctx context.Context, s *state.BrainState) (*state.BrainState, error) {
	var stillRunning []state.RunningSkill
	var completed []state.SkillResult

	for _, rs := range s.Skills.Running {
		poll, err := n.executor.PollGoal(ctx, rs.GoalID)
		if err != nil {
			n.logger.Warn("poll %s failed: %v", rs.GoalID, err)
			stillRunning = append(stillRunning, rs)
			continue
		}

		if poll.Done {
			result := state.SkillResult{Status: state.SkillSuccess}
			if poll.Result != nil {
				result = *poll.Result
			}
			completed = append(completed, result)
			s.AppendTrace("[observe_result] %s finished: %s", rs.SkillName, result.Status)
			n.recordOutcome(s, rs.SkillName, result)
			continue
		}

		elapsed := float64(n.now().UnixMilli())/1000.0 - rs.StartTime
		if elapsed > rs.TimeoutS {
			result := state.SkillResult{
				Status:    state.SkillFailed,
				ErrorCode: "TIMEOUT",
				ErrorMsg:  fmt.Sprintf("skill %s timed out after %.0fs", rs.SkillName, rs.TimeoutS),
			}
			completed = append(completed, result)
			s.AppendTrace("[observe_result] %s timed out", rs.SkillName)
			n.recordOutcome(s, rs.SkillName, result)
			// Best-effort cancel of the timed-out goal; the result is
			// already decided.
			if err := n.executor.Cancel(ctx, rs.GoalID); err != nil {
				n.logger.Debug("cancel after timeout %s: %v", rs.GoalID, err)
			}
			continue
		}

		if len(poll.Feedback) > 0 {
			s.AppendTrace("[observe_result] %s feedback: %v", rs.SkillName, poll.Feedback)
		}
		stillRunning = append(stillRunning, rs)
	}

	s.Skills.Running = stillRunning
	if len(completed) > 0 {
		last := completed[len(completed)-1]
		s.Skills.LastResult = &last
	}

	for _, result := range completed {
		content := "Skill result: " + string(result.Status)
		if result.ErrorCode != "" {
			content += fmt.Sprintf(" (%s: %s)", result.ErrorCode, result.ErrorMsg)
		}
		s.Messages = append(s.Messages, state.Message{
			Role:    "system",
			Content: content,
			Kind:    "tool_result",
		})
	}

	syncResourceFlags(s)
	return s, nil
}

// recordOutcome maintains the consecutive-failure counter the stop node
// reads. Success on any skill resets it; failures only accumulate while
// the same skill keeps failing.
func (n *ObserveResult) recordOutcome(s *state.BrainState, skillName string, result state.SkillResult) {
	if result.Status == state.SkillFailed {
		if s.React.FailedSkill == skillName {
			s.React.ConsecutiveFailures++
		} else {
			s.React.FailedSkill = skillName
			s.React.ConsecutiveFailures = 1
		}
		return
	}
	if result.Status == state.SkillSuccess {
		s.React.ConsecutiveFailures = 0
		s.React.FailedSkill = ""
	}
}
