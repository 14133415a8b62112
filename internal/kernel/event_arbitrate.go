package kernel

import (
	"context"
	"fmt"

	"robotbrain/internal/logging"
	"robotbrain/internal/metrics"
	"robotbrain/internal/state"
)

// Thresholds parameterize battery arbitration.
type Thresholds struct {
	BatteryCriticalPct float64
	BatteryLowPct      float64
}

// DefaultThresholds: SAFE below 5%, CHARGE below 20%.
func DefaultThresholds() Thresholds {
	return Thresholds{BatteryCriticalPct: 5.0, BatteryLowPct: 20.0}
}

// EventArbitrate (K4) is the only priority authority. It recomputes
// mode and preempt flag from scratch every tick; there is no hysteresis.
type EventArbitrate struct {
	thresholds Thresholds
	metrics    *metrics.Set
	logger     *logging.Logger
}

func NewEventArbitrate(thresholds Thresholds, m *metrics.Set) *EventArbitrate {
	if m == nil {
		m = metrics.Nop()
	}
	return &EventArbitrate{
		thresholds: thresholds,
		metrics:    m,
		logger:     logging.NewComponentLogger("kernel"),
	}
}

func (n *EventArbitrate) Name() string { return "event_arbitrate" }

func (n *EventArbitrate) Run(_ context.Context, s *state.BrainState) (*state.BrainState, error) {
	mode, preempt, reason := Arbitrate(s, n.thresholds)

	prev := s.Tasks.Mode
	s.Tasks.Mode = mode
	s.Tasks.PreemptFlag = preempt
	s.Tasks.PreemptReason = reason

	if prev != mode {
		n.metrics.ModeTransitions.WithLabelValues(string(mode)).Inc()
		n.logger.Info("mode %s -> %s (%s)", prev, mode, reason)
	}
	s.AppendTrace("[event_arbitrate] mode=%s preempt=%v reason=%s", mode, preempt, reason)
	return s, nil
}

// Arbitrate evaluates the decision table top-down; first match wins.
//
//	1. battery critical or collision risk  -> SAFE,   preempt
//	2. battery low                         -> CHARGE, preempt
//	3. user STOP                           -> IDLE,   preempt
//	4. user PAUSE                          -> IDLE
//	5. work pending                        -> EXEC
//	6. otherwise                           -> IDLE
func Arbitrate(s *state.BrainState, th Thresholds) (state.Mode, bool, string) {
	if event := safetyEvent(s, th); event != "" {
		return state.ModeSafe, true, "SAFETY: " + event
	}

	if s.Robot.BatteryPct < th.BatteryLowPct {
		return state.ModeCharge, true, fmt.Sprintf("BATTERY: low_battery_%.1f%%", s.Robot.BatteryPct)
	}

	switch s.HCI.UserInterrupt {
	case state.InterruptStop:
		return state.ModeIdle, true, "USER_STOP"
	case state.InterruptPause:
		return state.ModeIdle, false, "USER_PAUSE"
	}

	if workPending(s) {
		return state.ModeExec, false, "TASK: work pending"
	}

	return state.ModeIdle, false, "IDLE: no active task"
}

func safetyEvent(s *state.BrainState, th Thresholds) string {
	for _, obs := range s.World.Obstacles {
		if obs.CollisionRisk {
			return "collision_risk"
		}
	}
	if s.Robot.BatteryPct < th.BatteryCriticalPct {
		return "battery_critical"
	}
	return ""
}

// workPending covers the queue plus inputs that become queue entries
// later this same tick (the task-queue node runs after arbitration).
func workPending(s *state.BrainState) bool {
	if s.Tasks.ActiveTaskID != "" {
		return true
	}
	for _, t := range s.Tasks.Queue {
		if t.Status == state.TaskPending || t.Status == state.TaskRunning {
			return true
		}
	}
	if len(s.Tasks.Inbox) > 0 {
		return true
	}
	return s.HCI.UserInterrupt == state.InterruptNewGoal
}
