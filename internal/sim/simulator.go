// Package sim is the in-process robot: one deterministic harness that
// implements the telemetry source, the world source and the skill
// executor. Navigation goals move the pose toward their target a fixed
// step per Advance call and drain the battery; goals complete when the
// robot is within the arrival threshold.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"robotbrain/internal/executor"
	"robotbrain/internal/state"
	"robotbrain/internal/telemetry"
	"robotbrain/internal/world"
)

const (
	moveSpeed        = 1.0 // units per step
	batteryDrain     = 0.5 // percent per moving step
	arrivalThreshold = 0.3
)

type goal struct {
	id        string
	skillName string
	targetX   float64
	targetY   float64
	done      bool
	result    *state.SkillResult
}

// Simulator is safe for concurrent use by the graph and a host loop
// advancing time.
type Simulator struct {
	mu sync.Mutex

	pose      state.Pose
	twist     state.Twist
	battery   float64
	obstacles []state.Obstacle

	goals  map[string]*goal
	active *goal // navigation goal currently steering the base
	spoken []string
}

// New places the robot at the charging station with a full battery.
func New() *Simulator {
	_, home, _ := world.Resolve(world.ChargingStation)
	return &Simulator{
		pose:    state.Pose{X: home.X, Y: home.Y, OrientationW: 1.0},
		battery: 100.0,
		goals:   make(map[string]*goal),
	}
}

// --- telemetry.Source ---

func (s *Simulator) Snapshot() telemetry.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	resources := map[string]bool{
		state.ResourceBase:    s.active != nil,
		state.ResourceArm:     false,
		state.ResourceGripper: false,
	}
	dist := 0.0
	if s.active != nil {
		dist = math.Hypot(s.active.targetX-s.pose.X, s.active.targetY-s.pose.Y)
	}
	return telemetry.Snapshot{
		Pose:             s.pose,
		Twist:            s.twist,
		BatteryPct:       s.battery,
		BatteryState:     batteryLabel(s.battery),
		Resources:        resources,
		DistanceToTarget: dist,
	}
}

// --- telemetry.WorldSource ---

func (s *Simulator) Zones() []string { return world.Zones() }

func (s *Simulator) Obstacles() []state.Obstacle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]state.Obstacle(nil), s.obstacles...)
}

// SetObstacles injects obstacle records, e.g. to raise collision_risk.
func (s *Simulator) SetObstacles(obstacles []state.Obstacle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obstacles = obstacles
}

// SetBattery overrides the battery level.
func (s *Simulator) SetBattery(pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battery = pct
}

// --- executor.Executor ---

func (s *Simulator) Dispatch(_ context.Context, skillName string, params map[string]any, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "goal_" + uuid.NewString()[:8]
	g := &goal{id: id, skillName: skillName}

	switch skillName {
	case "NavigateToPose":
		tx, okX := asFloat(params["target_x"])
		ty, okY := asFloat(params["target_y"])
		if !okX || !okY {
			return "", fmt.Errorf("navigate dispatch missing target coordinates")
		}
		g.targetX, g.targetY = tx, ty
		s.active = g

	case "StopBase":
		s.twist = state.Twist{}
		if s.active != nil {
			s.active.done = true
			s.active.result = &state.SkillResult{
				Status:    state.SkillCancelled,
				ErrorCode: "CANCELLED",
				ErrorMsg:  "base stopped",
			}
			s.active = nil
		}
		g.done = true
		g.result = &state.SkillResult{Status: state.SkillSuccess}

	case "Speak":
		if msg, ok := params["message"].(string); ok {
			s.spoken = append(s.spoken, msg)
		}
		g.done = true
		g.result = &state.SkillResult{Status: state.SkillSuccess}

	default:
		return "", fmt.Errorf("simulator has no skill %q", skillName)
	}

	s.goals[id] = g
	return id, nil
}

func (s *Simulator) Cancel(_ context.Context, goalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalID]
	if !ok {
		return fmt.Errorf("unknown goal %s", goalID)
	}
	if !g.done {
		g.done = true
		g.result = &state.SkillResult{
			Status:    state.SkillCancelled,
			ErrorCode: "CANCELLED",
			ErrorMsg:  "cancelled by core",
		}
	}
	if s.active == g {
		s.active = nil
		s.twist = state.Twist{}
	}
	return nil
}

func (s *Simulator) PollGoal(_ context.Context, goalID string) (executor.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalID]
	if !ok {
		return executor.Poll{}, fmt.Errorf("unknown goal %s", goalID)
	}
	if g.done {
		return executor.Poll{Done: true, Result: g.result}, nil
	}
	feedback := map[string]any{
		"distance_remaining": math.Hypot(g.targetX-s.pose.X, g.targetY-s.pose.Y),
	}
	return executor.Poll{Feedback: feedback}, nil
}

func (s *Simulator) Speak(_ context.Context, text string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return nil
}

// Spoken returns everything spoken so far.
func (s *Simulator) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

// Advance moves simulated time one step: the base steps toward the
// active navigation target and the battery drains while moving.
func (s *Simulator) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.active
	if g == nil {
		s.twist = state.Twist{}
		return
	}

	dx := g.targetX - s.pose.X
	dy := g.targetY - s.pose.Y
	dist := math.Hypot(dx, dy)

	if dist <= arrivalThreshold {
		g.done = true
		g.result = &state.SkillResult{
			Status:  state.SkillSuccess,
			Metrics: map[string]float64{"final_distance": dist},
		}
		s.active = nil
		s.twist = state.Twist{}
		return
	}

	step := math.Min(moveSpeed, dist)
	s.pose.X += dx / dist * step
	s.pose.Y += dy / dist * step
	s.twist = state.Twist{LinearX: step}
	s.battery = math.Max(0, s.battery-batteryDrain)
}

func batteryLabel(pct float64) string {
	switch {
	case pct >= 90:
		return "FULL"
	case pct >= 20:
		return "DISCHARGING"
	case pct >= 5:
		return "LOW"
	default:
		return "CRITICAL"
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
