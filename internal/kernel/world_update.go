package kernel

import (
	"context"
	"fmt"
	"strings"

	"robotbrain/internal/logging"
	"robotbrain/internal/state"
	"robotbrain/internal/telemetry"
	"robotbrain/internal/world"
)

// WorldUpdate (K3) refreshes zones and obstacles from the world source
// and renders the deterministic summary the oracle consumes.
type WorldUpdate struct {
	source telemetry.WorldSource
	logger *logging.Logger
}

func NewWorldUpdate(source telemetry.WorldSource) *WorldUpdate {
	return &WorldUpdate{source: source, logger: logging.NewComponentLogger("kernel")}
}

func (n *WorldUpdate) Name() string { return "world_update" }

func (n *WorldUpdate) Run(_ context.Context, s *state.BrainState) (*state.BrainState, error) {
	zones := n.source.Zones()
	obstacles := n.source.Obstacles()

	s.World.Zones = zones
	s.World.Obstacles = obstacles
	s.World.Summary = summarize(s, zones, obstacles)

	s.AppendTrace("[world_update] zones=%d obstacles=%d", len(zones), len(obstacles))
	return s, nil
}

// summarize is deterministic for a fixed state: same inputs, same text.
func summarize(s *state.BrainState, zones []string, obstacles []state.Obstacle) string {
	var parts []string

	if zone := world.ZoneAt(s.Robot.Pose.X, s.Robot.Pose.Y); zone != "" {
		parts = append(parts, fmt.Sprintf("robot is in %s", zone))
	} else {
		parts = append(parts, fmt.Sprintf("robot at (%.1f, %.1f)", s.Robot.Pose.X, s.Robot.Pose.Y))
	}

	if len(zones) > 0 {
		parts = append(parts, "reachable zones: "+strings.Join(zones, ", "))
	}

	if len(obstacles) > 0 {
		descs := make([]string, 0, 3)
		for i, obs := range obstacles {
			if i == 3 {
				break
			}
			descs = append(descs, fmt.Sprintf("%s@(%.1f,%.1f)", obs.Type, obs.X, obs.Y))
		}
		parts = append(parts, "obstacles: "+strings.Join(descs, ", "))
	}

	if task := s.ActiveTask(); task != nil {
		parts = append(parts, "active task: "+task.Goal)
		if s.Robot.DistanceToTarget > 0 {
			parts = append(parts, fmt.Sprintf("distance to target: %.1fm", s.Robot.DistanceToTarget))
		}
	}

	return strings.Join(parts, "; ")
}
