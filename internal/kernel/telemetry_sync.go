package kernel

import (
	"context"
	"math"
	"strconv"

	"robotbrain/internal/logging"
	"robotbrain/internal/state"
	"robotbrain/internal/telemetry"
)

// TelemetrySync (K2) copies one adapter snapshot into robot state. The
// only computed field is distance_to_target, which needs the active
// task's target coordinates; resources held by running skills are also
// kept flagged busy on top of the adapter's flags.
type TelemetrySync struct {
	source telemetry.Source
	logger *logging.Logger
}

func NewTelemetrySync(source telemetry.Source) *TelemetrySync {
	return &TelemetrySync{source: source, logger: logging.NewComponentLogger("kernel")}
}

func (n *TelemetrySync) Name() string { return "telemetry_sync" }

func (n *TelemetrySync) Run(_ context.Context, s *state.BrainState) (*state.BrainState, error) {
	snap := n.source.Snapshot()

	s.Robot.Pose = snap.Pose
	s.Robot.Twist = snap.Twist
	s.Robot.BatteryPct = snap.BatteryPct
	s.Robot.BatteryState = snap.BatteryState
	if snap.Resources != nil {
		resources := make(map[string]bool, len(snap.Resources))
		for k, v := range snap.Resources {
			resources[k] = v
		}
		s.Robot.Resources = resources
	}
	// Running skills keep their reservation even when the sensor-side
	// busy flag lags behind a fresh dispatch.
	for r := range s.OccupiedResources() {
		s.Robot.Resources[r] = true
	}
	s.Robot.DistanceToTarget = distanceToTarget(s, snap)

	s.AppendTrace("[telemetry_sync] pos=(%.2f, %.2f) battery=%.1f%% dist=%.2fm",
		snap.Pose.X, snap.Pose.Y, snap.BatteryPct, s.Robot.DistanceToTarget)
	return s, nil
}

func distanceToTarget(s *state.BrainState, snap telemetry.Snapshot) float64 {
	task := s.ActiveTask()
	if task == nil {
		return snap.DistanceToTarget
	}
	tx, okX := parseCoord(task.Metadata["target_x"])
	ty, okY := parseCoord(task.Metadata["target_y"])
	if !okX || !okY {
		return snap.DistanceToTarget
	}
	return math.Hypot(tx-snap.Pose.X, ty-snap.Pose.Y)
}

func parseCoord(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}
