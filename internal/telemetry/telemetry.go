// Package telemetry defines the adapter contract for objective robot
// state. The core never derives telemetry; it copies snapshots verbatim.
package telemetry

import (
	"sync"

	"robotbrain/internal/state"
)

// Snapshot is one complete telemetry reading.
type Snapshot struct {
	Pose             state.Pose
	Twist            state.Twist
	BatteryPct       float64
	BatteryState     string
	Resources        map[string]bool
	DistanceToTarget float64
}

// Source produces telemetry snapshots. Implementations: robot runtime
// bridge, the simulator, or the mock below.
type Source interface {
	Snapshot() Snapshot
}

// WorldSource produces the semantic world picture for the world-update
// node.
type WorldSource interface {
	Zones() []string
	Obstacles() []state.Obstacle
}

// Mock is a settable Source+WorldSource for tests.
type Mock struct {
	mu        sync.Mutex
	snapshot  Snapshot
	zones     []string
	obstacles []state.Obstacle
}

// NewMock returns a mock with a healthy default reading.
func NewMock() *Mock {
	return &Mock{
		snapshot: Snapshot{
			Pose:         state.Pose{OrientationW: 1.0},
			BatteryPct:   100.0,
			BatteryState: "FULL",
			Resources: map[string]bool{
				state.ResourceBase:    false,
				state.ResourceArm:     false,
				state.ResourceGripper: false,
			},
		},
		zones: []string{"kitchen", "living_room", "bedroom", "bathroom", "charging_station"},
	}
}

func (m *Mock) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot
	snap.Resources = make(map[string]bool, len(m.snapshot.Resources))
	for k, v := range m.snapshot.Resources {
		snap.Resources[k] = v
	}
	return snap
}

func (m *Mock) SetSnapshot(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snap
}

func (m *Mock) SetBattery(pct float64, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.BatteryPct = pct
	m.snapshot.BatteryState = label
}

func (m *Mock) SetPose(p state.Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Pose = p
}

func (m *Mock) Zones() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.zones...)
}

func (m *Mock) SetZones(zones []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones = zones
}

func (m *Mock) Obstacles() []state.Obstacle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]state.Obstacle(nil), m.obstacles...)
}

func (m *Mock) SetObstacles(obstacles []state.Obstacle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obstacles = obstacles
}
