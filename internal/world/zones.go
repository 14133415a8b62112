// Package world carries the static semantic map shared by the op
// compiler and the simulator: named zones, their coordinates and the
// natural-language aliases users actually say.
package world

// Point is a 2D map coordinate.
type Point struct {
	X float64
	Y float64
}

// ChargingStation is the zone the charge handler navigates to.
const ChargingStation = "charging_station"

// zoneCoordinates maps canonical zone names to their docking points.
var zoneCoordinates = map[string]Point{
	"kitchen":       {X: 2.0, Y: 2.0},
	"living_room":   {X: 10.0, Y: 5.0},
	"bedroom":       {X: 2.0, Y: 7.0},
	"bathroom":      {X: 7.0, Y: 12.0},
	ChargingStation: {X: -1.0, Y: 1.0},
}

// aliases maps spoken names onto canonical zones. 中文别名与英文同义词。
var aliases = map[string]string{
	"厨房":   "kitchen",
	"客厅":   "living_room",
	"卧室":   "bedroom",
	"浴室":   "bathroom",
	"洗手间":  "bathroom",
	"卫生间":  "bathroom",
	"充电站":  ChargingStation,
	"充电桩":  ChargingStation,
	"home": ChargingStation,
}

// Resolve maps a spoken zone name to its canonical name and coordinates.
func Resolve(name string) (string, Point, bool) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	pt, ok := zoneCoordinates[name]
	return name, pt, ok
}

// Zones lists the canonical zone names.
func Zones() []string {
	return []string{"kitchen", "living_room", "bedroom", "bathroom", ChargingStation}
}

// zoneBounds are coarse rectangles used to label the robot's position.
var zoneBounds = map[string][4]float64{
	"kitchen":       {0, 5, 0, 5},
	"living_room":   {5, 15, 0, 10},
	"bedroom":       {0, 5, 5, 10},
	"bathroom":      {5, 10, 10, 15},
	ChargingStation: {-2, 0, 0, 2},
}

// ZoneAt returns the zone containing (x, y), or "".
func ZoneAt(x, y float64) string {
	for _, zone := range Zones() {
		b := zoneBounds[zone]
		if x >= b[0] && x <= b[1] && y >= b[2] && y <= b[3] {
			return zone
		}
	}
	return ""
}
