package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCanonicalNames(t *testing.T) {
	name, pt, ok := Resolve("kitchen")
	require.True(t, ok)
	assert.Equal(t, "kitchen", name)
	assert.Equal(t, 2.0, pt.X)
	assert.Equal(t, 2.0, pt.Y)
}

func TestResolveAliases(t *testing.T) {
	cases := map[string]string{
		"厨房":   "kitchen",
		"客厅":   "living_room",
		"洗手间":  "bathroom",
		"卫生间":  "bathroom",
		"充电站":  ChargingStation,
		"home": ChargingStation,
	}
	for alias, want := range cases {
		name, _, ok := Resolve(alias)
		require.True(t, ok, alias)
		assert.Equal(t, want, name, alias)
	}
}

func TestResolveUnknown(t *testing.T) {
	_, _, ok := Resolve("garage")
	assert.False(t, ok)
}

func TestZoneAt(t *testing.T) {
	assert.Equal(t, "kitchen", ZoneAt(2, 2))
	assert.Equal(t, "living_room", ZoneAt(10, 5))
	assert.Equal(t, ChargingStation, ZoneAt(-1, 1))
	assert.Empty(t, ZoneAt(100, 100))
}

func TestZonesCovered(t *testing.T) {
	for _, zone := range Zones() {
		_, _, ok := Resolve(zone)
		assert.True(t, ok, zone)
	}
}
