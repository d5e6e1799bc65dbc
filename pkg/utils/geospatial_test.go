package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistance(t *testing.T) {
	assert.Zero(t, HaversineDistance(-1.2921, 36.8219, -1.2921, 36.8219))

	// Nairobi CBD to JKIA is roughly 13km as the crow flies.
	d := HaversineDistance(-1.2864, 36.8172, -1.3192, 36.9278)
	assert.InDelta(t, 12.8, d, 1.0)
}

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		in  string
		ok  bool
		lat float64
		lng float64
	}{
		{"-1.2864, 36.8172", true, -1.2864, 36.8172},
		{"40.7128,-74.0060", true, 40.7128, -74.0060},
		{"Kenyatta Avenue", false, 0, 0},
		{"1,2,3", false, 0, 0},
		{"91,0", false, 0, 0},
		{"0,181", false, 0, 0},
		{"north,east", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lat, lng, ok := ParseCoordinate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.lat, lat, 1e-9)
				assert.InDelta(t, tt.lng, lng, 1e-9)
			}
		})
	}
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 20.0, RoundMoney(20.0))
	assert.Equal(t, 37.5, RoundMoney(37.5))
	assert.Equal(t, 12.35, RoundMoney(12.345000001))
	assert.Equal(t, 0.1, RoundMoney(0.1))
}
