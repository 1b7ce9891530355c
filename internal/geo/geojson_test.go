package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneCollection(t *testing.T) {
	fc := ZoneCollection([]Zone{
		{Name: "School", Center: Coordinate{Latitude: 44.7966, Longitude: 20.4589}, Kind: Safe, ThresholdMeters: 150},
		{Name: "Internet Klub", Center: Coordinate{Latitude: 44.7766, Longitude: 20.4389}, Kind: Restricted, ThresholdMeters: 120},
	})
	require.Len(t, fc.Features, 2)

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "FeatureCollection", decoded.Type)
	assert.Equal(t, "zone:School", decoded.Features[0].ID)
	assert.Equal(t, "Point", decoded.Features[0].Geometry.Type)
	assert.Equal(t, []float64{20.4589, 44.7966}, decoded.Features[0].Geometry.Coordinates)
	assert.Equal(t, "safe", decoded.Features[0].Properties["kind"])
	assert.Equal(t, "restricted", decoded.Features[1].Properties["kind"])
	assert.InDelta(t, 120.0, decoded.Features[1].Properties["threshold_meters"], 1e-9)
}

func TestZoneCollection_Empty(t *testing.T) {
	data, err := json.Marshal(ZoneCollection(nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"features":[]`)
}

func TestCoordinatePoint(t *testing.T) {
	p := Coordinate{Latitude: 44.8, Longitude: 20.46}.Point()
	assert.Equal(t, SRID, p.SRID())
	assert.InDelta(t, 20.46, p.X(), 1e-12)
	assert.InDelta(t, 44.8, p.Y(), 1e-12)
}
