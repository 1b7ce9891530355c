package geo

import (
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ZoneFeature renders a zone as a GeoJSON point feature.
func ZoneFeature(z Zone) *geojson.Feature {
	return &geojson.Feature{
		ID:       "zone:" + z.Name,
		Geometry: z.Center.Point(),
		Properties: map[string]any{
			"name":             z.Name,
			"kind":             z.Kind.String(),
			"threshold_meters": z.ThresholdMeters,
		},
	}
}

// ZoneCollection renders zones as a GeoJSON FeatureCollection.
func ZoneCollection(zones []Zone) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(zones))}
	for _, z := range zones {
		fc.Features = append(fc.Features, ZoneFeature(z))
	}
	return fc
}
