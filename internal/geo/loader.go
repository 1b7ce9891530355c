package geo

import (
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ZoneSpec is the configuration form of a zone.
type ZoneSpec struct {
	Name            string  `yaml:"name" mapstructure:"name"`
	Latitude        float64 `yaml:"latitude" mapstructure:"latitude"`
	Longitude       float64 `yaml:"longitude" mapstructure:"longitude"`
	Kind            string  `yaml:"kind" mapstructure:"kind"`
	ThresholdMeters float64 `yaml:"threshold_meters,omitempty" mapstructure:"threshold_meters"`
}

// Zone validates the configured values and builds a Zone.
func (s ZoneSpec) Zone() (Zone, error) {
	kind, err := ParseKind(s.Kind)
	if err != nil {
		return Zone{}, eris.Wrapf(err, "geo: zone %q", s.Name)
	}
	z := Zone{
		Name:            s.Name,
		Center:          Coordinate{Latitude: s.Latitude, Longitude: s.Longitude},
		Kind:            kind,
		ThresholdMeters: s.ThresholdMeters,
	}
	return z, z.Validate()
}

// ZonesFromSpecs converts and validates a list of zone specs.
func ZonesFromSpecs(specs []ZoneSpec) ([]Zone, error) {
	zones := make([]Zone, 0, len(specs))
	for _, s := range specs {
		z, err := s.Zone()
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, nil
}

type zonesFile struct {
	Zones []ZoneSpec `yaml:"zones"`
}

// LoadZonesFile reads zone specs from a YAML file with a top-level "zones" list.
func LoadZonesFile(path string) ([]ZoneSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read zones file %s", path)
	}
	var f zonesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "geo: parse zones file %s", path)
	}
	return f.Zones, nil
}

// MarshalZonesYAML renders zone specs in the LoadZonesFile format.
func MarshalZonesYAML(specs []ZoneSpec) ([]byte, error) {
	data, err := yaml.Marshal(zonesFile{Zones: specs})
	if err != nil {
		return nil, eris.Wrap(err, "geo: marshal zones")
	}
	return data, nil
}

// ReadShapefileZones reads zone specs from a point shapefile. The DBF must
// carry NAME and KIND columns; a RADIUS column is optional. Non-point shapes
// are skipped.
func ReadShapefileZones(shpPath string) ([]ZoneSpec, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	nameIdx, ok := fieldIdx["name"]
	if !ok {
		return nil, eris.Errorf("geo: shapefile %s has no NAME column", shpPath)
	}
	kindIdx, ok := fieldIdx["kind"]
	if !ok {
		return nil, eris.Errorf("geo: shapefile %s has no KIND column", shpPath)
	}
	radiusIdx, hasRadius := fieldIdx["radius"]

	attr := func(idx int) string {
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var specs []ZoneSpec
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}
		spec := ZoneSpec{
			Name:      attr(nameIdx),
			Latitude:  pt.Y,
			Longitude: pt.X,
			Kind:      attr(kindIdx),
		}
		if hasRadius {
			if r, err := strconv.ParseFloat(attr(radiusIdx), 64); err == nil {
				spec.ThresholdMeters = r
			}
		}
		specs = append(specs, spec)
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped non-point shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return specs, nil
}
