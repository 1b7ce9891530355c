package geo

import (
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultThresholdMeters is the proximity radius used when a zone does not set one.
const DefaultThresholdMeters = 150.0

// Kind classifies a zone for alerting purposes.
type Kind int

const (
	// Safe zones are places a subject is expected to be (e.g. a school).
	Safe Kind = iota
	// Restricted zones raise an alert when a subject is closer to them than to
	// its expected zone.
	Restricted
)

func (k Kind) String() string {
	switch k {
	case Safe:
		return "safe"
	case Restricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// ParseKind parses the textual zone kind used in configuration.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return Safe, nil
	case "restricted":
		return Restricted, nil
	default:
		return Safe, eris.Errorf("geo: unknown zone kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Zone is a named point with an alert radius. Zones are configured once and
// never mutated.
type Zone struct {
	Name            string     `json:"name"`
	Center          Coordinate `json:"center"`
	Kind            Kind       `json:"kind"`
	ThresholdMeters float64    `json:"threshold_meters"`
}

// Validate checks the zone's name, center and threshold.
func (z Zone) Validate() error {
	if strings.TrimSpace(z.Name) == "" {
		return eris.New("geo: zone name is required")
	}
	if err := z.Center.Validate(); err != nil {
		return eris.Wrapf(err, "geo: zone %q", z.Name)
	}
	if z.ThresholdMeters < 0 {
		return eris.Errorf("geo: zone %q has negative threshold", z.Name)
	}
	return nil
}

// Proximity is the result of classifying a position. A nil Zone means the
// subject is in transit (not near any zone).
type Proximity struct {
	Zone           *Zone
	DistanceMeters float64
}

// InTransit reports whether no zone qualified.
func (p Proximity) InTransit() bool {
	return p.Zone == nil
}

// Classifier matches positions against an ordered, read-only zone list.
type Classifier struct {
	zones  []Zone
	byName map[string]int
}

// NewClassifier validates zones and builds a Classifier. Zone names must be
// unique. Zones with a zero threshold get DefaultThresholdMeters.
func NewClassifier(zones []Zone) (*Classifier, error) {
	c := &Classifier{
		zones:  make([]Zone, 0, len(zones)),
		byName: make(map[string]int, len(zones)),
	}
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[z.Name]; dup {
			return nil, eris.Errorf("geo: duplicate zone %q", z.Name)
		}
		if z.ThresholdMeters == 0 {
			z.ThresholdMeters = DefaultThresholdMeters
		}
		c.byName[z.Name] = len(c.zones)
		c.zones = append(c.zones, z)
	}
	return c, nil
}

// Zones returns a copy of the configured zones in configuration order.
func (c *Classifier) Zones() []Zone {
	out := make([]Zone, len(c.zones))
	copy(out, c.zones)
	return out
}

// Zone looks up a zone by name.
func (c *Classifier) Zone(name string) (Zone, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Zone{}, false
	}
	return c.zones[i], true
}

// Classify returns the zone the position is near, if any. A zone qualifies
// when the distance is strictly below its threshold. Restricted zones take
// precedence over Safe zones; within a kind the nearest zone wins and ties
// keep configuration order.
func (c *Classifier) Classify(pos Coordinate) Proximity {
	var (
		best     *Zone
		bestDist float64
	)
	for i := range c.zones {
		z := &c.zones[i]
		d := Distance(pos, z.Center)
		if d >= z.ThresholdMeters {
			continue
		}
		if best == nil || outranks(z, d, best, bestDist) {
			best, bestDist = z, d
		}
	}
	if best == nil {
		return Proximity{}
	}
	zone := *best
	return Proximity{Zone: &zone, DistanceMeters: bestDist}
}

func outranks(z *Zone, d float64, cur *Zone, curDist float64) bool {
	if z.Kind != cur.Kind {
		return z.Kind == Restricted
	}
	return d < curDist
}
