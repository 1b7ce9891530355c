package alert

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parent-watch/internal/geo"
)

var (
	school = geo.Zone{Name: "School", Center: geo.Coordinate{Latitude: 44.7966, Longitude: 20.4589}, Kind: geo.Safe, ThresholdMeters: 150}
	club2  = geo.Zone{Name: "Internet Klub 2", Center: geo.Coordinate{Latitude: 44.77, Longitude: 20.435}, Kind: geo.Restricted, ThresholdMeters: 150}
	club   = geo.Zone{Name: "Internet Klub", Center: geo.Coordinate{Latitude: 44.7766, Longitude: 20.4389}, Kind: geo.Restricted, ThresholdMeters: 150}
)

func newTestPolicy() *Policy {
	n := 0
	fixed := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	return NewPolicy(
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("alert-%d", n)
		}),
	)
}

func near(z geo.Zone, d float64) geo.Proximity {
	return geo.Proximity{Zone: &z, DistanceMeters: d}
}

func TestEvaluate_RaisesForCloserRestrictedZone(t *testing.T) {
	p := newTestPolicy()

	d := p.Evaluate("Son", near(club2, 42.4), school, 3000, State{})
	assert.True(t, d.Notify)
	assert.False(t, d.Cleared)
	require.True(t, d.State.Active)
	require.NotNil(t, d.State.Alert)

	a := d.State.Alert
	assert.Equal(t, "alert-1", a.ID)
	assert.Equal(t, "Son", a.Subject)
	assert.Equal(t, "Internet Klub 2", a.Zone)
	assert.Equal(t, "School", a.ExpectedZone)
	assert.Equal(t, 42, a.RoundedDistance())
	assert.Equal(t, time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC), a.RaisedAt)
}

func TestEvaluate_Idempotent(t *testing.T) {
	p := newTestPolicy()

	first := p.Evaluate("Son", near(club2, 10), school, 3000, State{})
	require.True(t, first.Notify)

	second := p.Evaluate("Son", near(club2, 10), school, 3000, first.State)
	assert.False(t, second.Notify)
	assert.False(t, second.Cleared)
	assert.Equal(t, first.State, second.State)
}

func TestEvaluate_ZoneChangeNotifiesAgain(t *testing.T) {
	p := newTestPolicy()

	first := p.Evaluate("Son", near(club2, 10), school, 3000, State{})
	second := p.Evaluate("Son", near(club, 20), school, 3000, first.State)
	assert.True(t, second.Notify)
	assert.Equal(t, "Internet Klub", second.State.Alert.Zone)
	assert.NotEqual(t, first.State.Alert.ID, second.State.Alert.ID)
}

func TestEvaluate_ExpectedZoneCloserClears(t *testing.T) {
	p := newTestPolicy()

	active := p.Evaluate("Son", near(club2, 10), school, 3000, State{})
	d := p.Evaluate("Son", near(club2, 100), school, 80, active.State)
	assert.False(t, d.State.Active)
	assert.Nil(t, d.State.Alert)
	assert.True(t, d.Cleared)
	assert.False(t, d.Notify)
}

func TestEvaluate_EqualDistanceDoesNotRaise(t *testing.T) {
	p := newTestPolicy()
	d := p.Evaluate("Son", near(club2, 100), school, 100, State{})
	assert.False(t, d.State.Active)
	assert.False(t, d.Notify)
}

func TestEvaluate_SafeZoneOrTransitClears(t *testing.T) {
	p := newTestPolicy()
	active := p.Evaluate("Son", near(club2, 10), school, 3000, State{})

	atSchool := p.Evaluate("Son", near(school, 0), school, 0, active.State)
	assert.False(t, atSchool.State.Active)
	assert.True(t, atSchool.Cleared)

	transit := p.Evaluate("Son", geo.Proximity{}, school, 2000, active.State)
	assert.False(t, transit.State.Active)
	assert.True(t, transit.Cleared)

	again := p.Evaluate("Son", geo.Proximity{}, school, 2000, transit.State)
	assert.False(t, again.Cleared)
}

func TestEvaluate_DefaultIDsAreUnique(t *testing.T) {
	p := NewPolicy()
	a := p.Evaluate("Son", near(club2, 10), school, 3000, State{})
	b := p.Evaluate("Son", near(club2, 10), school, 3000, State{})
	require.NotNil(t, a.State.Alert)
	require.NotNil(t, b.State.Alert)
	assert.NotEqual(t, a.State.Alert.ID, b.State.Alert.ID)
	assert.Len(t, a.State.Alert.ID, 36)
}

// End-to-end over the classifier with the observed Belgrade configuration.
func TestScenarios(t *testing.T) {
	zones := []geo.Zone{school, club, club2}
	c, err := geo.NewClassifier(zones)
	require.NoError(t, err)
	p := newTestPolicy()

	eval := func(pos geo.Coordinate, prev State) (geo.Proximity, Decision) {
		prox := c.Classify(pos)
		return prox, p.Evaluate("Son", prox, school, geo.Distance(pos, school.Center), prev)
	}

	t.Run("near club 2 with default threshold is in transit", func(t *testing.T) {
		prox, d := eval(geo.Coordinate{Latitude: 44.772, Longitude: 20.436}, State{})
		assert.True(t, prox.InTransit())
		assert.False(t, d.State.Active)
	})

	t.Run("near club 2 with wider threshold raises", func(t *testing.T) {
		wide := club2
		wide.ThresholdMeters = 250
		wc, err := geo.NewClassifier([]geo.Zone{school, club, wide})
		require.NoError(t, err)
		pos := geo.Coordinate{Latitude: 44.772, Longitude: 20.436}
		prox := wc.Classify(pos)
		d := p.Evaluate("Son", prox, school, geo.Distance(pos, school.Center), State{})
		require.True(t, d.State.Active)
		assert.Equal(t, "Internet Klub 2", d.State.Alert.Zone)
		assert.Equal(t, 236, d.State.Alert.RoundedDistance())
	})

	t.Run("at school", func(t *testing.T) {
		prox, d := eval(school.Center, State{})
		require.NotNil(t, prox.Zone)
		assert.Equal(t, "School", prox.Zone.Name)
		assert.False(t, d.State.Active)
	})

	t.Run("far from everything", func(t *testing.T) {
		prox, d := eval(geo.Coordinate{Latitude: 45.2, Longitude: 19.8}, State{})
		assert.True(t, prox.InTransit())
		assert.False(t, d.State.Active)
	})

	t.Run("two ticks inside club 2 notify once", func(t *testing.T) {
		notifications := 0
		state := State{}
		for i := 0; i < 2; i++ {
			_, d := eval(club2.Center, state)
			if d.Notify {
				notifications++
			}
			state = d.State
		}
		assert.Equal(t, 1, notifications)
		assert.True(t, state.Active)
	})
}
