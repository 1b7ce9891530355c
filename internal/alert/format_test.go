package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/sells-group/parent-watch/internal/geo"
)

func TestFormatter_Message(t *testing.T) {
	a := Alert{Subject: "Son", Zone: "Internet Klub 2", DistanceMeters: 41.6, ExpectedZone: "School"}

	en := NewFormatter("en")
	assert.Equal(t, "Warning: Son is near Internet Klub 2 (42 m) instead of School!", en.Message(a))

	sr := NewFormatter("sr")
	assert.Equal(t, "Upozorenje: Son je blizu Internet Klub 2 (42 m) umesto School!", sr.Message(a))
}

func TestFormatter_NoDigitGrouping(t *testing.T) {
	a := Alert{Subject: "Son", Zone: "Klub", DistanceMeters: 1234.4, ExpectedZone: "School"}
	far := school
	prox := geo.Proximity{Zone: &far, DistanceMeters: 12345.6}

	en := NewFormatter("en")
	assert.Equal(t, "Warning: Son is near Klub (1234 m) instead of School!", en.Message(a))
	assert.Equal(t, "Near School (12346 m)", en.Status(prox))

	sr := NewFormatter("sr")
	assert.Equal(t, "Upozorenje: Son je blizu Klub (1234 m) umesto School!", sr.Message(a))
	assert.Equal(t, "Blizu School (12346 m)", sr.Status(prox))
}

func TestFormatter_Status(t *testing.T) {
	z := school
	prox := geo.Proximity{Zone: &z, DistanceMeters: 97.4}

	en := NewFormatter("en-US")
	assert.Equal(t, "Near School (97 m)", en.Status(prox))
	assert.Equal(t, "In transit...", en.Status(geo.Proximity{}))
	assert.Equal(t, "Position stale", en.Stale())

	sr := NewFormatter("sr-RS")
	assert.Equal(t, "Blizu School (97 m)", sr.Status(prox))
	assert.Equal(t, "Kretanje...", sr.Status(geo.Proximity{}))
	assert.Equal(t, "Lokacija zastarela", sr.Stale())
}

func TestNewFormatter_Fallback(t *testing.T) {
	assert.Equal(t, language.English, NewFormatter("").Language())
	assert.Equal(t, language.English, NewFormatter("not a tag!").Language())
	assert.Equal(t, language.Serbian, NewFormatter("sr").Language())
}

func TestRoundMeters(t *testing.T) {
	assert.Equal(t, 0, RoundMeters(0.49))
	assert.Equal(t, 1, RoundMeters(0.5))
	assert.Equal(t, 150, RoundMeters(149.5))
}
