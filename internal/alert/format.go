package alert

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/sells-group/parent-watch/internal/geo"
)

const (
	msgWarning   = "Warning: %s is near %s (%s m) instead of %s!"
	msgNear      = "Near %s (%s m)"
	msgInTransit = "In transit..."
	msgStale     = "Position stale"
)

var supported = []language.Tag{language.English, language.Serbian}

var matcher = language.NewMatcher(supported)

var messages = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, key, msg string) {
		if err := b.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}
	set(language.English, msgWarning, msgWarning)
	set(language.English, msgNear, msgNear)
	set(language.English, msgInTransit, msgInTransit)
	set(language.English, msgStale, msgStale)

	set(language.Serbian, msgWarning, "Upozorenje: %s je blizu %s (%s m) umesto %s!")
	set(language.Serbian, msgNear, "Blizu %s (%s m)")
	set(language.Serbian, msgInTransit, "Kretanje...")
	set(language.Serbian, msgStale, "Lokacija zastarela")
	return b
}()

// RoundMeters rounds a distance to the nearest whole meter.
func RoundMeters(d float64) int {
	return int(math.Round(d))
}

// meters renders a rounded distance without locale digit grouping.
func meters(d float64) string {
	return strconv.Itoa(RoundMeters(d))
}

// Formatter renders alerts and subject statuses in one language.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
}

// NewFormatter returns a Formatter for the closest supported language to
// lang (English or Serbian). Unknown languages fall back to English.
func NewFormatter(lang string) *Formatter {
	tag := language.English
	if parsed, err := language.Parse(lang); err == nil {
		if _, idx, conf := matcher.Match(parsed); conf != language.No {
			tag = supported[idx]
		}
	}
	return &Formatter{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(messages)),
	}
}

// Language returns the formatter's resolved language tag.
func (f *Formatter) Language() language.Tag {
	return f.tag
}

// Message renders the human-readable warning for an alert.
func (f *Formatter) Message(a Alert) string {
	return f.printer.Sprintf(msgWarning, a.Subject, a.Zone, meters(a.DistanceMeters), a.ExpectedZone)
}

// Status renders the dashboard status line for a classified position.
func (f *Formatter) Status(prox geo.Proximity) string {
	if prox.InTransit() {
		return f.printer.Sprintf(msgInTransit)
	}
	return f.printer.Sprintf(msgNear, prox.Zone.Name, meters(prox.DistanceMeters))
}

// Stale renders the status for a subject whose position could not be refreshed.
func (f *Formatter) Stale() string {
	return f.printer.Sprintf(msgStale)
}
