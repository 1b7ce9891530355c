// Package feed supplies subject positions to the tracker.
package feed

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parent-watch/internal/geo"
)

// ErrUnknownSubject is returned for subjects the feed has no data for.
var ErrUnknownSubject = eris.New("feed: unknown subject")

// Feed returns the current position of a subject.
type Feed interface {
	Position(ctx context.Context, subject string) (geo.Coordinate, error)
}

// Finite is implemented by feeds that run out of new positions.
type Finite interface {
	Done() bool
}

// ScriptedFeed replays a fixed path per subject. Every call advances that
// subject by one waypoint; once the path is exhausted the last waypoint is
// returned again.
type ScriptedFeed struct {
	mu    sync.Mutex
	paths map[string][]geo.Coordinate
	next  map[string]int
}

// NewScriptedFeed creates a ScriptedFeed. Empty paths are rejected.
func NewScriptedFeed(paths map[string][]geo.Coordinate) (*ScriptedFeed, error) {
	f := &ScriptedFeed{
		paths: make(map[string][]geo.Coordinate, len(paths)),
		next:  make(map[string]int, len(paths)),
	}
	for subject, path := range paths {
		if len(path) == 0 {
			return nil, eris.Errorf("feed: empty path for %q", subject)
		}
		for i, c := range path {
			if err := c.Validate(); err != nil {
				return nil, eris.Wrapf(err, "feed: %q waypoint %d", subject, i)
			}
		}
		f.paths[subject] = append([]geo.Coordinate(nil), path...)
	}
	return f, nil
}

// Position implements Feed.
func (f *ScriptedFeed) Position(_ context.Context, subject string) (geo.Coordinate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, ok := f.paths[subject]
	if !ok {
		return geo.Coordinate{}, eris.Wrapf(ErrUnknownSubject, "feed: %q", subject)
	}
	i := f.next[subject]
	if i >= len(path) {
		return path[len(path)-1], nil
	}
	f.next[subject] = i + 1
	return path[i], nil
}

// Done reports whether every path has been fully replayed.
func (f *ScriptedFeed) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for subject, path := range f.paths {
		if f.next[subject] < len(path) {
			return false
		}
	}
	return true
}
