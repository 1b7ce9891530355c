package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parent-watch/internal/geo"
)

func TestScriptedFeed_AdvancesAndHolds(t *testing.T) {
	path := []geo.Coordinate{
		{Latitude: 44.784, Longitude: 20.446},
		{Latitude: 44.778, Longitude: 20.44},
	}
	f, err := NewScriptedFeed(map[string][]geo.Coordinate{"Son": path})
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, f.Done())
	c, err := f.Position(ctx, "Son")
	require.NoError(t, err)
	assert.Equal(t, path[0], c)

	c, err = f.Position(ctx, "Son")
	require.NoError(t, err)
	assert.Equal(t, path[1], c)
	assert.True(t, f.Done())

	c, err = f.Position(ctx, "Son")
	require.NoError(t, err)
	assert.Equal(t, path[1], c)
}

func TestScriptedFeed_DoneWaitsForAllSubjects(t *testing.T) {
	f, err := NewScriptedFeed(map[string][]geo.Coordinate{
		"Son":      {{Latitude: 1, Longitude: 1}},
		"Daughter": {{Latitude: 2, Longitude: 2}, {Latitude: 3, Longitude: 3}},
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = f.Position(ctx, "Son")
	_, _ = f.Position(ctx, "Daughter")
	assert.False(t, f.Done())
	_, _ = f.Position(ctx, "Daughter")
	assert.True(t, f.Done())
}

func TestScriptedFeed_UnknownSubject(t *testing.T) {
	f, err := NewScriptedFeed(map[string][]geo.Coordinate{"Son": {{Latitude: 1, Longitude: 1}}})
	require.NoError(t, err)

	_, err = f.Position(context.Background(), "Cousin")
	assert.ErrorIs(t, err, ErrUnknownSubject)
}

func TestNewScriptedFeed_Rejects(t *testing.T) {
	_, err := NewScriptedFeed(map[string][]geo.Coordinate{"Son": nil})
	assert.Error(t, err)

	_, err = NewScriptedFeed(map[string][]geo.Coordinate{"Son": {{Latitude: 100}}})
	assert.Error(t, err)
}

func TestScriptedFeed_CopiesPath(t *testing.T) {
	path := []geo.Coordinate{{Latitude: 1, Longitude: 1}}
	f, err := NewScriptedFeed(map[string][]geo.Coordinate{"Son": path})
	require.NoError(t, err)
	path[0].Latitude = 50

	c, err := f.Position(context.Background(), "Son")
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Latitude)
}
