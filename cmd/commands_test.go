package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/parent-watch/internal/config"
	"github.com/sells-group/parent-watch/internal/feed"
	"github.com/sells-group/parent-watch/internal/geo"
	"github.com/sells-group/parent-watch/internal/notify"
	"github.com/sells-group/parent-watch/internal/store"
)

func demoConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	c, err := config.Load()
	require.NoError(t, err)
	c.Store.DatabaseURL = filepath.Join(dir, "alerts.db")
	return c
}

func TestDistanceCommand(t *testing.T) {
	var buf bytes.Buffer
	distanceCmd.SetOut(&buf)
	t.Cleanup(func() {
		distanceCmd.SetOut(nil)
		_ = distanceCmd.Flags().Set("round", "false")
	})

	require.NoError(t, distanceCmd.RunE(distanceCmd, []string{"44.8", "20.46", "44.8009", "20.46"}))
	assert.Equal(t, "100.08 m\n", buf.String())

	buf.Reset()
	require.NoError(t, distanceCmd.Flags().Set("round", "true"))
	require.NoError(t, distanceCmd.RunE(distanceCmd, []string{"44.772", "20.436", "44.77", "20.435"}))
	assert.Equal(t, "236 m\n", buf.String())
}

func TestParseCoordinatePair_Errors(t *testing.T) {
	_, _, err := parseCoordinatePair([]string{"x", "0", "0", "0"})
	assert.Error(t, err)

	_, _, err = parseCoordinatePair([]string{"0", "0", "95", "0"})
	assert.Error(t, err)

	a, b, err := parseCoordinatePair([]string{"1", "2", "3", "4"})
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Latitude: 1, Longitude: 2}, a)
	assert.Equal(t, geo.Coordinate{Latitude: 3, Longitude: 4}, b)
}

func TestFormatZonesList(t *testing.T) {
	var buf bytes.Buffer
	formatZonesList(&buf, []geo.Zone{
		{Name: "School", Center: geo.Coordinate{Latitude: 44.7966, Longitude: 20.4589}, Kind: geo.Safe, ThresholdMeters: 150},
		{Name: "Internet Klub 2", Center: geo.Coordinate{Latitude: 44.77, Longitude: 20.435}, Kind: geo.Restricted, ThresholdMeters: 150},
	})

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "School")
	assert.Contains(t, out, "safe")
	assert.Contains(t, out, "Internet Klub 2")
	assert.Contains(t, out, "restricted")
	assert.Contains(t, out, "44.796600")
}

func TestFormatAlertsList(t *testing.T) {
	raised := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	cleared := raised.Add(time.Minute)

	var buf bytes.Buffer
	formatAlertsList(&buf, []store.AlertRecord{
		{ID: "a2", Subject: "Son", Zone: "Internet Klub 2", DistanceMeters: 89.6, ExpectedZone: "School", RaisedAt: raised},
		{ID: "a1", Subject: "Son", Zone: "Internet Klub", DistanceMeters: 120, ExpectedZone: "School", RaisedAt: raised, ClearedAt: &cleared},
	})

	out := buf.String()
	assert.Contains(t, out, "RAISED")
	assert.Contains(t, out, "2025-04-01T08:00:00Z")
	assert.Contains(t, out, "2025-04-01T08:01:00Z")
	assert.Contains(t, out, "90")
}

func TestFormatAlertsList_RoundsHalfUp(t *testing.T) {
	raised := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	formatAlertsList(&buf, []store.AlertRecord{
		{ID: "a1", Subject: "Son", Zone: "Klub", DistanceMeters: 2.5, ExpectedZone: "School", RaisedAt: raised},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	fields := strings.Fields(lines[1])
	require.Len(t, fields, 6)
	assert.Equal(t, "3", fields[3])
}

func TestWriteAlertsXLSX(t *testing.T) {
	raised := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "alerts.xlsx")

	require.NoError(t, writeAlertsXLSX(path, []store.AlertRecord{
		{ID: "a1", Subject: "Son", Zone: "Internet Klub", DistanceMeters: 120.4, ExpectedZone: "School", Message: "Warning", RaisedAt: raised},
	}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Alerts", sheet.Name)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Subject", sheet.Rows[0].Cells[2].String())
	assert.Equal(t, "a1", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Internet Klub", sheet.Rows[1].Cells[3].String())
	assert.Equal(t, "120", sheet.Rows[1].Cells[4].String())
	assert.Equal(t, "Warning", sheet.Rows[1].Cells[7].String())
}

func TestZonesImportCommand(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "zones.shp")

	w, err := shp.Create(shpPath, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 32),
		shp.StringField("KIND", 16),
	}))
	w.Write(&shp.Point{X: 20.4589, Y: 44.7966})
	require.NoError(t, w.WriteAttribute(0, 0, "School"))
	require.NoError(t, w.WriteAttribute(0, 1, "safe"))
	w.Close()
	fixShapefileDBF(t, shpPath)

	out := filepath.Join(dir, "zones.yaml")
	require.NoError(t, zonesImportCmd.Flags().Set("out", out))
	t.Cleanup(func() { _ = zonesImportCmd.Flags().Set("out", "") })

	require.NoError(t, zonesImportCmd.RunE(zonesImportCmd, []string{shpPath}))

	specs, err := geo.LoadZonesFile(out)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "School", specs[0].Name)
	assert.Equal(t, "safe", specs[0].Kind)
	assert.InDelta(t, 44.7966, specs[0].Latitude, 1e-9)
}

// fixShapefileDBF renames the attribute table go-shp's Writer saves as
// "<base>dbf" (no dot) to the "<base>.dbf" name its Reader opens.
func fixShapefileDBF(t *testing.T, shpPath string) {
	t.Helper()
	base := strings.TrimSuffix(shpPath, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
}

func TestInitFeed(t *testing.T) {
	c := demoConfig(t)

	f, err := initFeed(c)
	require.NoError(t, err)
	_, ok := f.(*feed.ScriptedFeed)
	assert.True(t, ok)

	c.Feed.Mode = config.FeedHTTP
	c.Feed.BaseURL = "http://localhost:5000"
	f, err = initFeed(c)
	require.NoError(t, err)
	_, ok = f.(*feed.HTTPFeed)
	assert.True(t, ok)

	c.Feed.Mode = "carrier-pigeon"
	_, err = initFeed(c)
	assert.Error(t, err)
}

func TestInitSink(t *testing.T) {
	c := demoConfig(t)

	s, err := initSink(c)
	require.NoError(t, err)
	assert.Len(t, s.(notify.Multi), 1)

	c.Notify.WebhookURL = "http://localhost:5000/api/chat/warn"
	s, err = initSink(c)
	require.NoError(t, err)
	assert.Len(t, s.(notify.Multi), 2)
}

func TestInitStore_Disabled(t *testing.T) {
	c := demoConfig(t)
	c.Store.Driver = ""

	st, err := initStore(context.Background(), c)
	require.NoError(t, err)
	assert.Nil(t, st)

	c.Store.Driver = "oracle"
	_, err = initStore(context.Background(), c)
	assert.Error(t, err)
}

func TestInitTracker_ScriptedDemoRecordsAlert(t *testing.T) {
	c := demoConfig(t)
	ctx := context.Background()

	env, err := initTracker(ctx, c)
	require.NoError(t, err)
	t.Cleanup(env.Close)
	require.NotNil(t, env.Store)

	// The demo path for Son reaches Internet Klub 2 on its last waypoint.
	for range 5 {
		env.Harness.Tick(ctx)
	}

	son, ok := env.Harness.Subject("Son")
	require.True(t, ok)
	require.NotNil(t, son.Alert)
	assert.Equal(t, "Internet Klub 2", son.Alert.Zone)

	daughter, ok := env.Harness.Subject("Daughter")
	require.True(t, ok)
	assert.Nil(t, daughter.Alert)
	assert.Equal(t, "School", daughter.Zone)

	records, err := env.Store.ListAlerts(ctx, store.AlertFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Son", records[0].Subject)
	assert.Contains(t, records[0].Message, "Internet Klub 2")
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	started, stopped := false, false
	start := func(context.Context) error { started = true; return nil }
	stop := func() { stopped = true }

	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, start, stop) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.True(t, started)
	assert.True(t, stopped)
}
