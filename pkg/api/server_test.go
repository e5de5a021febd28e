package api

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/vesseltracker/pkg/ais"
)

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeTracker struct {
	locations []ais.Location
	metadata  []ais.Metadata

	lastEnvelope ais.Envelope
	lastLimit    int
	lastTerm     string
}

func (f *fakeTracker) Locations(envelope ais.Envelope, limit int) []ais.Location {
	f.lastEnvelope = envelope
	f.lastLimit = limit

	matched := []ais.Location{}
	for _, location := range f.locations {
		if envelope.Contains(location.Position) && len(matched) < limit {
			matched = append(matched, location)
		}
	}
	return matched
}

func (f *fakeTracker) Details(mmsi ais.MMSI) ais.Details {
	details := ais.Details{MMSI: mmsi}
	for i := range f.locations {
		if f.locations[i].MMSI == mmsi {
			details.Location = &f.locations[i]
		}
	}
	for i := range f.metadata {
		if f.metadata[i].MMSI == mmsi {
			details.Metadata = &f.metadata[i]
		}
	}
	return details
}

func (f *fakeTracker) Search(term string, limit int) []ais.Metadata {
	f.lastTerm = term
	f.lastLimit = limit
	return f.metadata
}

func (f *fakeTracker) Subscribe(func([]ais.Event)) func() {
	return func() {}
}

func newTracker() *fakeTracker {
	return &fakeTracker{
		locations: []ais.Location{
			{Timestamp: start, MMSI: "230123456", Position: ais.Position{Latitude: 60.1, Longitude: 24.9, Accurate: true}},
			{Timestamp: start, MMSI: "265000001", Position: ais.Position{Latitude: 57.7, Longitude: 11.9}},
		},
		metadata: []ais.Metadata{
			{Timestamp: start, MMSI: "230123456", Name: "ARUNA", CallSign: "OJAB", ShipType: 60},
		},
	}
}

func get(t *testing.T, app *fiber.App, target string) (int, []byte) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

func TestVersion(t *testing.T) {
	status, body := get(t, NewApp(newTracker()), "/version")

	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"version":"v0.1"}`, string(body))
}

func TestListLocations(t *testing.T) {
	tracker := newTracker()
	app := NewApp(tracker)

	status, body := get(t, app, "/vessels/locations")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, ais.WorldEnvelope(), tracker.lastEnvelope)
	assert.Equal(t, 1000, tracker.lastLimit)

	var locations []ais.Location
	require.NoError(t, json.Unmarshal(body, &locations))
	assert.Len(t, locations, 2)

	status, body = get(t, app, "/vessels/locations?bbox=20,59,30,61&limit=5")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, ais.Envelope{MinLatitude: 59, MinLongitude: 20, MaxLatitude: 61, MaxLongitude: 30}, tracker.lastEnvelope)
	assert.Equal(t, 5, tracker.lastLimit)

	require.NoError(t, json.Unmarshal(body, &locations))
	require.Len(t, locations, 1)
	assert.Equal(t, ais.MMSI("230123456"), locations[0].MMSI)
}

func TestListLocationsBadRequest(t *testing.T) {
	app := NewApp(newTracker())

	for _, target := range []string{
		"/vessels/locations?bbox=1,2,3",
		"/vessels/locations?bbox=a,b,c,d",
		"/vessels/locations?bbox=30,61,20,59",
		"/vessels/locations?bbox=0,0,200,10",
		"/vessels/locations?limit=0",
		"/vessels/locations?limit=-5",
	} {
		status, body := get(t, app, target)
		assert.Equal(t, fiber.StatusBadRequest, status, target)
		assert.Contains(t, string(body), "error", target)
	}
}

func TestSearchVessels(t *testing.T) {
	tracker := newTracker()
	status, body := get(t, NewApp(tracker), "/vessels/search?q=aru&limit=10")

	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "aru", tracker.lastTerm)
	assert.Equal(t, 10, tracker.lastLimit)

	var metadata []ais.Metadata
	require.NoError(t, json.Unmarshal(body, &metadata))
	require.Len(t, metadata, 1)
	assert.Equal(t, "ARUNA", metadata[0].Name)
}

func TestGetVessel(t *testing.T) {
	app := NewApp(newTracker())

	status, body := get(t, app, "/vessels/230123456")
	require.Equal(t, fiber.StatusOK, status)

	var details ais.Details
	require.NoError(t, json.Unmarshal(body, &details))
	assert.Equal(t, ais.MMSI("230123456"), details.MMSI)
	require.NotNil(t, details.Metadata)
	require.NotNil(t, details.Location)
	assert.Equal(t, "OJAB", details.Metadata.CallSign)

	status, body = get(t, app, "/vessels/265000001")
	require.Equal(t, fiber.StatusOK, status)
	details = ais.Details{}
	require.NoError(t, json.Unmarshal(body, &details))
	assert.Nil(t, details.Metadata)
	assert.NotNil(t, details.Location)

	status, _ = get(t, app, "/vessels/999999999")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = get(t, app, "/vessels/12345")
	assert.Equal(t, fiber.StatusBadRequest, status)
}
