package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, loc *time.Location) *FleetStore {
	return &FleetStore{
		Path:     filepath.Join(t.TempDir(), "mobi"),
		Location: loc,
		Logger:   zerolog.Nop(),
	}
}

func observationAt(t time.Time, station string, count int64) fleetdata.RawObservation {
	return fleetdata.RawObservation{
		Datetime:          t,
		StationID:         util.StringPointer(station),
		NumBikesAvailable: count,
		IsRenting:         true,
	}
}

func TestRawAppendAndTrim(t *testing.T) {
	store := newTestStore(t, time.UTC)
	base := time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendRaw(fleetdata.FeedTypeStation, []fleetdata.RawObservation{
		observationAt(base, "A", 10),
		observationAt(base, "B", 3),
	}))
	require.NoError(t, store.AppendRaw(fleetdata.FeedTypeStation, []fleetdata.RawObservation{
		observationAt(base.Add(20*time.Second), "A", 9),
		observationAt(base.Add(20*time.Second), "B", 3),
	}))

	observations, err := store.LoadRaw(fleetdata.FeedTypeStation)
	require.NoError(t, err)
	assert.Len(t, observations, 4)

	require.NoError(t, store.TrimRaw(fleetdata.FeedTypeStation))

	observations, err = store.LoadRaw(fleetdata.FeedTypeStation)
	require.NoError(t, err)
	require.Len(t, observations, 2)
	for _, observation := range observations {
		assert.True(t, base.Add(20*time.Second).Equal(observation.Datetime))
	}
}

func TestRawMissingFile(t *testing.T) {
	store := newTestStore(t, time.UTC)

	observations, err := store.LoadRaw(fleetdata.FeedTypeFreeBike)
	assert.NoError(t, err)
	assert.Empty(t, observations)

	assert.NoError(t, store.TrimRaw(fleetdata.FeedTypeFreeBike))
}

func TestRawCorruptFileIsReplaced(t *testing.T) {
	store := newTestStore(t, time.UTC)
	require.NoError(t, os.MkdirAll(store.Path, 0o755))
	require.NoError(t, os.WriteFile(store.RawPath(fleetdata.FeedTypeStation), []byte("not parquet"), 0o644))

	now := time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendRaw(fleetdata.FeedTypeStation, []fleetdata.RawObservation{observationAt(now, "A", 1)}))

	observations, err := store.LoadRaw(fleetdata.FeedTypeStation)
	require.NoError(t, err)
	assert.Len(t, observations, 1)
}

func TestRawRoundTripKeepsNulls(t *testing.T) {
	store := newTestStore(t, time.UTC)
	lat, lon := 49.28, -123.12

	now := time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendRaw(fleetdata.FeedTypeFreeBike, []fleetdata.RawObservation{
		{Datetime: now, Lat: &lat, Lon: &lon, NumBikesAvailable: 2, IsRenting: true},
	}))

	observations, err := store.LoadRaw(fleetdata.FeedTypeFreeBike)
	require.NoError(t, err)
	require.Len(t, observations, 1)
	assert.Nil(t, observations[0].StationID)
	assert.Nil(t, observations[0].VehicleTypeID)
	assert.Equal(t, lat, *observations[0].Lat)
	assert.True(t, now.Equal(observations[0].Datetime))
}

func TestWriteLeavesNoTemporaryFiles(t *testing.T) {
	store := newTestStore(t, time.UTC)

	require.NoError(t, store.WriteSystem(fleetdata.SystemRecord{Name: "mobi", Timezone: "UTC", Tracking: true}))

	entries, err := os.ReadDir(store.Path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "system.parquet", entries[0].Name())

	record, err := store.ReadSystem()
	require.NoError(t, err)
	assert.Equal(t, "mobi", record.Name)
	assert.Nil(t, record.TrackingStart)
}

func TestSystemRecordTimesRoundTrip(t *testing.T) {
	store := newTestStore(t, time.UTC)

	start := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)
	vancouver, err := time.LoadLocation("America/Vancouver")
	require.NoError(t, err)
	lastPoll := time.Date(2024, 5, 14, 2, 10, 30, 0, vancouver)

	require.NoError(t, store.WriteSystem(fleetdata.SystemRecord{
		Name:          "mobi",
		Timezone:      "America/Vancouver",
		Tracking:      true,
		TrackStations: true,
		TrackingStart: &start,
		TrackingEnd:   &end,
		LastPoll:      &lastPoll,
	}))

	record, err := store.ReadSystem()
	require.NoError(t, err)

	require.NotNil(t, record.TrackingStart)
	require.NotNil(t, record.TrackingEnd)
	require.NotNil(t, record.LastPoll)
	assert.True(t, start.Equal(*record.TrackingStart))
	assert.True(t, end.Equal(*record.TrackingEnd))
	assert.True(t, lastPoll.Equal(*record.LastPoll))
	assert.True(t, record.TrackStations)
	assert.False(t, record.TrackFreeBikes)
}
