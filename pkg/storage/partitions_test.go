package storage

import (
	"testing"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripAt(t time.Time, station string, trips int64, returns int64) fleetdata.TripRecord {
	return fleetdata.TripRecord{Datetime: t, StationID: util.StringPointer(station), Trips: trips, Returns: returns}
}

func TestMergeTripsRoundTrip(t *testing.T) {
	store := newTestStore(t, time.UTC)
	hour := time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC)

	written := []fleetdata.TripRecord{
		tripAt(hour, "A", 3, 2),
		tripAt(hour.Add(time.Hour), "A", 0, 0),
		{Datetime: hour, VehicleTypeID: util.StringPointer("ebike"), Trips: 1},
	}
	require.NoError(t, store.MergeTrips(fleetdata.FeedTypeStation, written))

	hourly, err := store.ReadTrips(fleetdata.FeedTypeStation, fleetdata.GranularityHourly, 2024)
	require.NoError(t, err)
	require.Len(t, hourly, 3)

	assert.Nil(t, hourly[0].StationID)
	assert.Equal(t, "ebike", *hourly[0].VehicleTypeID)
	assert.Equal(t, int64(3), hourly[1].Trips)
	assert.Equal(t, int64(2), hourly[1].Returns)

	daily, err := store.ReadTrips(fleetdata.FeedTypeStation, fleetdata.GranularityDaily, 2024)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, int64(3), daily[1].Trips)
}

func TestMergeTripsAccumulates(t *testing.T) {
	store := newTestStore(t, time.UTC)
	hour := time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.MergeTrips(fleetdata.FeedTypeStation, []fleetdata.TripRecord{tripAt(hour, "A", 3, 2)}))
	require.NoError(t, store.MergeTrips(fleetdata.FeedTypeStation, []fleetdata.TripRecord{tripAt(hour, "A", 1, 1)}))

	hourly, err := store.ReadTrips(fleetdata.FeedTypeStation, fleetdata.GranularityHourly, 2024)
	require.NoError(t, err)
	require.Len(t, hourly, 1)
	assert.Equal(t, int64(4), hourly[0].Trips)
	assert.Equal(t, int64(3), hourly[0].Returns)
}

func TestMergeTripsSplitsLocalYears(t *testing.T) {
	vancouver, err := time.LoadLocation("America/Vancouver")
	require.NoError(t, err)
	store := newTestStore(t, vancouver)

	// 2025-01-01 05:00 UTC is still New Year's Eve in Vancouver
	require.NoError(t, store.MergeTrips(fleetdata.FeedTypeFreeBike, []fleetdata.TripRecord{
		tripAt(time.Date(2025, 1, 1, 5, 0, 0, 0, time.UTC), "A", 1, 0),
		tripAt(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), "A", 2, 0),
	}))

	partitions, err := store.Partitions()
	require.NoError(t, err)
	require.Len(t, partitions, 4)

	old, err := store.ReadTrips(fleetdata.FeedTypeFreeBike, fleetdata.GranularityHourly, 2024)
	require.NoError(t, err)
	assert.Len(t, old, 1)

	daily, err := store.ReadTrips(fleetdata.FeedTypeFreeBike, fleetdata.GranularityDaily, 2025)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC), daily[0].Datetime.UTC())
}

func TestTrackingRange(t *testing.T) {
	store := newTestStore(t, time.UTC)

	start, end, err := store.TrackingRange()
	require.NoError(t, err)
	assert.Nil(t, start)
	assert.Nil(t, end)

	first := time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)
	last := time.Date(2024, 2, 1, 4, 0, 0, 0, time.UTC)
	require.NoError(t, store.MergeTrips(fleetdata.FeedTypeStation, []fleetdata.TripRecord{tripAt(first, "A", 1, 0)}))
	require.NoError(t, store.MergeTrips(fleetdata.FeedTypeFreeBike, []fleetdata.TripRecord{tripAt(last, "A", 1, 0)}))

	start, end, err = store.TrackingRange()
	require.NoError(t, err)
	require.NotNil(t, start)
	require.NotNil(t, end)
	assert.True(t, first.Equal(*start))
	assert.True(t, last.Equal(*end))
}

func TestWatermark(t *testing.T) {
	store := newTestStore(t, time.UTC)

	assert.True(t, store.ReadWatermark(fleetdata.FeedTypeStation).IsZero())

	through := time.Date(2024, 5, 14, 8, 45, 0, 0, time.UTC)
	require.NoError(t, store.WriteWatermark(fleetdata.FeedTypeStation, through))

	assert.True(t, through.Equal(store.ReadWatermark(fleetdata.FeedTypeStation)))
	assert.True(t, store.ReadWatermark(fleetdata.FeedTypeFreeBike).IsZero())
}

func TestParsePartitionName(t *testing.T) {
	partition, err := parsePartitionName("/data/mobi/trips.free_bike.daily.2024.parquet")
	require.NoError(t, err)
	assert.Equal(t, fleetdata.FeedTypeFreeBike, partition.FeedType)
	assert.Equal(t, fleetdata.GranularityDaily, partition.Granularity)
	assert.Equal(t, 2024, partition.Year)

	_, err = parsePartitionName("/data/mobi/trips.bus.daily.2024.parquet")
	assert.Error(t, err)
}
