package trips

import (
	"math/rand"
	"testing"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stationObservation(t time.Time, station string, vehicleType *string, count int64) fleetdata.RawObservation {
	return fleetdata.RawObservation{
		Datetime:          t,
		StationID:         util.StringPointer(station),
		VehicleTypeID:     vehicleType,
		NumBikesAvailable: count,
		IsRenting:         true,
	}
}

func at(hour int, minute int) time.Time {
	return time.Date(2024, 5, 14, hour, minute, 0, 0, time.UTC)
}

func TestInferHourlyScenario(t *testing.T) {
	observations := []fleetdata.RawObservation{
		stationObservation(at(9, 10), "A", nil, 9),
		stationObservation(at(8, 0), "A", nil, 10),
		stationObservation(at(8, 45), "A", nil, 9),
		stationObservation(at(8, 15), "A", nil, 7),
	}

	records := Infer(observations, fleetdata.FeedTypeStation, time.UTC, time.Time{})
	require.Len(t, records, 2)

	assert.Equal(t, at(8, 0), records[0].Datetime)
	assert.Equal(t, "A", *records[0].StationID)
	assert.Nil(t, records[0].VehicleTypeID)
	assert.Equal(t, int64(3), records[0].Trips)
	assert.Equal(t, int64(2), records[0].Returns)

	assert.Equal(t, at(9, 0), records[1].Datetime)
	assert.Equal(t, int64(0), records[1].Trips)
	assert.Equal(t, int64(0), records[1].Returns)
}

func TestInferSingleObservation(t *testing.T) {
	records := Infer([]fleetdata.RawObservation{stationObservation(at(8, 0), "A", nil, 10)}, fleetdata.FeedTypeStation, time.UTC, time.Time{})

	require.Len(t, records, 1)
	assert.Equal(t, int64(0), records[0].Trips)
	assert.Equal(t, int64(0), records[0].Returns)
}

func TestInferEmpty(t *testing.T) {
	assert.Empty(t, Infer(nil, fleetdata.FeedTypeStation, time.UTC, time.Time{}))
}

func TestInferPairwiseDeltas(t *testing.T) {
	random := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		var observations []fleetdata.RawObservation
		var counts []int64

		// one observation per hour so every pair lands in its own bucket
		for i := 0; i < 2+random.Intn(20); i++ {
			count := int64(random.Intn(15))
			counts = append(counts, count)
			observations = append(observations, stationObservation(at(0, 0).Add(time.Duration(i)*time.Hour), "S", nil, count))
		}

		records := Infer(observations, fleetdata.FeedTypeStation, time.UTC, time.Time{})
		require.Len(t, records, len(counts))

		for i, record := range records {
			var expectedTrips, expectedReturns int64
			if i+1 < len(counts) {
				expectedTrips = max(0, counts[i]-counts[i+1])
				expectedReturns = max(0, counts[i+1]-counts[i])
			}

			assert.Equal(t, expectedTrips, record.Trips)
			assert.Equal(t, expectedReturns, record.Returns)
			assert.False(t, record.Trips > 0 && record.Returns > 0)
		}

		trips, returns := fleetdata.SumTrips(records)
		assert.Equal(t, counts[0]-counts[len(counts)-1], trips-returns)
	}
}

func TestInferGroupsByVehicleType(t *testing.T) {
	ebike := util.StringPointer("ebike")
	classic := util.StringPointer("classic")

	observations := []fleetdata.RawObservation{
		stationObservation(at(8, 0), "A", ebike, 4),
		stationObservation(at(8, 0), "A", classic, 6),
		stationObservation(at(8, 20), "A", ebike, 2),
		stationObservation(at(8, 20), "A", classic, 8),
	}

	records := Infer(observations, fleetdata.FeedTypeStation, time.UTC, time.Time{})
	require.Len(t, records, 2)

	assert.Equal(t, "classic", *records[0].VehicleTypeID)
	assert.Equal(t, int64(2), records[0].Returns)
	assert.Equal(t, "ebike", *records[1].VehicleTypeID)
	assert.Equal(t, int64(2), records[1].Trips)
}

func TestInferDropsDuplicates(t *testing.T) {
	observations := []fleetdata.RawObservation{
		stationObservation(at(8, 0), "A", nil, 10),
		stationObservation(at(8, 0), "A", nil, 10),
		stationObservation(at(8, 15), "A", nil, 7),
	}

	records := Infer(observations, fleetdata.FeedTypeStation, time.UTC, time.Time{})
	require.Len(t, records, 1)
	assert.Equal(t, int64(3), records[0].Trips)
}

func TestInferStationKeepsOneReadingPerInstant(t *testing.T) {
	observations := []fleetdata.RawObservation{
		stationObservation(at(8, 0), "A", nil, 5),
		stationObservation(at(8, 0), "A", nil, 3),
		stationObservation(at(8, 30), "A", nil, 4),
	}

	records := Infer(observations, fleetdata.FeedTypeStation, time.UTC, time.Time{})
	require.Len(t, records, 1)
	assert.Equal(t, at(8, 0), records[0].Datetime)
	assert.Equal(t, int64(0), records[0].Trips)
	assert.Equal(t, int64(1), records[0].Returns)
}

func TestInferNullStation(t *testing.T) {
	observations := []fleetdata.RawObservation{
		{Datetime: at(8, 0), NumBikesAvailable: 5},
		{Datetime: at(8, 30), NumBikesAvailable: 1},
	}

	records := Infer(observations, fleetdata.FeedTypeStation, time.UTC, time.Time{})
	require.Len(t, records, 1)
	assert.Nil(t, records[0].StationID)
	assert.Equal(t, int64(4), records[0].Trips)
}

func TestInferFleetLocalBuckets(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 08:10 UTC is 13:40 in Kolkata, that local hour starts at 07:30 UTC
	observations := []fleetdata.RawObservation{
		stationObservation(at(8, 10), "A", nil, 3),
		stationObservation(at(8, 20), "A", nil, 1),
	}

	records := Infer(observations, fleetdata.FeedTypeStation, kolkata, time.Time{})
	require.Len(t, records, 1)
	assert.Equal(t, at(7, 30), records[0].Datetime)
	assert.Equal(t, time.UTC, records[0].Datetime.Location())
}

func TestInferWatermark(t *testing.T) {
	observations := []fleetdata.RawObservation{
		stationObservation(at(8, 0), "A", nil, 10),
		stationObservation(at(8, 15), "A", nil, 7),
		stationObservation(at(8, 45), "A", nil, 9),
	}

	first := Infer(observations[:2], fleetdata.FeedTypeStation, time.UTC, time.Time{})
	second := Infer(observations, fleetdata.FeedTypeStation, time.UTC, at(8, 15))

	merged := Merge(first, second)
	require.Len(t, merged, 1)
	assert.Equal(t, int64(3), merged[0].Trips)
	assert.Equal(t, int64(2), merged[0].Returns)

	assert.Empty(t, Infer(observations, fleetdata.FeedTypeStation, time.UTC, at(8, 45)))
}

func TestChooseLocationKind(t *testing.T) {
	lat, lon := 49.0, -123.0
	otherLat := 49.5

	positional := []fleetdata.RawObservation{
		{Datetime: at(8, 0), Lat: &lat, Lon: &lon, NumBikesAvailable: 1},
		{Datetime: at(8, 0), Lat: &otherLat, Lon: &lon, NumBikesAvailable: 1},
	}
	assert.Equal(t, LocationPosition, ChooseLocationKind(positional))

	docked := []fleetdata.RawObservation{
		{Datetime: at(8, 0), StationID: util.StringPointer("a"), NumBikesAvailable: 1},
		{Datetime: at(8, 0), StationID: util.StringPointer("b"), NumBikesAvailable: 1},
	}
	assert.Equal(t, LocationStation, ChooseLocationKind(docked))
}

func TestInferFreeBikePositionsAreUnattributed(t *testing.T) {
	lat, lon := 49.0, -123.0
	otherLat := 49.5

	observations := []fleetdata.RawObservation{
		{Datetime: at(8, 0), Lat: &lat, Lon: &lon, NumBikesAvailable: 2, IsRenting: true},
		{Datetime: at(8, 0), Lat: &otherLat, Lon: &lon, NumBikesAvailable: 1, IsRenting: true},
		{Datetime: at(8, 20), Lat: &lat, Lon: &lon, NumBikesAvailable: 1, IsRenting: true},
	}

	records := Infer(observations, fleetdata.FeedTypeFreeBike, time.UTC, time.Time{})
	require.Len(t, records, 1)
	assert.Nil(t, records[0].StationID)
	assert.Equal(t, int64(1), records[0].Trips)
}

func TestInferFreeBikeSumsPositionsAtStation(t *testing.T) {
	lat, lon := 49.0, -123.0
	otherLat := 49.5
	station := util.StringPointer("dock")
	otherStation := util.StringPointer("dock-2")
	thirdStation := util.StringPointer("dock-3")

	observations := []fleetdata.RawObservation{
		{Datetime: at(8, 0), StationID: station, Lat: &lat, Lon: &lon, NumBikesAvailable: 2},
		{Datetime: at(8, 0), StationID: station, Lat: &otherLat, Lon: &lon, NumBikesAvailable: 3},
		{Datetime: at(8, 0), StationID: otherStation, Lat: &lat, Lon: &lon, NumBikesAvailable: 1},
		{Datetime: at(8, 0), StationID: thirdStation, Lat: &lat, Lon: &lon, NumBikesAvailable: 1},
		{Datetime: at(8, 30), StationID: station, Lat: &lat, Lon: &lon, NumBikesAvailable: 1},
	}

	records := Infer(observations, fleetdata.FeedTypeFreeBike, time.UTC, time.Time{})

	var dock fleetdata.TripRecord
	for _, record := range records {
		if util.StringValue(record.StationID) == "dock" {
			dock = record
		}
	}
	assert.Equal(t, int64(4), dock.Trips)
}
