package trips

import (
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/util"
)

// Merge concatenates record sets and re-aggregates them so every
// (datetime, station, vehicle type) key appears once with summed counts
func Merge(sets ...[]fleetdata.TripRecord) []fleetdata.TripRecord {
	records := map[recordKey]*fleetdata.TripRecord{}

	for _, set := range sets {
		for _, record := range set {
			merged := recordFor(records, record.Datetime.UTC(), record.StationID, record.VehicleTypeID)
			merged.Trips += record.Trips
			merged.Returns += record.Returns
		}
	}

	return sortedRecords(records)
}

// DailyRollup regroups hourly records by fleet local calendar day
func DailyRollup(hourly []fleetdata.TripRecord, loc *time.Location) []fleetdata.TripRecord {
	if loc == nil {
		loc = time.UTC
	}

	records := map[recordKey]*fleetdata.TripRecord{}
	for _, record := range hourly {
		day := util.TruncateToDay(record.Datetime, loc).UTC()

		daily := recordFor(records, day, record.StationID, record.VehicleTypeID)
		daily.Trips += record.Trips
		daily.Returns += record.Returns
	}

	return sortedRecords(records)
}

// SplitByYear partitions records on their fleet local year
func SplitByYear(records []fleetdata.TripRecord, loc *time.Location) map[int][]fleetdata.TripRecord {
	if loc == nil {
		loc = time.UTC
	}

	years := map[int][]fleetdata.TripRecord{}
	for _, record := range records {
		year := record.Datetime.In(loc).Year()
		years[year] = append(years[year], record)
	}

	return years
}
