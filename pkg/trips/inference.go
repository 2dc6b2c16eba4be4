package trips

import (
	"cmp"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"golang.org/x/exp/slices"
)

// LocationKind is the field free floating observations are grouped on
type LocationKind int

const (
	LocationStation LocationKind = iota
	LocationPosition
)

type locationKey struct {
	station    string
	hasStation bool

	lat         float64
	lon         float64
	hasPosition bool
}

type groupKey struct {
	location       locationKey
	vehicleType    string
	hasVehicleType bool
}

type recordKey struct {
	bucket         int64
	station        string
	hasStation     bool
	vehicleType    string
	hasVehicleType bool
}

type observationKey struct {
	group     groupKey
	position  locationKey
	datetime  int64
	available int64
	renting   bool
}

// ChooseLocationKind picks the location key with the higher number of distinct values. A missing
// station_id or position counts as one distinct value. Ties go to station_id.
func ChooseLocationKind(observations []fleetdata.RawObservation) LocationKind {
	stations := map[string]bool{}
	positions := map[locationKey]bool{}

	for _, observation := range observations {
		if observation.StationID == nil {
			stations["\x00"] = true
		} else {
			stations[*observation.StationID] = true
		}

		positions[positionKey(observation)] = true
	}

	if len(positions) > len(stations) {
		return LocationPosition
	}

	return LocationStation
}

func positionKey(observation fleetdata.RawObservation) locationKey {
	if observation.Lat == nil || observation.Lon == nil {
		return locationKey{}
	}

	return locationKey{lat: *observation.Lat, lon: *observation.Lon, hasPosition: true}
}

func stationKey(observation fleetdata.RawObservation) locationKey {
	if observation.StationID == nil {
		return locationKey{}
	}

	return locationKey{station: *observation.StationID, hasStation: true}
}

// Infer converts raw availability observations into hourly trip records.
//
// Observations are grouped by location and vehicle type and sorted by time. Each pair of
// consecutive observations in a group contributes count[i] - count[i+1] to the hour bucket of
// observation i, as trips when positive and as returns when negative. Every observation also
// produces a row for its bucket so observed hours are present with zero counts.
//
// Buckets are fleet local hours (loc) stored as UTC instants. Pairs whose later observation is
// not after consolidatedThrough were counted by an earlier run and are skipped.
func Infer(observations []fleetdata.RawObservation, feedType fleetdata.FeedType, loc *time.Location, consolidatedThrough time.Time) []fleetdata.TripRecord {
	if len(observations) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	kind := LocationStation
	if feedType == fleetdata.FeedTypeFreeBike {
		kind = ChooseLocationKind(observations)
	}

	series := groupObservations(observations, kind, feedType == fleetdata.FeedTypeFreeBike)
	records := map[recordKey]*fleetdata.TripRecord{}

	for key, points := range series {
		var station *string
		if kind == LocationStation && key.location.hasStation {
			station = util.StringPointer(key.location.station)
		}
		var vehicleType *string
		if key.hasVehicleType {
			vehicleType = util.StringPointer(key.vehicleType)
		}

		for i, point := range points {
			counted := point.datetime
			if i+1 < len(points) {
				counted = points[i+1].datetime
			}
			if !consolidatedThrough.IsZero() && !counted.After(consolidatedThrough) {
				continue
			}

			bucket := util.TruncateToHour(point.datetime, loc).UTC()
			record := recordFor(records, bucket, station, vehicleType)

			if i+1 == len(points) {
				continue
			}

			delta := point.available - points[i+1].available
			switch {
			case delta > 0:
				record.Trips += delta
			case delta < 0:
				record.Returns += -delta
			}
		}
	}

	return sortedRecords(records)
}

type point struct {
	datetime  time.Time
	available int64
}

// groupObservations builds one time ordered series per (location, vehicle type). Identical
// observations are dropped. Distinct observations that land on the same group and timestamp
// are summed when sumCollisions is set, as free floating vehicles at different positions
// around one station are. Otherwise the last one read is kept.
func groupObservations(observations []fleetdata.RawObservation, kind LocationKind, sumCollisions bool) map[groupKey][]point {
	seen := map[observationKey]bool{}
	totals := map[groupKey]map[int64]*point{}

	for _, observation := range observations {
		key := groupKey{}
		if kind == LocationPosition {
			key.location = positionKey(observation)
		} else {
			key.location = stationKey(observation)
		}
		if observation.VehicleTypeID != nil {
			key.vehicleType = *observation.VehicleTypeID
			key.hasVehicleType = true
		}

		identity := observationKey{
			group:     key,
			position:  positionKey(observation),
			datetime:  observation.Datetime.UnixMilli(),
			available: observation.NumBikesAvailable,
			renting:   observation.IsRenting,
		}
		if kind == LocationPosition {
			identity.position = stationKey(observation)
		}
		if seen[identity] {
			continue
		}
		seen[identity] = true

		if totals[key] == nil {
			totals[key] = map[int64]*point{}
		}
		instant := observation.Datetime.UnixMilli()
		if existing, ok := totals[key][instant]; ok && sumCollisions {
			existing.available += observation.NumBikesAvailable
		} else if ok {
			existing.available = observation.NumBikesAvailable
		} else {
			totals[key][instant] = &point{datetime: observation.Datetime, available: observation.NumBikesAvailable}
		}
	}

	series := map[groupKey][]point{}
	for key, byInstant := range totals {
		points := make([]point, 0, len(byInstant))
		for _, p := range byInstant {
			points = append(points, *p)
		}
		slices.SortFunc(points, func(a, b point) int {
			return a.datetime.Compare(b.datetime)
		})
		series[key] = points
	}

	return series
}

func keyOf(bucket time.Time, station *string, vehicleType *string) recordKey {
	key := recordKey{bucket: bucket.UnixMilli()}
	if station != nil {
		key.station, key.hasStation = *station, true
	}
	if vehicleType != nil {
		key.vehicleType, key.hasVehicleType = *vehicleType, true
	}

	return key
}

func recordFor(records map[recordKey]*fleetdata.TripRecord, bucket time.Time, station *string, vehicleType *string) *fleetdata.TripRecord {
	key := keyOf(bucket, station, vehicleType)

	record, ok := records[key]
	if !ok {
		record = &fleetdata.TripRecord{
			Datetime:      bucket,
			StationID:     station,
			VehicleTypeID: vehicleType,
		}
		records[key] = record
	}

	return record
}

func comparePointers(a *string, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return cmp.Compare(*a, *b)
	}
}

// CompareRecords orders records by bucket, then station, then vehicle type with nulls first
func CompareRecords(a fleetdata.TripRecord, b fleetdata.TripRecord) int {
	if c := a.Datetime.Compare(b.Datetime); c != 0 {
		return c
	}
	if c := comparePointers(a.StationID, b.StationID); c != 0 {
		return c
	}

	return comparePointers(a.VehicleTypeID, b.VehicleTypeID)
}

func sortedRecords(records map[recordKey]*fleetdata.TripRecord) []fleetdata.TripRecord {
	sorted := make([]fleetdata.TripRecord, 0, len(records))
	for _, record := range records {
		sorted = append(sorted, *record)
	}
	slices.SortFunc(sorted, CompareRecords)

	return sorted
}
