package fleetdata

import "time"

// RawObservation is a single availability reading for one location and vehicle type.
//
// Location is either StationID or the Lat/Lon pair. Free floating feeds may populate both, the
// inference engine decides which one is used as the grouping key. A nil VehicleTypeID means the
// count covers all vehicle types.
type RawObservation struct {
	Datetime          time.Time `parquet:"datetime,timestamp(millisecond)"`
	StationID         *string   `parquet:"station_id"`
	Lat               *float64  `parquet:"lat"`
	Lon               *float64  `parquet:"lon"`
	VehicleTypeID     *string   `parquet:"vehicle_type_id"`
	NumBikesAvailable int64     `parquet:"num_bikes_available"`
	IsRenting         bool      `parquet:"is_renting"`
}

// LatestObservationTime returns the most recent Datetime in observations
func LatestObservationTime(observations []RawObservation) (time.Time, bool) {
	var latest time.Time
	found := false

	for _, observation := range observations {
		if !found || observation.Datetime.After(latest) {
			latest = observation.Datetime
			found = true
		}
	}

	return latest, found
}
