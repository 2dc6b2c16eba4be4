package fleetdata

import "time"

// TripRecord holds the inferred departures (Trips) and arrivals (Returns) for one time bucket.
// Datetime is the bucket start as a UTC instant. Nil StationID means system wide / unattributed
// and nil VehicleTypeID means all vehicle types combined.
type TripRecord struct {
	Datetime      time.Time `parquet:"datetime,timestamp(millisecond)" json:"datetime"`
	StationID     *string   `parquet:"station_id" json:"station_id"`
	VehicleTypeID *string   `parquet:"vehicle_type_id" json:"vehicle_type_id"`
	Trips         int64     `parquet:"trips" json:"trips"`
	Returns       int64     `parquet:"returns" json:"returns"`
}

// Watermark records the newest raw observation time already turned into trips
type Watermark struct {
	FeedType             string    `parquet:"feed_type"`
	ConsolidatedThrough  time.Time `parquet:"consolidated_through,timestamp(millisecond)"`
	ModificationDateTime time.Time `parquet:"modification_datetime,timestamp(millisecond)"`
}

func SumTrips(records []TripRecord) (trips int64, returns int64) {
	for _, record := range records {
		trips += record.Trips
		returns += record.Returns
	}

	return trips, returns
}
