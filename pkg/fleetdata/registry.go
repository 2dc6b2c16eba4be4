package fleetdata

type Station struct {
	StationID string  `parquet:"station_id" json:"station_id"`
	Name      string  `parquet:"name" json:"name"`
	Lat       float64 `parquet:"lat" json:"lat"`
	Lon       float64 `parquet:"lon" json:"lon"`
	Active    bool    `parquet:"active" json:"active"`
}

type VehicleType struct {
	VehicleTypeID  string `parquet:"vehicle_type_id" json:"vehicle_type_id"`
	FormFactor     string `parquet:"form_factor" json:"form_factor"`
	PropulsionType string `parquet:"propulsion_type" json:"propulsion_type"`
}
