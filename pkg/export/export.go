package export

import (
	"io"
	"path/filepath"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/storage"
	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

// TripRow is the CSV shape of a trip record, with the bucket rendered in the fleet's time zone
type TripRow struct {
	Datetime      string `csv:"datetime"`
	StationID     string `csv:"station_id"`
	VehicleTypeID string `csv:"vehicle_type_id"`
	Trips         int64  `csv:"trips"`
	Returns       int64  `csv:"returns"`
}

// OpenFleetStore opens the stored files of fleetName under dataRoot, taking the time zone from
// the fleet's system table when present
func OpenFleetStore(dataRoot string, fleetName string) *storage.FleetStore {
	store := &storage.FleetStore{
		Path:     filepath.Join(dataRoot, fleetName),
		Location: time.UTC,
		Logger:   log.With().Str("fleet", fleetName).Logger(),
	}

	system, err := store.ReadSystem()
	if err != nil {
		store.Logger.Debug().Err(err).Msg("No system table, using UTC")
		return store
	}

	if loc, err := time.LoadLocation(system.Timezone); err == nil {
		store.Location = loc
	}

	return store
}

func TripRows(records []fleetdata.TripRecord, loc *time.Location) []*TripRow {
	rows := make([]*TripRow, 0, len(records))

	for _, record := range records {
		rows = append(rows, &TripRow{
			Datetime:      record.Datetime.In(loc).Format(time.RFC3339),
			StationID:     util.StringValue(record.StationID),
			VehicleTypeID: util.StringValue(record.VehicleTypeID),
			Trips:         record.Trips,
			Returns:       record.Returns,
		})
	}

	return rows
}

func WriteTripsCSV(w io.Writer, records []fleetdata.TripRecord, loc *time.Location) error {
	return gocsv.Marshal(TripRows(records, loc), w)
}
