package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/storage"
	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTripsCSV(t *testing.T) {
	vancouver, err := time.LoadLocation("America/Vancouver")
	require.NoError(t, err)

	records := []fleetdata.TripRecord{
		{Datetime: time.Date(2024, 5, 14, 15, 0, 0, 0, time.UTC), StationID: util.StringPointer("A"), Trips: 3, Returns: 2},
		{Datetime: time.Date(2024, 5, 14, 16, 0, 0, 0, time.UTC), VehicleTypeID: util.StringPointer("ebike"), Trips: 1},
	}

	var buffer bytes.Buffer
	require.NoError(t, WriteTripsCSV(&buffer, records, vancouver))

	assert.Equal(t,
		"datetime,station_id,vehicle_type_id,trips,returns\n"+
			"2024-05-14T08:00:00-07:00,A,,3,2\n"+
			"2024-05-14T09:00:00-07:00,,ebike,1,0\n",
		buffer.String())
}

func TestOpenFleetStoreReadsTimezone(t *testing.T) {
	root := t.TempDir()

	store := &storage.FleetStore{Path: root + "/mobi", Logger: zerolog.Nop()}
	require.NoError(t, store.WriteSystem(fleetdata.SystemRecord{Name: "mobi", Timezone: "America/Vancouver"}))

	opened := OpenFleetStore(root, "mobi")
	assert.Equal(t, "America/Vancouver", opened.Location.String())

	missing := OpenFleetStore(root, "bixi")
	assert.Equal(t, time.UTC, missing.Location)
}

func TestLimitRows(t *testing.T) {
	rows := []interface{}{1, 2, 3}

	assert.Len(t, limitRows(rows, 2), 2)
	assert.Len(t, limitRows(rows, 0), 3)
	assert.Len(t, limitRows(rows, 10), 3)
}
