package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeStations(t *testing.T) {
	previous := []fleetdata.Station{
		{StationID: "a", Name: "Old A", Active: true},
		{StationID: "gone", Name: "Removed", Lat: 1, Lon: 2, Active: true},
	}
	fetched := []fleetdata.Station{
		{StationID: "a", Name: "New A", Active: true},
		{StationID: "c", Name: "C", Active: true},
	}

	merged := MergeStations(previous, fetched, map[string]bool{"c": true})
	assert.Equal(t, []fleetdata.Station{
		{StationID: "a", Name: "New A", Active: true},
		{StationID: "c", Name: "C", Active: false},
		{StationID: "gone", Name: "Removed", Lat: 1, Lon: 2, Active: false},
	}, merged)
}

func TestRefreshStationsKeepsBackup(t *testing.T) {
	store := newTestStore(t, nil)

	_, err := store.RefreshStations([]fleetdata.Station{{StationID: "a", Name: "A"}}, nil)
	require.NoError(t, err)
	_, err = os.Stat(store.StationsBackupPath())
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = store.RefreshStations([]fleetdata.Station{{StationID: "b", Name: "B"}}, nil)
	require.NoError(t, err)

	current, err := store.ReadStations()
	require.NoError(t, err)
	assert.Equal(t, []fleetdata.Station{
		{StationID: "a", Name: "A", Active: false},
		{StationID: "b", Name: "B", Active: true},
	}, current)

	backup, err := readParquet[fleetdata.Station](store.StationsBackupPath())
	require.NoError(t, err)
	assert.Equal(t, []fleetdata.Station{{StationID: "a", Name: "A", Active: true}}, backup)
}

type unencodableRow struct {
	Updates chan int
}

func TestFailedRefreshKeepsLiveTable(t *testing.T) {
	store := newTestStore(t, nil)

	_, err := store.RefreshStations([]fleetdata.Station{{StationID: "legacy", Name: "Legacy"}}, nil)
	require.NoError(t, err)

	err = backupAndWrite(store.StationsPath(), store.StationsBackupPath(), []unencodableRow{{}})
	require.Error(t, err)

	current, err := store.ReadStations()
	require.NoError(t, err)
	assert.Equal(t, []fleetdata.Station{{StationID: "legacy", Name: "Legacy", Active: true}}, current)

	backup, err := readParquet[fleetdata.Station](store.StationsBackupPath())
	require.NoError(t, err)
	assert.Equal(t, current, backup)

	entries, err := os.ReadDir(store.Path)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp")
	}
}

func TestReplaceVehicleTypes(t *testing.T) {
	store := newTestStore(t, nil)

	require.NoError(t, store.ReplaceVehicleTypes([]fleetdata.VehicleType{{VehicleTypeID: "1", FormFactor: "bicycle"}}))
	require.NoError(t, store.ReplaceVehicleTypes([]fleetdata.VehicleType{{VehicleTypeID: "2", FormFactor: "scooter"}}))

	current, err := store.ReadVehicleTypes()
	require.NoError(t, err)
	assert.Equal(t, []fleetdata.VehicleType{{VehicleTypeID: "2", FormFactor: "scooter"}}, current)

	backup, err := readParquet[fleetdata.VehicleType](store.VehicleTypesBackupPath())
	require.NoError(t, err)
	assert.Equal(t, "1", backup[0].VehicleTypeID)
}

func TestAcquireLock(t *testing.T) {
	root := t.TempDir()

	lock, err := AcquireLock(root)
	require.NoError(t, err)

	_, err = AcquireLock(root)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())

	again, err := AcquireLock(filepath.Join(root))
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}
