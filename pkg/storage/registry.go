package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"golang.org/x/exp/slices"
)

// MergeStations builds the new station table. Fetched stations are active unless reported as
// not renting, stations only present in the previous table are kept as inactive.
func MergeStations(previous []fleetdata.Station, fetched []fleetdata.Station, notRenting map[string]bool) []fleetdata.Station {
	merged := make([]fleetdata.Station, 0, len(fetched)+len(previous))
	present := map[string]bool{}

	for _, station := range fetched {
		if present[station.StationID] {
			continue
		}
		present[station.StationID] = true

		station.Active = !notRenting[station.StationID]
		merged = append(merged, station)
	}

	for _, station := range previous {
		if present[station.StationID] {
			continue
		}
		present[station.StationID] = true

		station.Active = false
		merged = append(merged, station)
	}

	slices.SortFunc(merged, func(a, b fleetdata.Station) int {
		switch {
		case a.StationID < b.StationID:
			return -1
		case a.StationID > b.StationID:
			return 1
		default:
			return 0
		}
	})

	return merged
}

func (s *FleetStore) ReadStations() ([]fleetdata.Station, error) {
	return readParquet[fleetdata.Station](s.StationsPath())
}

// RefreshStations merges fetched into the stored station table, keeping the previous table as
// a single generation backup
func (s *FleetStore) RefreshStations(fetched []fleetdata.Station, notRenting map[string]bool) ([]fleetdata.Station, error) {
	previous := readBaseline[fleetdata.Station](s, s.StationsPath())
	merged := MergeStations(previous, fetched, notRenting)

	if err := backupAndWrite(s.StationsPath(), s.StationsBackupPath(), merged); err != nil {
		return nil, err
	}

	return merged, nil
}

func (s *FleetStore) ReadVehicleTypes() ([]fleetdata.VehicleType, error) {
	return readParquet[fleetdata.VehicleType](s.VehicleTypesPath())
}

// ReplaceVehicleTypes overwrites the vehicle type table wholesale after backing it up
func (s *FleetStore) ReplaceVehicleTypes(vehicleTypes []fleetdata.VehicleType) error {
	return backupAndWrite(s.VehicleTypesPath(), s.VehicleTypesBackupPath(), vehicleTypes)
}

// backupAndWrite copies the live table to backupPath and then replaces it with rows. The live
// table stays in place until the new one has been renamed over it.
func backupAndWrite[T any](path string, backupPath string, rows []T) error {
	if err := copyFile(path, backupPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return writeParquet(path, rows)
}

func copyFile(source string, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	directory := filepath.Dir(destination)
	temporary, err := os.CreateTemp(directory, "."+filepath.Base(destination)+".*.tmp")
	if err != nil {
		return err
	}
	temporaryPath := temporary.Name()

	_, err = io.Copy(temporary, in)
	if err == nil {
		err = temporary.Sync()
	}
	if closeErr := temporary.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(temporaryPath, destination)
	}
	if err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("backup %s: %w", source, err)
	}

	return nil
}
