package tracker

import (
	"context"
	"errors"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleet"
	"github.com/bikeraccoon/bikeraccoon/pkg/gbfs"
	"github.com/bikeraccoon/bikeraccoon/pkg/storage"
)

// refreshRegistry updates the station and vehicle type tables independently. It reports
// whether at least one of them was written.
func (t *TrackerManager) refreshRegistry(ctx context.Context, f *fleet.Fleet, store *storage.FleetStore) bool {
	stationsRefreshed := t.refreshStations(ctx, f, store)
	vehicleTypesRefreshed := t.refreshVehicleTypes(ctx, f, store)

	return stationsRefreshed || vehicleTypesRefreshed
}

func (t *TrackerManager) refreshStations(ctx context.Context, f *fleet.Fleet, store *storage.FleetStore) bool {
	f.Logger.Info().Msg("Station update")

	registry, err := t.Client.FetchStationInformation(ctx, f.URL)
	if errors.Is(err, gbfs.ErrFeedNotAvailable) {
		t.Metrics.ObserveRegistryRefresh(f.Name, "stations", "unavailable")
		f.Logger.Debug().Msg("No station information feed")
		return false
	} else if err != nil {
		t.Metrics.ObserveRegistryRefresh(f.Name, "stations", "error")
		f.Logger.Error().Err(err).Msg("Failed to load stations")
		return false
	}

	stations, err := store.RefreshStations(registry.Stations, registry.NotRenting)
	if err != nil {
		t.Metrics.ObserveRegistryRefresh(f.Name, "stations", "error")
		f.Logger.Error().Err(err).Msg("Failed to write stations")
		return false
	}

	active := 0
	for _, station := range stations {
		if station.Active {
			active++
		}
	}

	t.Metrics.ObserveRegistryRefresh(f.Name, "stations", "ok")
	f.Logger.Info().Int("stations", len(stations)).Int("active", active).Msg("Station update complete")

	return true
}

func (t *TrackerManager) refreshVehicleTypes(ctx context.Context, f *fleet.Fleet, store *storage.FleetStore) bool {
	f.Logger.Info().Msg("Vehicle types update")

	vehicleTypes, err := t.Client.FetchVehicleTypes(ctx, f.URL)
	if errors.Is(err, gbfs.ErrFeedNotAvailable) {
		t.Metrics.ObserveRegistryRefresh(f.Name, "vehicle_types", "unavailable")
		f.Logger.Debug().Msg("No vehicle types feed")
		return false
	} else if err != nil {
		t.Metrics.ObserveRegistryRefresh(f.Name, "vehicle_types", "error")
		f.Logger.Info().Err(err).Msg("Unable to load vehicle types")
		return false
	}

	if err := store.ReplaceVehicleTypes(vehicleTypes); err != nil {
		t.Metrics.ObserveRegistryRefresh(f.Name, "vehicle_types", "error")
		f.Logger.Error().Err(err).Msg("Failed to write vehicle types")
		return false
	}

	t.Metrics.ObserveRegistryRefresh(f.Name, "vehicle_types", "ok")
	f.Logger.Info().Int("vehicletypes", len(vehicleTypes)).Msg("Vehicle type update complete")

	return true
}
