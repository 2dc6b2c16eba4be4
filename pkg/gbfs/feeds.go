package gbfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/util"
)

// FetchAvailability returns the current availability observations for the given feed type
func (c *Client) FetchAvailability(ctx context.Context, indexURL string, feedType fleetdata.FeedType) ([]fleetdata.RawObservation, error) {
	switch feedType {
	case fleetdata.FeedTypeStation:
		return c.FetchStationStatus(ctx, indexURL)
	case fleetdata.FeedTypeFreeBike:
		return c.FetchFreeBikeStatus(ctx, indexURL)
	default:
		return nil, fmt.Errorf("unknown feed type %q", feedType)
	}
}

func (c *Client) observationTime(envelope Envelope) time.Time {
	if envelope.LastUpdated != nil && !envelope.LastUpdated.IsZero() {
		return envelope.LastUpdated.Time
	}

	return c.now().UTC()
}

// FetchStationStatus returns one observation per station and vehicle type. Stations that do not
// break their counts down by vehicle type produce a single observation with no vehicle type.
func (c *Client) FetchStationStatus(ctx context.Context, indexURL string) ([]fleetdata.RawObservation, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, url, err := c.feedURL(ctx, indexURL, FeedStationStatus)
	if err != nil {
		return nil, err
	}

	var envelope Envelope
	if err := c.getJSON(ctx, FeedStationStatus, url, &envelope); err != nil {
		return nil, err
	}

	var data struct {
		Stations *[]StationStatus `json:"stations"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &ParseError{Feed: FeedStationStatus, Err: err}
	}
	if data.Stations == nil {
		return nil, &ParseError{Feed: FeedStationStatus, Err: errors.New("missing data.stations")}
	}

	timestamp := c.observationTime(envelope)

	type dedupKey struct {
		station      string
		lastReported int64
		vehicleType  string
	}
	seen := map[dedupKey]bool{}

	var observations []fleetdata.RawObservation
	for _, station := range *data.Stations {
		if station.StationID == "" {
			return nil, &ParseError{Feed: FeedStationStatus, Err: errors.New("station without station_id")}
		}

		var lastReported int64
		if station.LastReported != nil {
			lastReported = station.LastReported.Unix()
		}

		renting := true
		if station.IsRenting != nil {
			renting = bool(*station.IsRenting)
		}

		stationID := string(station.StationID)

		add := func(vehicleType *string, count int64) {
			key := dedupKey{station: stationID, lastReported: lastReported, vehicleType: util.StringValue(vehicleType)}
			if seen[key] {
				return
			}
			seen[key] = true

			observations = append(observations, fleetdata.RawObservation{
				Datetime:          timestamp,
				StationID:         util.StringPointer(stationID),
				VehicleTypeID:     vehicleType,
				NumBikesAvailable: count,
				IsRenting:         renting,
			})
		}

		if len(station.VehicleTypesAvailable) > 0 {
			for _, available := range station.VehicleTypesAvailable {
				add(util.StringPointer(string(available.VehicleTypeID)), available.Count)
			}
			continue
		}

		switch {
		case station.NumBikesAvailable != nil:
			add(nil, *station.NumBikesAvailable)
		case station.NumVehiclesAvailable != nil:
			add(nil, *station.NumVehiclesAvailable)
		default:
			return nil, &ParseError{Feed: FeedStationStatus, Err: fmt.Errorf("station %s has no availability count", stationID)}
		}
	}

	return observations, nil
}

// FetchFreeBikeStatus counts the listed vehicles per (station, vehicle type, position). Every
// listed vehicle is available, so observations are always renting.
func (c *Client) FetchFreeBikeStatus(ctx context.Context, indexURL string) ([]fleetdata.RawObservation, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	feed, url, err := c.feedURL(ctx, indexURL, FeedFreeBikeStatus, FeedVehicleStatus)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Envelope
		Bikes    *[]Vehicle `json:"bikes"`
		Vehicles *[]Vehicle `json:"vehicles"`
	}
	if err := c.getJSON(ctx, feed, url, &payload); err != nil {
		return nil, err
	}

	var data struct {
		Bikes    *[]Vehicle `json:"bikes"`
		Vehicles *[]Vehicle `json:"vehicles"`
	}
	if len(payload.Data) > 0 {
		if err := json.Unmarshal(payload.Data, &data); err != nil {
			return nil, &ParseError{Feed: feed, Err: err}
		}
	}

	var vehicles *[]Vehicle
	for _, candidate := range []*[]Vehicle{data.Bikes, data.Vehicles, payload.Bikes, payload.Vehicles} {
		if candidate != nil {
			vehicles = candidate
			break
		}
	}
	if vehicles == nil {
		return nil, &ParseError{Feed: feed, Err: errors.New("missing bikes or vehicles list")}
	}

	timestamp := c.observationTime(payload.Envelope)

	type groupKey struct {
		station     string
		vehicleType string
		lat         float64
		lon         float64
		hasPosition bool
	}
	counts := map[groupKey]int64{}
	samples := map[groupKey]Vehicle{}
	var order []groupKey

	for _, vehicle := range *vehicles {
		key := groupKey{
			station:     string(vehicle.StationID),
			vehicleType: string(vehicle.VehicleTypeID),
		}
		if vehicle.Lat != nil && vehicle.Lon != nil {
			key.lat, key.lon, key.hasPosition = *vehicle.Lat, *vehicle.Lon, true
		}

		if _, ok := counts[key]; !ok {
			order = append(order, key)
			samples[key] = vehicle
		}
		counts[key]++
	}

	observations := make([]fleetdata.RawObservation, 0, len(order))
	for _, key := range order {
		sample := samples[key]

		observation := fleetdata.RawObservation{
			Datetime:          timestamp,
			NumBikesAvailable: counts[key],
			IsRenting:         true,
		}
		if key.station != "" {
			observation.StationID = util.StringPointer(key.station)
		}
		if key.vehicleType != "" {
			observation.VehicleTypeID = util.StringPointer(key.vehicleType)
		}
		if key.hasPosition {
			observation.Lat, observation.Lon = sample.Lat, sample.Lon
		}

		observations = append(observations, observation)
	}

	return observations, nil
}

// StationRegistry is the current station_information listing plus the ids of stations that
// station_status reports as not renting
type StationRegistry struct {
	Stations   []fleetdata.Station
	NotRenting map[string]bool
}

// FetchStationInformation lists the stations the fleet publishes. The renting flags come from
// station_status and are left empty when that feed is missing.
func (c *Client) FetchStationInformation(ctx context.Context, indexURL string) (*StationRegistry, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, url, err := c.feedURL(ctx, indexURL, FeedStationInformation)
	if err != nil {
		return nil, err
	}

	var envelope Envelope
	if err := c.getJSON(ctx, FeedStationInformation, url, &envelope); err != nil {
		return nil, err
	}

	var data struct {
		Stations *[]StationInformation `json:"stations"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &ParseError{Feed: FeedStationInformation, Err: err}
	}
	if data.Stations == nil {
		return nil, &ParseError{Feed: FeedStationInformation, Err: errors.New("missing data.stations")}
	}

	registry := &StationRegistry{NotRenting: map[string]bool{}}
	for _, station := range *data.Stations {
		if station.StationID == "" {
			continue
		}

		registry.Stations = append(registry.Stations, fleetdata.Station{
			StationID: string(station.StationID),
			Name:      localisedText(station.Name),
			Lat:       station.Lat,
			Lon:       station.Lon,
			Active:    true,
		})
	}

	sort.Slice(registry.Stations, func(i, j int) bool {
		return registry.Stations[i].StationID < registry.Stations[j].StationID
	})

	statusObservations, err := c.FetchStationStatus(ctx, indexURL)
	if err != nil {
		if !errors.Is(err, ErrFeedNotAvailable) {
			return nil, err
		}
		return registry, nil
	}

	for _, observation := range statusObservations {
		if !observation.IsRenting && observation.StationID != nil {
			registry.NotRenting[*observation.StationID] = true
		}
	}

	return registry, nil
}

func (c *Client) FetchVehicleTypes(ctx context.Context, indexURL string) ([]fleetdata.VehicleType, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, url, err := c.feedURL(ctx, indexURL, FeedVehicleTypes)
	if err != nil {
		return nil, err
	}

	var envelope Envelope
	if err := c.getJSON(ctx, FeedVehicleTypes, url, &envelope); err != nil {
		return nil, err
	}

	var data struct {
		VehicleTypes *[]VehicleTypeInformation `json:"vehicle_types"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &ParseError{Feed: FeedVehicleTypes, Err: err}
	}
	if data.VehicleTypes == nil {
		return nil, &ParseError{Feed: FeedVehicleTypes, Err: errors.New("missing data.vehicle_types")}
	}

	vehicleTypes := make([]fleetdata.VehicleType, 0, len(*data.VehicleTypes))
	for _, vehicleType := range *data.VehicleTypes {
		vehicleTypes = append(vehicleTypes, fleetdata.VehicleType{
			VehicleTypeID:  string(vehicleType.VehicleTypeID),
			FormFactor:     vehicleType.FormFactor,
			PropulsionType: vehicleType.PropulsionType,
		})
	}

	return vehicleTypes, nil
}

func (c *Client) FetchSystemInformation(ctx context.Context, indexURL string) (*SystemInformation, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, url, err := c.feedURL(ctx, indexURL, FeedSystemInformation)
	if err != nil {
		return nil, err
	}

	var envelope Envelope
	if err := c.getJSON(ctx, FeedSystemInformation, url, &envelope); err != nil {
		return nil, err
	}

	var information SystemInformation
	if err := json.Unmarshal(envelope.Data, &information); err != nil {
		return nil, &ParseError{Feed: FeedSystemInformation, Err: err}
	}

	return &information, nil
}
