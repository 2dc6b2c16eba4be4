package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleet"
	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/rs/zerolog"
)

// FleetStore gives access to the files of one fleet. Each fleet owns its directory
// exclusively so no locking happens at this level.
type FleetStore struct {
	Path     string
	Location *time.Location
	Logger   zerolog.Logger
}

func ForFleet(f *fleet.Fleet) *FleetStore {
	return &FleetStore{
		Path:     f.DataPath,
		Location: f.Location,
		Logger:   f.Logger,
	}
}

func (s *FleetStore) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}

	return s.Location
}

func (s *FleetStore) RawPath(feedType fleetdata.FeedType) string {
	return filepath.Join(s.Path, fmt.Sprintf("raw.%s.parquet", feedType))
}

func (s *FleetStore) TripsPath(feedType fleetdata.FeedType, granularity fleetdata.Granularity, year int) string {
	return filepath.Join(s.Path, fmt.Sprintf("trips.%s.%s.%d.parquet", feedType, granularity, year))
}

func (s *FleetStore) WatermarkPath(feedType fleetdata.FeedType) string {
	return filepath.Join(s.Path, fmt.Sprintf("watermark.%s.parquet", feedType))
}

func (s *FleetStore) StationsPath() string {
	return filepath.Join(s.Path, "stations.parquet")
}

func (s *FleetStore) StationsBackupPath() string {
	return filepath.Join(s.Path, "stations_BAK.parquet")
}

func (s *FleetStore) VehicleTypesPath() string {
	return filepath.Join(s.Path, "vehicle_types.parquet")
}

func (s *FleetStore) VehicleTypesBackupPath() string {
	return filepath.Join(s.Path, "vehicles_BAK.parquet")
}

func (s *FleetStore) SystemPath() string {
	return filepath.Join(s.Path, "system.parquet")
}

// readBaseline reads path, treating a missing file as empty and a corrupt one as empty with a
// warning
func readBaseline[T any](s *FleetStore, path string) []T {
	rows, err := readParquet[T](path)
	if err == nil {
		return rows
	}

	if !errors.Is(err, ErrNotFound) {
		s.Logger.Warn().Err(err).Str("file", path).Msg("Unreadable file, continuing without prior data")
	}

	return nil
}

// systemRow is the on disk shape of fleetdata.SystemRecord. Unknown times are stored as null
// and come back as the zero time.
type systemRow struct {
	Name           string    `parquet:"name"`
	DisplayName    string    `parquet:"display_name"`
	URL            string    `parquet:"url"`
	Timezone       string    `parquet:"tz"`
	Tracking       bool      `parquet:"tracking"`
	TrackStations  bool      `parquet:"track_stations"`
	TrackFreeBikes bool      `parquet:"track_free_bikes"`
	TrackingStart  time.Time `parquet:"tracking_start,optional,timestamp(millisecond)"`
	TrackingEnd    time.Time `parquet:"tracking_end,optional,timestamp(millisecond)"`
	LastPoll       time.Time `parquet:"last_poll,optional,timestamp(millisecond)"`
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}

	return t.UTC()
}

func timePointer(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	t = t.UTC()
	return &t
}

func (s *FleetStore) WriteSystem(record fleetdata.SystemRecord) error {
	row := systemRow{
		Name:           record.Name,
		DisplayName:    record.DisplayName,
		URL:            record.URL,
		Timezone:       record.Timezone,
		Tracking:       record.Tracking,
		TrackStations:  record.TrackStations,
		TrackFreeBikes: record.TrackFreeBikes,
		TrackingStart:  timeValue(record.TrackingStart),
		TrackingEnd:    timeValue(record.TrackingEnd),
		LastPoll:       timeValue(record.LastPoll),
	}

	return writeParquet(s.SystemPath(), []systemRow{row})
}

func (s *FleetStore) ReadSystem() (*fleetdata.SystemRecord, error) {
	rows, err := readParquet[systemRow](s.SystemPath())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	row := rows[0]

	return &fleetdata.SystemRecord{
		Name:           row.Name,
		DisplayName:    row.DisplayName,
		URL:            row.URL,
		Timezone:       row.Timezone,
		Tracking:       row.Tracking,
		TrackStations:  row.TrackStations,
		TrackFreeBikes: row.TrackFreeBikes,
		TrackingStart:  timePointer(row.TrackingStart),
		TrackingEnd:    timePointer(row.TrackingEnd),
		LastPoll:       timePointer(row.LastPoll),
	}, nil
}
