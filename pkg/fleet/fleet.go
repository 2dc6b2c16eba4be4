package fleet

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fleet is a single tracked shared mobility system. The configuration fields are fixed after
// load, the runtime fields are only written by the tracker and guarded by mu so the status
// server can read them.
type Fleet struct {
	Name         string
	DisplayName  string
	URL          string
	GBFSSystemID string

	// Timezone is the configured or resolved IANA name, empty until known
	Timezone string
	Location *time.Location

	Tracking       bool
	TrackStations  bool
	TrackFreeBikes bool

	StationCheckHour int

	DataPath string

	Logger zerolog.Logger

	mu                  sync.RWMutex
	trackingStart       *time.Time
	trackingEnd         *time.Time
	lastPoll            *time.Time
	lastConsolidation   *time.Time
	lastRegistryRefresh *time.Time
}

// Status is a point in time copy of a fleet used outside the tracker
type Status struct {
	Name             string
	DisplayName      string
	URL              string
	Timezone         string
	Tracking         bool
	TrackStations    bool
	TrackFreeBikes   bool
	StationCheckHour int

	TrackingStart       *time.Time
	TrackingEnd         *time.Time
	LastPoll            *time.Time
	LastConsolidation   *time.Time
	LastRegistryRefresh *time.Time
}

func New(definition Definition, dataRoot string, stationCheckHour int) *Fleet {
	f := &Fleet{
		Name:             definition.Name,
		DisplayName:      definition.DisplayName,
		URL:              definition.URL,
		GBFSSystemID:     definition.GBFSSystemID,
		Location:         time.UTC,
		Tracking:         definition.Tracking,
		TrackStations:    boolOrDefault(definition.TrackStations, true),
		TrackFreeBikes:   boolOrDefault(definition.TrackFreeBikes, true),
		StationCheckHour: stationCheckHour,
		DataPath:         filepath.Join(dataRoot, definition.Name),
		Logger:           log.With().Str("fleet", definition.Name).Logger(),
	}

	if f.DisplayName == "" {
		f.DisplayName = f.Name
	}

	if definition.StationCheckHour != nil {
		f.StationCheckHour = *definition.StationCheckHour
	}

	return f
}

// LocalNow returns the current time in the fleet's time zone
func (f *Fleet) LocalNow() time.Time {
	return time.Now().In(f.Location)
}

func (f *Fleet) SetLocation(loc *time.Location) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Timezone = loc.String()
	f.Location = loc
	f.Logger = f.Logger.With().Str("tz", loc.String()).Logger()
}

func (f *Fleet) SetTrackingRange(start *time.Time, end *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.trackingStart = start
	f.trackingEnd = end
}

func (f *Fleet) TrackingRange() (*time.Time, *time.Time) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.trackingStart, f.trackingEnd
}

func (f *Fleet) MarkPolled(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastPoll = &t
}

func (f *Fleet) MarkConsolidated(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastConsolidation = &t
}

func (f *Fleet) MarkRegistryRefreshed(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastRegistryRefresh = &t
}

// RegistryRefreshDue reports whether the daily registry refresh should run at now: the fleet
// local hour must equal the check hour and no refresh may have happened on that local date
func (f *Fleet) RegistryRefreshDue(now time.Time) bool {
	local := now.In(f.Location)
	if local.Hour() != f.StationCheckHour {
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.lastRegistryRefresh == nil {
		return true
	}

	return !util.SameDate(f.lastRegistryRefresh.In(f.Location), local)
}

func (f *Fleet) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var status Status
	copier.Copy(&status, f)

	status.Timezone = f.Location.String()
	status.TrackingStart = f.trackingStart
	status.TrackingEnd = f.trackingEnd
	status.LastPoll = f.lastPoll
	status.LastConsolidation = f.lastConsolidation
	status.LastRegistryRefresh = f.lastRegistryRefresh

	return status
}

func (f *Fleet) SystemRecord() fleetdata.SystemRecord {
	status := f.Status()

	return fleetdata.SystemRecord{
		Name:           status.Name,
		DisplayName:    status.DisplayName,
		URL:            status.URL,
		Timezone:       status.Timezone,
		Tracking:       status.Tracking,
		TrackStations:  status.TrackStations,
		TrackFreeBikes: status.TrackFreeBikes,
		TrackingStart:  status.TrackingStart,
		TrackingEnd:    status.TrackingEnd,
		LastPoll:       status.LastPoll,
	}
}

func (f *Fleet) TracksFeed(feedType fleetdata.FeedType) bool {
	switch feedType {
	case fleetdata.FeedTypeStation:
		return f.TrackStations
	case fleetdata.FeedTypeFreeBike:
		return f.TrackFreeBikes
	default:
		return false
	}
}

func boolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}

	return *value
}
