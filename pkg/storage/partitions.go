package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/trips"
	"golang.org/x/exp/slices"
)

// Partition identifies one stored trips file
type Partition struct {
	FeedType    fleetdata.FeedType
	Granularity fleetdata.Granularity
	Year        int
	Path        string
}

// MergeTrips adds records to the hourly partition of every year they fall in and regenerates
// the matching daily rollups. Existing counts are summed with the new ones, never replaced.
func (s *FleetStore) MergeTrips(feedType fleetdata.FeedType, records []fleetdata.TripRecord) error {
	byYear := trips.SplitByYear(records, s.location())

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	slices.Sort(years)

	for _, year := range years {
		hourlyPath := s.TripsPath(feedType, fleetdata.GranularityHourly, year)

		existing := readBaseline[fleetdata.TripRecord](s, hourlyPath)
		merged := trips.Merge(existing, byYear[year])

		if err := writeParquet(hourlyPath, merged); err != nil {
			return err
		}

		daily := trips.DailyRollup(merged, s.location())
		if err := writeParquet(s.TripsPath(feedType, fleetdata.GranularityDaily, year), daily); err != nil {
			return err
		}

		s.Logger.Debug().
			Str("feed", string(feedType)).
			Int("year", year).
			Int("hourly", len(merged)).
			Int("daily", len(daily)).
			Msg("Wrote trip partitions")
	}

	return nil
}

func (s *FleetStore) ReadTrips(feedType fleetdata.FeedType, granularity fleetdata.Granularity, year int) ([]fleetdata.TripRecord, error) {
	return readParquet[fleetdata.TripRecord](s.TripsPath(feedType, granularity, year))
}

// Partitions lists the trips files present in the fleet directory
func (s *FleetStore) Partitions() ([]Partition, error) {
	paths, err := filepath.Glob(filepath.Join(s.Path, "trips.*.*.*.parquet"))
	if err != nil {
		return nil, err
	}

	var partitions []Partition
	for _, path := range paths {
		partition, err := parsePartitionName(path)
		if err != nil {
			s.Logger.Debug().Err(err).Str("file", path).Msg("Ignoring unrecognised file")
			continue
		}
		partitions = append(partitions, partition)
	}

	slices.SortFunc(partitions, func(a, b Partition) int {
		return strings.Compare(a.Path, b.Path)
	})

	return partitions, nil
}

func parsePartitionName(path string) (Partition, error) {
	parts := strings.Split(filepath.Base(path), ".")
	if len(parts) != 5 || parts[0] != "trips" || parts[4] != "parquet" {
		return Partition{}, fmt.Errorf("unexpected partition name %s", filepath.Base(path))
	}

	feedType, err := fleetdata.ParseFeedType(parts[1])
	if err != nil {
		return Partition{}, err
	}
	granularity, err := fleetdata.ParseGranularity(parts[2])
	if err != nil {
		return Partition{}, err
	}
	year, err := strconv.Atoi(parts[3])
	if err != nil {
		return Partition{}, err
	}

	return Partition{FeedType: feedType, Granularity: granularity, Year: year, Path: path}, nil
}

// TrackingRange scans the hourly partitions for the first and last stored bucket. Both are nil
// when nothing has been stored yet.
func (s *FleetStore) TrackingRange() (*time.Time, *time.Time, error) {
	partitions, err := s.Partitions()
	if err != nil {
		return nil, nil, err
	}

	var start, end *time.Time
	for _, partition := range partitions {
		if partition.Granularity != fleetdata.GranularityHourly {
			continue
		}

		records := readBaseline[fleetdata.TripRecord](s, partition.Path)
		for _, record := range records {
			datetime := record.Datetime.UTC()
			if start == nil || datetime.Before(*start) {
				start = &datetime
			}
			if end == nil || datetime.After(*end) {
				end = &datetime
			}
		}
	}

	return start, end, nil
}

// ReadWatermark returns the newest raw observation time already consolidated, or the zero
// time when the feed has never been consolidated
func (s *FleetStore) ReadWatermark(feedType fleetdata.FeedType) time.Time {
	rows, err := readParquet[fleetdata.Watermark](s.WatermarkPath(feedType))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.Logger.Warn().Err(err).Str("feed", string(feedType)).Msg("Unreadable watermark, consolidating from scratch")
		}
		return time.Time{}
	}

	if len(rows) == 0 {
		return time.Time{}
	}

	return rows[0].ConsolidatedThrough
}

func (s *FleetStore) WriteWatermark(feedType fleetdata.FeedType, consolidatedThrough time.Time) error {
	return writeParquet(s.WatermarkPath(feedType), []fleetdata.Watermark{{
		FeedType:             string(feedType),
		ConsolidatedThrough:  consolidatedThrough.UTC(),
		ModificationDateTime: time.Now().UTC(),
	}})
}
