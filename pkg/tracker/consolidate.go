package tracker

import (
	"context"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleet"
	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/storage"
	"github.com/bikeraccoon/bikeraccoon/pkg/trips"
)

// consolidateFleet turns the raw files of every tracked feed type into trips, refreshes the
// registry when due and rewrites the system table
func (t *TrackerManager) consolidateFleet(ctx context.Context, f *fleet.Fleet) error {
	now := t.now()
	store := storage.ForFleet(f)

	report := fleetdata.ConsolidationReport{Timestamp: now}

	for _, feedType := range fleetdata.FeedTypes {
		if !f.TracksFeed(feedType) {
			continue
		}

		result := t.consolidateFeed(f, store, feedType)
		t.Metrics.ObserveConsolidation(f.Name, string(feedType), string(result.Status), result.Trips, result.Returns)

		report.Feeds = append(report.Feeds, result)
	}

	if f.RegistryRefreshDue(now) {
		report.RegistryRefreshed = t.refreshRegistry(ctx, f, store)
		f.MarkRegistryRefreshed(now)
	}

	if err := t.updateSystemTable(f, store); err != nil {
		return err
	}
	f.MarkConsolidated(now)

	report.System = f.SystemRecord()
	t.notifySinks(ctx, f, report)

	return nil
}

// consolidateFeed runs merge, watermark and trim in that order. Raw data is only trimmed once
// the trips derived from it and the watermark covering it are on disk.
func (t *TrackerManager) consolidateFeed(f *fleet.Fleet, store *storage.FleetStore, feedType fleetdata.FeedType) fleetdata.FeedConsolidation {
	logger := f.Logger.With().Str("feed", string(feedType)).Logger()
	result := fleetdata.FeedConsolidation{FeedType: feedType}

	fail := func(err error, message string) fleetdata.FeedConsolidation {
		logger.Error().Err(err).Msg(message)
		result.Status = fleetdata.ConsolidationStatusFailed
		result.FailReason = err.Error()
		return result
	}

	observations, err := store.LoadRaw(feedType)
	if err != nil {
		logger.Warn().Err(err).Msg("Unreadable raw file, skipping trips update")
		result.Status = fleetdata.ConsolidationStatusSkipped
		return result
	}
	result.Observations = len(observations)

	latest, ok := fleetdata.LatestObservationTime(observations)
	if !ok {
		logger.Debug().Msg("No raw observations, skipping trips update")
		result.Status = fleetdata.ConsolidationStatusSkipped
		return result
	}

	watermark := store.ReadWatermark(feedType)
	records := trips.Infer(observations, feedType, f.Location, watermark)

	if len(records) > 0 {
		if err := store.MergeTrips(feedType, records); err != nil {
			return fail(err, "Failed to merge trips, raw data kept")
		}
	}

	if latest.After(watermark) {
		if err := store.WriteWatermark(feedType, latest); err != nil {
			return fail(err, "Failed to write watermark, raw data kept")
		}
	}

	if err := store.TrimRaw(feedType); err != nil {
		logger.Warn().Err(err).Msg("Failed to trim raw data")
	}

	result.Status = fleetdata.ConsolidationStatusMerged
	result.Records = len(records)
	result.Trips, result.Returns = fleetdata.SumTrips(records)

	logger.Info().
		Int("observations", result.Observations).
		Int("records", result.Records).
		Int64("trips", result.Trips).
		Int64("returns", result.Returns).
		Msg("Updated trips")

	return result
}

// updateSystemTable recomputes the tracking window from the stored partitions and writes the
// fleet's system row
func (t *TrackerManager) updateSystemTable(f *fleet.Fleet, store *storage.FleetStore) error {
	start, end, err := store.TrackingRange()
	if err != nil {
		f.Logger.Warn().Err(err).Msg("Failed to scan partitions for tracking range")
	} else {
		f.SetTrackingRange(start, end)
	}

	return store.WriteSystem(f.SystemRecord())
}
