package tracker

import (
	"context"
	"errors"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleet"
	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/gbfs"
	"github.com/bikeraccoon/bikeraccoon/pkg/storage"
)

// pollFleet fetches the availability of every tracked feed type and appends it to the raw
// store. A failing feed type is logged and skipped for this cycle.
func (t *TrackerManager) pollFleet(ctx context.Context, f *fleet.Fleet) error {
	store := storage.ForFleet(f)

	for _, feedType := range fleetdata.FeedTypes {
		logger := f.Logger.With().Str("feed", string(feedType)).Logger()

		if !f.TracksFeed(feedType) {
			logger.Debug().Msg("Feed type not tracked, skipping")
			continue
		}

		observations, err := t.Client.FetchAvailability(ctx, f.URL, feedType)
		if errors.Is(err, gbfs.ErrFeedNotAvailable) {
			t.Metrics.ObservePoll(f.Name, string(feedType), "unavailable", 0)
			logger.Debug().Msg("Feed not available")
			continue
		} else if err != nil {
			t.Metrics.ObservePoll(f.Name, string(feedType), "error", 0)
			logger.Error().Err(err).Msg("Failed to fetch availability")
			continue
		}

		if err := store.AppendRaw(feedType, observations); err != nil {
			t.Metrics.ObservePoll(f.Name, string(feedType), "error", 0)
			logger.Error().Err(err).Msg("Failed to append raw observations")
			continue
		}

		t.Metrics.ObservePoll(f.Name, string(feedType), "ok", len(observations))
		logger.Debug().Int("observations", len(observations)).Msg("Appended raw observations")
	}

	f.MarkPolled(t.now())

	return nil
}
