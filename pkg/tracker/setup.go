package tracker

import (
	"context"
	"os"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleet"
	"github.com/bikeraccoon/bikeraccoon/pkg/storage"
	"github.com/rs/zerolog/log"
)

// Prepare creates the fleet directories, resolves missing time zones from the feeds and
// writes every fleet's system table. Untracked fleets only get their system table.
func (t *TrackerManager) Prepare(ctx context.Context) {
	for _, f := range t.Fleets {
		if f.Tracking {
			continue
		}

		t.runFleetTask(ctx, f, "prepare", func(ctx context.Context, f *fleet.Fleet) error {
			return t.updateSystemTable(f, storage.ForFleet(f))
		})
	}

	t.forEachFleet(ctx, "prepare", t.prepareFleet)
}

// Setup is Prepare followed by an immediate registry refresh of every tracked fleet
func (t *TrackerManager) Setup(ctx context.Context) {
	t.Prepare(ctx)

	t.forEachFleet(ctx, "setup", func(ctx context.Context, f *fleet.Fleet) error {
		t.refreshRegistry(ctx, f, storage.ForFleet(f))
		return nil
	})

	log.Info().Msg("Tracker setup complete")
}

func (t *TrackerManager) prepareFleet(ctx context.Context, f *fleet.Fleet) error {
	if err := os.MkdirAll(f.DataPath, 0o755); err != nil {
		return err
	}

	if f.Timezone == "" {
		t.resolveTimezone(ctx, f)
	}

	return t.updateSystemTable(f, storage.ForFleet(f))
}

func (t *TrackerManager) resolveTimezone(ctx context.Context, f *fleet.Fleet) {
	information, err := t.Client.FetchSystemInformation(ctx, f.URL)
	if err != nil {
		f.Logger.Warn().Err(err).Msg("Unable to read system information, using UTC")
		return
	}

	loc, err := time.LoadLocation(information.Timezone)
	if err != nil || information.Timezone == "" {
		f.Logger.Warn().Str("timezone", information.Timezone).Msg("Feed reports an unknown time zone, using UTC")
		return
	}

	f.SetLocation(loc)
	f.Logger.Info().Msg("Resolved time zone from system information")
}
