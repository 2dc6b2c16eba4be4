package tracker

import (
	"context"
	"io"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleet"
	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/gbfs"
	"github.com/bikeraccoon/bikeraccoon/pkg/metrics"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// FeedClient is the part of gbfs.Client the tracker depends on
type FeedClient interface {
	FetchAvailability(ctx context.Context, indexURL string, feedType fleetdata.FeedType) ([]fleetdata.RawObservation, error)
	FetchStationInformation(ctx context.Context, indexURL string) (*gbfs.StationRegistry, error)
	FetchVehicleTypes(ctx context.Context, indexURL string) ([]fleetdata.VehicleType, error)
	FetchSystemInformation(ctx context.Context, indexURL string) (*gbfs.SystemInformation, error)
}

// Sink receives the report of every fleet consolidation
type Sink interface {
	Name() string
	Consolidated(ctx context.Context, report fleetdata.ConsolidationReport) error
}

type TrackerManager struct {
	Fleets []*fleet.Fleet
	Client FeedClient

	PollInterval        time.Duration
	ConsolidateInterval time.Duration
	Workers             int

	Metrics *metrics.Collector
	Sinks   []Sink

	Now func() time.Time
}

func (t *TrackerManager) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}

	return t.Now()
}

func (t *TrackerManager) workers() int {
	if t.Workers < 1 {
		return fleet.DefaultWorkers
	}

	return t.Workers
}

// Run drives the poll and consolidate phases until ctx is cancelled. Each POLL phase finishes
// for every fleet before the consolidation timer is checked.
func (t *TrackerManager) Run(ctx context.Context) error {
	log.Info().
		Int("fleets", len(t.Fleets)).
		Int("workers", t.workers()).
		Dur("poll", t.PollInterval).
		Dur("consolidate", t.ConsolidateInterval).
		Msg("Starting tracker")

	lastConsolidation := t.now()

	for {
		startTime := t.now()

		t.PollPhase(ctx)

		if t.now().Sub(lastConsolidation) >= t.ConsolidateInterval {
			lastConsolidation = t.now()
			t.ConsolidatePhase(ctx)
		}

		waitTime := t.PollInterval - t.now().Sub(startTime)
		if waitTime < 0 {
			waitTime = 0
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Tracker stopped")
			return nil
		case <-time.After(waitTime):
		}
	}
}

func (t *TrackerManager) PollPhase(ctx context.Context) {
	startTime := time.Now()

	t.forEachFleet(ctx, "poll", t.pollFleet)

	executionDuration := time.Since(startTime)
	t.Metrics.ObservePhase("poll", executionDuration)
	log.Debug().Str("duration", executionDuration.String()).Msg("Poll phase complete")
}

func (t *TrackerManager) ConsolidatePhase(ctx context.Context) {
	startTime := time.Now()

	t.forEachFleet(ctx, "consolidate", t.consolidateFleet)

	executionDuration := time.Since(startTime)
	t.Metrics.ObservePhase("consolidate", executionDuration)
	log.Info().Str("duration", executionDuration.String()).Msg("Consolidate phase complete")
}

// forEachFleet runs task for every tracked fleet on a bounded pool and returns once all of
// them are done. Errors and panics stay with the fleet that raised them.
func (t *TrackerManager) forEachFleet(ctx context.Context, phase string, task func(context.Context, *fleet.Fleet) error) {
	p := pool.New().WithMaxGoroutines(t.workers())

	for _, f := range t.Fleets {
		if !f.Tracking {
			continue
		}

		f := f
		p.Go(func() {
			t.runFleetTask(ctx, f, phase, task)
		})
	}

	p.Wait()
}

// runFleetTask runs task for one fleet, logging and counting its error or panic
func (t *TrackerManager) runFleetTask(ctx context.Context, f *fleet.Fleet, phase string, task func(context.Context, *fleet.Fleet) error) {
	var err error

	var catcher panics.Catcher
	catcher.Try(func() {
		err = task(ctx, f)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		err = recovered.AsError()
	}

	if err != nil {
		t.Metrics.ObserveFleetFailure(f.Name, phase)
		f.Logger.Error().Err(err).Str("phase", phase).Msg("Fleet failed")
	}
}

func (t *TrackerManager) notifySinks(ctx context.Context, f *fleet.Fleet, report fleetdata.ConsolidationReport) {
	for _, sink := range t.Sinks {
		if err := sink.Consolidated(ctx, report); err != nil {
			f.Logger.Error().Err(err).Str("sink", sink.Name()).Msg("Failed to deliver consolidation report")
		}
	}
}

// CloseSinks flushes and closes every sink holding buffered work.
func (t *TrackerManager) CloseSinks() {
	for _, sink := range t.Sinks {
		closer, ok := sink.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Str("sink", sink.Name()).Msg("Failed to close consolidation sink")
		}
	}
}
