package tracker

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/database"
	"github.com/bikeraccoon/bikeraccoon/pkg/elastic_client"
	"github.com/bikeraccoon/bikeraccoon/pkg/events"
	"github.com/bikeraccoon/bikeraccoon/pkg/fleet"
	"github.com/bikeraccoon/bikeraccoon/pkg/gbfs"
	"github.com/bikeraccoon/bikeraccoon/pkg/metrics"
	"github.com/bikeraccoon/bikeraccoon/pkg/redis_client"
	"github.com/bikeraccoon/bikeraccoon/pkg/status"
	"github.com/bikeraccoon/bikeraccoon/pkg/storage"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const feedIndexCacheExpiration = time.Hour

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "tracker.yaml",
			Usage:   "fleet configuration file",
			EnvVars: []string{"BIKERACCOON_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "data-path",
			Usage: "storage root, overrides the configuration file",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "number of fleets processed in parallel",
		},
	}
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Track GBFS fleets and infer trips",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the tracking daemon",
				Flags: append(configFlags(),
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "raw poll interval, overrides the configuration file",
					},
					&cli.DurationFlag{
						Name:  "consolidate-interval",
						Usage: "trip consolidation interval, overrides the configuration file",
					},
					&cli.StringFlag{
						Name:    "listen",
						Value:   ":8080",
						Usage:   "status server address, empty to disable",
						EnvVars: []string{"BIKERACCOON_STATUS_LISTEN"},
					},
				),
				Action: func(c *cli.Context) error {
					manager, lock, err := buildManager(c)
					if err != nil {
						return err
					}
					defer lock.Release()

					ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
					defer stop()

					if listen := c.String("listen"); listen != "" {
						server := status.NewServer(manager.Fleets, manager.Metrics)
						go func() {
							if err := server.Listen(listen); err != nil {
								log.Error().Err(err).Msg("Status server stopped")
							}
						}()
						defer server.Shutdown()
					}

					manager.Setup(ctx)
					err = manager.Run(ctx)

					manager.CloseSinks()

					return err
				},
			},
			{
				Name:  "consolidate",
				Usage: "run a single consolidation over the stored raw data and exit",
				Flags: configFlags(),
				Action: func(c *cli.Context) error {
					manager, lock, err := buildManager(c)
					if err != nil {
						return err
					}
					defer lock.Release()

					manager.Prepare(c.Context)
					manager.ConsolidatePhase(c.Context)

					manager.CloseSinks()

					return nil
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*fleet.Config, error) {
	cfg, err := fleet.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("data-path") {
		cfg.DataPath = c.String("data-path")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("poll-interval") {
		cfg.PollInterval = c.Duration("poll-interval")
	}
	if c.IsSet("consolidate-interval") {
		cfg.ConsolidateInterval = c.Duration("consolidate-interval")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// buildManager loads the configuration, locks the data directory and connects the optional
// integrations. The caller releases the lock.
func buildManager(c *cli.Context) (*TrackerManager, *storage.Lock, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	fleets, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}

	lock, err := storage.AcquireLock(cfg.DataPath)
	if err != nil {
		return nil, nil, &fleet.ConfigError{Err: err}
	}

	sinks, err := connectSinks()
	if err != nil {
		lock.Release()
		return nil, nil, err
	}

	client := gbfs.NewClient(cfg.FetchTimeout, cfg.RateLimitWait)
	client.IndexCache = redis_client.NewCache(feedIndexCacheExpiration)

	tracked := 0
	for _, f := range fleets {
		if f.Tracking {
			tracked++
		}
		f.Logger.Info().
			Bool("tracking", f.Tracking).
			Bool("stations", f.TrackStations).
			Bool("freebikes", f.TrackFreeBikes).
			Str("url", f.URL).
			Msg("Registered fleet")
	}

	manager := &TrackerManager{
		Fleets:              fleets,
		Client:              client,
		PollInterval:        cfg.PollInterval,
		ConsolidateInterval: cfg.ConsolidateInterval,
		Workers:             cfg.Workers,
		Metrics:             metrics.NewCollector(tracked, cfg.PollInterval),
		Sinks:               sinks,
	}

	return manager, lock, nil
}

func connectSinks() ([]Sink, error) {
	var sinks []Sink

	if err := redis_client.Connect(); err != nil {
		return nil, err
	}
	publisher, err := events.NewRedisQueuePublisher()
	if err != nil {
		return nil, err
	}
	if publisher != nil {
		sinks = append(sinks, publisher)
	}

	client, err := elastic_client.Connect()
	if err != nil {
		return nil, err
	}
	if client != nil {
		indexer, err := elastic_client.NewConsolidationIndexer(client)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, indexer)
	}

	if err := database.Connect(); err != nil {
		return nil, err
	}
	if database.Enabled() {
		sinks = append(sinks, database.SystemsMirror{})
	}

	log.Debug().Int("sinks", len(sinks)).Msg("Consolidation sinks connected")

	return sinks, nil
}
