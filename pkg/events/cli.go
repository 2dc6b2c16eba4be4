package events

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/bikeraccoon/bikeraccoon/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Tracker event queue",
		Subcommands: []*cli.Command{
			{
				Name:  "tail",
				Usage: "print events published by a running tracker",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "consumers",
						Value: 1,
						Usage: "number of queue consumers",
					},
				},
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}
					if !redis_client.Enabled() {
						return errors.New("BIKERACCOON_REDIS_ADDRESS is not set")
					}

					if err := StartConsumers(redis_client.QueueConnection, c.Int("consumers")); err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
		},
	}
}
