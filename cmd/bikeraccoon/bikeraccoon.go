package main

import (
	"os"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/events"
	"github.com/bikeraccoon/bikeraccoon/pkg/export"
	"github.com/bikeraccoon/bikeraccoon/pkg/tracker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("BIKERACCOON_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("BIKERACCOON_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "bikeraccoon",
		Description: "Tracks GBFS bike and scooter fleets and infers trips from availability changes",

		Commands: []*cli.Command{
			tracker.RegisterCLI(),
			events.RegisterCLI(),
			export.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
