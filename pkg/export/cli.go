package export

import (
	"fmt"
	"os"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleet"
	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/bikeraccoon/bikeraccoon/pkg/storage"
	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"
)

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data-path",
			Value:   fleet.DefaultDataPath,
			Usage:   "storage root",
			EnvVars: []string{"BIKERACCOON_DATA_PATH"},
		},
		&cli.StringFlag{
			Name:     "fleet",
			Usage:    "fleet name",
			Required: true,
		},
	}
}

func partitionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "feed",
			Value: string(fleetdata.FeedTypeStation),
			Usage: "feed type (station, free_bike)",
		},
		&cli.StringFlag{
			Name:  "granularity",
			Value: string(fleetdata.GranularityHourly),
			Usage: "hourly or daily",
		},
		&cli.IntFlag{
			Name:  "year",
			Value: time.Now().Year(),
			Usage: "partition year",
		},
	}
}

func readPartition(c *cli.Context, store *storage.FleetStore) ([]fleetdata.TripRecord, error) {
	feedType, err := fleetdata.ParseFeedType(c.String("feed"))
	if err != nil {
		return nil, err
	}
	granularity, err := fleetdata.ParseGranularity(c.String("granularity"))
	if err != nil {
		return nil, err
	}

	return store.ReadTrips(feedType, granularity, c.Int("year"))
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "data",
		Usage: "Inspect and export stored tracker data",
		Subcommands: []*cli.Command{
			{
				Name:  "partitions",
				Usage: "list the stored trip partitions of a fleet",
				Flags: storeFlags(),
				Action: func(c *cli.Context) error {
					store := OpenFleetStore(c.String("data-path"), c.String("fleet"))

					partitions, err := store.Partitions()
					if err != nil {
						return err
					}

					for _, partition := range partitions {
						fmt.Printf("%s\t%s\t%d\t%s\n", partition.FeedType, partition.Granularity, partition.Year, partition.Path)
					}

					return nil
				},
			},
			{
				Name:  "inspect",
				Usage: "pretty print a stored table",
				Flags: append(append(storeFlags(), partitionFlags()...),
					&cli.StringFlag{
						Name:  "table",
						Value: "trips",
						Usage: "trips, raw, stations, vehicle_types or system",
					},
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "maximum rows printed, 0 for all",
					},
				),
				Action: func(c *cli.Context) error {
					store := OpenFleetStore(c.String("data-path"), c.String("fleet"))

					rows, err := readTable(c, store)
					if err != nil {
						return err
					}

					pretty.Println(limitRows(rows, c.Int("limit")))

					return nil
				},
			},
			{
				Name:  "export",
				Usage: "write a trip partition as CSV",
				Flags: append(append(storeFlags(), partitionFlags()...),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   "-",
						Usage:   "output file, - for stdout",
					},
				),
				Action: func(c *cli.Context) error {
					store := OpenFleetStore(c.String("data-path"), c.String("fleet"))

					records, err := readPartition(c, store)
					if err != nil {
						return err
					}

					if c.String("output") == "-" {
						return WriteTripsCSV(os.Stdout, records, store.Location)
					}

					file, err := os.Create(c.String("output"))
					if err != nil {
						return err
					}
					defer file.Close()

					return WriteTripsCSV(file, records, store.Location)
				},
			},
		},
	}
}

func readTable(c *cli.Context, store *storage.FleetStore) ([]interface{}, error) {
	var rows []interface{}

	switch c.String("table") {
	case "trips":
		records, err := readPartition(c, store)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			rows = append(rows, record)
		}
	case "raw":
		feedType, err := fleetdata.ParseFeedType(c.String("feed"))
		if err != nil {
			return nil, err
		}
		observations, err := store.LoadRaw(feedType)
		if err != nil {
			return nil, err
		}
		for _, observation := range observations {
			rows = append(rows, observation)
		}
	case "stations":
		stations, err := store.ReadStations()
		if err != nil {
			return nil, err
		}
		for _, station := range stations {
			rows = append(rows, station)
		}
	case "vehicle_types":
		vehicleTypes, err := store.ReadVehicleTypes()
		if err != nil {
			return nil, err
		}
		for _, vehicleType := range vehicleTypes {
			rows = append(rows, vehicleType)
		}
	case "system":
		system, err := store.ReadSystem()
		if err != nil {
			return nil, err
		}
		rows = append(rows, *system)
	default:
		return nil, fmt.Errorf("unknown table %q", c.String("table"))
	}

	return rows, nil
}

func limitRows(rows []interface{}, limit int) []interface{} {
	if limit <= 0 || len(rows) <= limit {
		return rows
	}

	return rows[:limit]
}
