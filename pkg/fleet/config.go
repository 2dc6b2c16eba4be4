package fleet

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvironmentPrefix = "BIKERACCOON_"

const (
	DefaultPollInterval        = 20 * time.Second
	DefaultConsolidateInterval = 20 * time.Minute
	DefaultWorkers             = 4
	DefaultDataPath            = "tracker-data"
	DefaultStationCheckHour    = 4
	DefaultFetchTimeout        = 30 * time.Second
	DefaultRateLimitWait       = 2 * time.Second
)

// ConfigError marks a configuration the daemon must refuse to start with
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type Definition struct {
	Name             string `yaml:"name" validate:"required"`
	DisplayName      string `yaml:"display_name"`
	URL              string `yaml:"url" validate:"omitempty,url"`
	GBFSSystemID     string `yaml:"gbfs_system_id"`
	Timezone         string `yaml:"tz" validate:"omitempty,timezone"`
	Tracking         bool   `yaml:"tracking"`
	TrackStations    *bool  `yaml:"track_stations"`
	TrackFreeBikes   *bool  `yaml:"track_free_bikes"`
	StationCheckHour *int   `yaml:"station_check_hour" validate:"omitempty,gte=0,lte=23"`
}

type Config struct {
	DataPath            string        `yaml:"data_path" validate:"required"`
	PollInterval        time.Duration `yaml:"poll_interval" validate:"gt=0"`
	ConsolidateInterval time.Duration `yaml:"consolidate_interval" validate:"gt=0"`
	Workers             int           `yaml:"workers" validate:"gt=0"`
	StationCheckHour    int           `yaml:"station_check_hour" validate:"gte=0,lte=23"`
	FetchTimeout        time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
	RateLimitWait       time.Duration `yaml:"rate_limit_wait" validate:"gte=0"`

	Fleets []Definition `yaml:"fleets" validate:"dive"`
}

func DefaultConfig() Config {
	return Config{
		DataPath:            DefaultDataPath,
		PollInterval:        DefaultPollInterval,
		ConsolidateInterval: DefaultConsolidateInterval,
		Workers:             DefaultWorkers,
		StationCheckHour:    DefaultStationCheckHour,
		FetchTimeout:        DefaultFetchTimeout,
		RateLimitWait:       DefaultRateLimitWait,
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, then applies BIKERACCOON_*
// environment overrides (a .env file in the working directory is honoured) and validates
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Err: err}
	}

	if err := cfg.applyEnvironment(util.GetPrefixedEnvironmentVariables(EnvironmentPrefix)); err != nil {
		return nil, &ConfigError{Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return &ConfigError{Err: err}
	}

	seen := map[string]bool{}
	for _, definition := range c.Fleets {
		if strings.ContainsAny(definition.Name, `/\ `) || definition.Name == "." || definition.Name == ".." {
			return &ConfigError{Err: fmt.Errorf("fleet name %q must be usable as a directory name", definition.Name)}
		}
		if definition.Tracking && definition.URL == "" {
			return &ConfigError{Err: fmt.Errorf("fleet %s is tracked but has no feed url", definition.Name)}
		}
		if seen[definition.Name] {
			return &ConfigError{Err: fmt.Errorf("duplicate fleet name %q", definition.Name)}
		}
		seen[definition.Name] = true
	}

	if len(c.Fleets) == 0 {
		return &ConfigError{Err: errors.New("no fleets configured")}
	}

	return nil
}

func (c *Config) applyEnvironment(env map[string]string) error {
	if env["DATA_PATH"] != "" {
		c.DataPath = env["DATA_PATH"]
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL":        &c.PollInterval,
		"CONSOLIDATE_INTERVAL": &c.ConsolidateInterval,
		"FETCH_TIMEOUT":        &c.FetchTimeout,
		"RATE_LIMIT_WAIT":      &c.RateLimitWait,
	}
	for name, target := range durations {
		if env[name] == "" {
			continue
		}

		d, err := time.ParseDuration(env[name])
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvironmentPrefix, name, err)
		}
		*target = d
	}

	integers := map[string]*int{
		"WORKERS":            &c.Workers,
		"STATION_CHECK_HOUR": &c.StationCheckHour,
	}
	for name, target := range integers {
		if env[name] == "" {
			continue
		}

		n, err := strconv.Atoi(env[name])
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvironmentPrefix, name, err)
		}
		*target = n
	}

	return nil
}

// Build turns the fleet definitions into runtime fleets. Time zones that cannot be loaded are
// a ConfigError, an empty time zone is left as UTC for the tracker to resolve from the feed.
func (c *Config) Build() ([]*Fleet, error) {
	var fleets []*Fleet

	for _, definition := range c.Fleets {
		f := New(definition, c.DataPath, c.StationCheckHour)

		if definition.Timezone != "" {
			loc, err := time.LoadLocation(definition.Timezone)
			if err != nil {
				return nil, &ConfigError{Err: fmt.Errorf("fleet %s: %w", definition.Name, err)}
			}
			f.SetLocation(loc)
		}

		fleets = append(fleets, f)
	}

	return fleets, nil
}
