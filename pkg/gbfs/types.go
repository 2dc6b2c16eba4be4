package gbfs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	FeedStationStatus      = "station_status"
	FeedStationInformation = "station_information"
	FeedFreeBikeStatus     = "free_bike_status"
	FeedVehicleStatus      = "vehicle_status"
	FeedVehicleTypes       = "vehicle_types"
	FeedSystemInformation  = "system_information"
)

// Identifier accepts both JSON strings and numbers, feeds are inconsistent about ids
type Identifier string

func (i *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = Identifier(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier %s: %w", data, err)
	}
	*i = Identifier(n.String())

	return nil
}

// Flag accepts JSON booleans as well as the 0/1 integers used by GBFS v1
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1", `"true"`, `"1"`:
		*f = true
	case "false", "0", `"false"`, `"0"`, "null":
		*f = false
	default:
		return fmt.Errorf("flag %s is not a boolean", data)
	}

	return nil
}

// Timestamp accepts POSIX seconds (v1/v2) and RFC3339 strings (v3)
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.Unix(seconds, 0).UTC()
			return nil
		}

		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		t.Time = parsed.UTC()
		return nil
	}

	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	t.Time = time.Unix(int64(seconds), 0).UTC()

	return nil
}

type Envelope struct {
	LastUpdated *Timestamp      `json:"last_updated"`
	TTL         int             `json:"ttl"`
	Version     string          `json:"version"`
	Data        json.RawMessage `json:"data"`
}

type FeedLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type StationStatus struct {
	StationID             Identifier                    `json:"station_id"`
	NumBikesAvailable     *int64                        `json:"num_bikes_available"`
	NumVehiclesAvailable  *int64                        `json:"num_vehicles_available"`
	NumDocksAvailable     *int64                        `json:"num_docks_available"`
	IsRenting             *Flag                         `json:"is_renting"`
	LastReported          *Timestamp                    `json:"last_reported"`
	VehicleTypesAvailable []VehicleTypeAvailabilityItem `json:"vehicle_types_available"`
}

type VehicleTypeAvailabilityItem struct {
	VehicleTypeID Identifier `json:"vehicle_type_id"`
	Count         int64      `json:"count"`
}

type Vehicle struct {
	BikeID        Identifier `json:"bike_id"`
	VehicleID     Identifier `json:"vehicle_id"`
	Lat           *float64   `json:"lat"`
	Lon           *float64   `json:"lon"`
	StationID     Identifier `json:"station_id"`
	VehicleTypeID Identifier `json:"vehicle_type_id"`
}

type StationInformation struct {
	StationID Identifier      `json:"station_id"`
	Name      json.RawMessage `json:"name"`
	Lat       float64         `json:"lat"`
	Lon       float64         `json:"lon"`
}

type VehicleTypeInformation struct {
	VehicleTypeID  Identifier `json:"vehicle_type_id"`
	FormFactor     string     `json:"form_factor"`
	PropulsionType string     `json:"propulsion_type"`
}

type SystemInformation struct {
	SystemID Identifier      `json:"system_id"`
	Name     json.RawMessage `json:"name"`
	Timezone string          `json:"timezone"`
	Language string          `json:"language"`
}

// localisedText decodes a plain string (v1/v2) or a list of localised strings (v3), preferring
// English when present
func localisedText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var localised []struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(raw, &localised); err != nil || len(localised) == 0 {
		return ""
	}

	for _, item := range localised {
		if item.Language == "en" {
			return item.Text
		}
	}

	return localised[0].Text
}

func (s SystemInformation) DisplayName() string {
	return localisedText(s.Name)
}
